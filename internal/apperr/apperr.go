// internal/apperr/apperr.go
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of error categories the API can produce.
type Kind int

const (
	Infrastructure Kind = iota
	NotFound
	AlreadyBorrowed
	LimitReached
	Unauthorized
	Validation
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyBorrowed:
		return "already_borrowed"
	case LimitReached:
		return "limit_reached"
	case Unauthorized:
		return "unauthorized"
	case Validation:
		return "validation"
	default:
		return "infrastructure"
	}
}

// Error carries a kind plus a user-facing message. The kind is mapped to an
// HTTP status exactly once, at the handler boundary.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a tagged error with a user-facing message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and message.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of an error. Untagged errors are infrastructure
// faults.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Infrastructure
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case AlreadyBorrowed:
		return http.StatusConflict
	case LimitReached:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes the error as the API's {"error": message} body. Internal
// detail from wrapped infrastructure errors is not leaked to the client.
func WriteJSON(w http.ResponseWriter, err error) {
	msg := "internal server error"
	var e *Error
	if errors.As(err, &e) && e.Kind != Infrastructure {
		msg = e.Msg
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(err))
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
