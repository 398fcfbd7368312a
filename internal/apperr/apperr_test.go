// internal/apperr/apperr_test.go
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{AlreadyBorrowed, http.StatusConflict},
		{LimitReached, http.StatusConflict},
		{Unauthorized, http.StatusUnauthorized},
		{Validation, http.StatusBadRequest},
		{Infrastructure, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Status(New(c.kind, "x")), c.kind.String())
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("borrow: %w", New(AlreadyBorrowed, "book already borrowed"))
	assert.Equal(t, AlreadyBorrowed, KindOf(err))
	assert.Equal(t, Infrastructure, KindOf(errors.New("plain")))
}

func TestWriteJSONHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, Wrap(Infrastructure, "query loans", errors.New("dial tcp: refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteJSON(rec, New(NotFound, "book not found"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"book not found"}`, rec.Body.String())
}
