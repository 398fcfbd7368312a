// internal/circulation/handler.go
package circulation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"acervo/internal/apperr"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type borrowRequest struct {
	BookID   int64  `json:"book_id" validate:"required"`
	NUSP     string `json:"nusp" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "book_id, nusp and password are required"))
		return
	}

	loan, err := h.service.Borrow(r.Context(), req.BookID, req.NUSP, req.Password)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

type adminBorrowRequest struct {
	BookID int64  `json:"book_id" validate:"required"`
	NUSP   string `json:"nusp" validate:"required"`
}

func (h *Handler) HandleAdminBorrow(w http.ResponseWriter, r *http.Request) {
	var req adminBorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "book_id and nusp are required"))
		return
	}

	loan, err := h.service.BorrowAsAdmin(r.Context(), req.BookID, req.NUSP)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

type bookRequest struct {
	BookID int64 `json:"book_id" validate:"required"`
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "book_id is required"))
		return
	}

	loan, err := h.service.Return(r.Context(), req.BookID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) HandleInternalUse(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "book_id is required"))
		return
	}

	loan, err := h.service.RegisterInternalUse(r.Context(), req.BookID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

type userRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	h.handleLoanAction(w, r, func(loanID uuid.UUID, userID int64) (interface{}, error) {
		return h.service.Renew(r.Context(), loanID, userID)
	})
}

func (h *Handler) HandlePreviewRenew(w http.ResponseWriter, r *http.Request) {
	h.handleLoanAction(w, r, func(loanID uuid.UUID, userID int64) (interface{}, error) {
		return h.service.PreviewRenew(r.Context(), loanID, userID)
	})
}

func (h *Handler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	h.handleLoanAction(w, r, func(loanID uuid.UUID, userID int64) (interface{}, error) {
		return h.service.Extend(r.Context(), loanID, userID)
	})
}

func (h *Handler) HandlePreviewExtend(w http.ResponseWriter, r *http.Request) {
	h.handleLoanAction(w, r, func(loanID uuid.UUID, userID int64) (interface{}, error) {
		return h.service.PreviewExtend(r.Context(), loanID, userID)
	})
}

// handleLoanAction shares the loan-id + user-id plumbing of the four
// renew/extend endpoints.
func (h *Handler) handleLoanAction(w http.ResponseWriter, r *http.Request, action func(uuid.UUID, int64) (interface{}, error)) {
	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid loan id"))
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "user_id is required"))
		return
	}

	result, err := action(loanID, req.UserID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleNudge(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid loan id"))
		return
	}

	loan, err := h.service.Nudge(r.Context(), loanID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid loan id"))
		return
	}

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListActiveLoans(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) HandleListUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid user id"))
		return
	}

	loans, err := h.service.ListUserLoans(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
