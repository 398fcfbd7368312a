// internal/membership/handler.go
package membership

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"acervo/internal/apperr"
)

type Handler struct {
	service  Service
	issuer   *TokenIssuer
	validate *validator.Validate
}

func NewHandler(service Service, issuer *TokenIssuer) *Handler {
	return &Handler{service: service, issuer: issuer, validate: validator.New()}
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(input); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "nusp, email, name and a password of at least 8 characters are required"))
		return
	}

	user, err := h.service.Register(r.Context(), input)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NUSP     string `json:"nusp"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.NUSP, req.Password)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		apperr.WriteJSON(w, apperr.Wrap(apperr.Infrastructure, "issue token", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid user id"))
		return
	}

	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid user id"))
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}

	if err := h.service.UpdateRole(r.Context(), id, req.Role); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
