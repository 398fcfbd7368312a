// internal/rules/handler.go
package rules

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"acervo/internal/apperr"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.Get(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// updateRequest uses pointers so absent fields fail validation instead of
// silently zeroing a policy value.
type updateRequest struct {
	MaxDays                    *int `json:"max_days" validate:"required,gte=0"`
	RenewalDays                *int `json:"renewal_days" validate:"required,gte=0"`
	MaxRenewals                *int `json:"max_renewals" validate:"required,gte=0"`
	MaxBooksPerUser            *int `json:"max_books_per_user" validate:"required,gte=0"`
	OverdueReminderDays        *int `json:"overdue_reminder_days" validate:"required,gte=0"`
	ExtensionWindowDays        *int `json:"extension_window_days" validate:"required,gte=0"`
	ExtensionBlockMultiplier   *int `json:"extension_block_multiplier" validate:"required,gte=0"`
	ShortenedDueDaysAfterNudge *int `json:"shortened_due_days_after_nudge" validate:"required,gte=0"`
	NudgeCooldownHours         *int `json:"nudge_cooldown_hours" validate:"required,gte=0"`
	PendingNudgeExtensionDays  *int `json:"pending_nudge_extension_days" validate:"omitempty,gte=0"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "every rule must be a non-negative integer"))
		return
	}

	current, err := h.service.Get(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	next := Rules{
		MaxDays:                    *req.MaxDays,
		RenewalDays:                *req.RenewalDays,
		MaxRenewals:                *req.MaxRenewals,
		MaxBooksPerUser:            *req.MaxBooksPerUser,
		OverdueReminderDays:        *req.OverdueReminderDays,
		ExtensionWindowDays:        *req.ExtensionWindowDays,
		ExtensionBlockMultiplier:   *req.ExtensionBlockMultiplier,
		ShortenedDueDaysAfterNudge: *req.ShortenedDueDaysAfterNudge,
		NudgeCooldownHours:         *req.NudgeCooldownHours,
		PendingNudgeExtensionDays:  current.PendingNudgeExtensionDays,
	}
	if req.PendingNudgeExtensionDays != nil {
		next.PendingNudgeExtensionDays = *req.PendingNudgeExtensionDays
	}

	updated, err := h.service.Update(r.Context(), next)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
