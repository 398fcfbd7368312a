// internal/reports/handler.go
package reports

import (
	"encoding/json"
	"net/http"

	"acervo/internal/apperr"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleLoanReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.LoanReport(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(report)
}
