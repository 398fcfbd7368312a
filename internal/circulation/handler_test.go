// internal/circulation/handler_test.go
package circulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acervo/internal/apperr"
)

// fakeService scripts the service layer so the handler tests exercise only
// JSON plumbing and status mapping.
type fakeService struct {
	loan *Loan
	err  error
}

func (f *fakeService) Borrow(context.Context, int64, string, string) (*Loan, error) {
	return f.loan, f.err
}
func (f *fakeService) BorrowAsAdmin(context.Context, int64, string) (*Loan, error) {
	return f.loan, f.err
}
func (f *fakeService) Return(context.Context, int64) (*Loan, error)              { return f.loan, f.err }
func (f *fakeService) RegisterInternalUse(context.Context, int64) (*Loan, error) { return f.loan, f.err }
func (f *fakeService) Renew(context.Context, uuid.UUID, int64) (*Loan, error)    { return f.loan, f.err }
func (f *fakeService) Extend(context.Context, uuid.UUID, int64) (*Loan, error)   { return f.loan, f.err }
func (f *fakeService) Nudge(context.Context, uuid.UUID) (*Loan, error)           { return f.loan, f.err }
func (f *fakeService) GetLoan(context.Context, uuid.UUID) (*Loan, error)         { return f.loan, f.err }

func (f *fakeService) PreviewRenew(context.Context, uuid.UUID, int64) (*Preview, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Preview{NewDueDate: f.loan.DueDate}, nil
}

func (f *fakeService) PreviewExtend(ctx context.Context, id uuid.UUID, userID int64) (*Preview, error) {
	return f.PreviewRenew(ctx, id, userID)
}

func (f *fakeService) ListLoans(context.Context, string) ([]*AnnotatedLoan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*AnnotatedLoan{{Loan: *f.loan}}, nil
}

func (f *fakeService) ListUserLoans(ctx context.Context, _ int64, status string) ([]*AnnotatedLoan, error) {
	return f.ListLoans(ctx, status)
}

func (f *fakeService) ListActiveLoans(ctx context.Context) ([]*AnnotatedLoan, error) {
	return f.ListLoans(ctx, StatusActive)
}

func newTestRouter(svc Service) *chi.Mux {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/loans", h.HandleBorrow)
	r.Post("/api/loans/return", h.HandleReturn)
	r.Put("/api/loans/{id}/renew", h.HandleRenew)
	r.Post("/api/loans/{id}/nudge", h.HandleNudge)
	r.Get("/api/loans", h.HandleList)
	r.Get("/api/loans/user/{userId}", h.HandleListUser)
	return r
}

func sampleLoan() *Loan {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Loan{
		ID:         uuid.New(),
		BookID:     42,
		StudentID:  7,
		BorrowedAt: now,
		DueDate:    now.AddDate(0, 0, 7),
	}
}

func TestHandleBorrow(t *testing.T) {
	loan := sampleLoan()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "created",
			body:       `{"book_id": 42, "nusp": "1234567", "password": "secret"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing fields",
			body:       `{"book_id": 42}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"book_id":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "already borrowed",
			body:       `{"book_id": 42, "nusp": "1234567", "password": "secret"}`,
			err:        apperr.New(apperr.AlreadyBorrowed, "book already borrowed"),
			wantStatus: http.StatusConflict,
			wantError:  "book already borrowed",
		},
		{
			name:       "limit reached",
			body:       `{"book_id": 42, "nusp": "1234567", "password": "secret"}`,
			err:        apperr.New(apperr.LimitReached, "loan limit of 5 books reached"),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "bad credentials",
			body:       `{"book_id": 42, "nusp": "1234567", "password": "wrong"}`,
			err:        apperr.New(apperr.Unauthorized, "invalid credentials"),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeService{loan: loan, err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/loans", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
}

func TestHandleRenew(t *testing.T) {
	loan := sampleLoan()
	router := newTestRouter(&fakeService{loan: loan})

	body := bytes.NewBufferString(`{"user_id": 7}`)
	req := httptest.NewRequest(http.MethodPut, "/api/loans/"+loan.ID.String()+"/renew", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got Loan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, loan.ID, got.ID)
}

func TestHandleRenewBadLoanID(t *testing.T) {
	router := newTestRouter(&fakeService{loan: sampleLoan()})

	req := httptest.NewRequest(http.MethodPut, "/api/loans/not-a-uuid/renew",
		bytes.NewBufferString(`{"user_id": 7}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleNudgeCooldown(t *testing.T) {
	router := newTestRouter(&fakeService{
		loan: sampleLoan(),
		err:  apperr.New(apperr.LimitReached, "nudge cooldown active"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/loans/"+uuid.NewString()+"/nudge", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleListUser(t *testing.T) {
	loan := sampleLoan()
	router := newTestRouter(&fakeService{loan: loan})

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/loans/user/%d?status=active", loan.StudentID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []*AnnotatedLoan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, loan.ID, got[0].ID)
}

func TestHandleListInfrastructureHidesDetail(t *testing.T) {
	router := newTestRouter(&fakeService{
		loan: sampleLoan(),
		err:  apperr.Wrap(apperr.Infrastructure, "list loans", fmt.Errorf("dial tcp: connection refused")),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, body["error"], "connection refused")
}
