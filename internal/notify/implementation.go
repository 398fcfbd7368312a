// internal/notify/implementation.go
package notify

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"acervo/internal/apperr"
)

// service implements the Service interface.
type service struct {
	db     *sqlx.DB
	sender Sender
	log    *zap.Logger
}

// NewService creates a new notification service instance. sender may be nil
// when email delivery is disabled.
func NewService(db *sqlx.DB, sender Sender, log *zap.Logger) Service {
	return &service{db: db, sender: sender, log: log}
}

// Record stores one notification row.
func (s *service) Record(ctx context.Context, userID int64, loanID *uuid.UUID, kind, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, loan_id, kind, message)
		VALUES ($1, $2, $3, $4)
	`, userID, loanID, kind, message)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "insert notification", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (s *service) ListByUser(ctx context.Context, userID int64) ([]*Notification, error) {
	var notifications []*Notification
	err := s.db.SelectContext(ctx, &notifications, `
		SELECT id, user_id, loan_id, kind, message, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 100
	`, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "list notifications", err)
	}
	return notifications, nil
}

// LastForLoan returns the most recent notification of a kind for a loan, or
// nil when none exists. The overdue sweep uses it to pace reminders.
func (s *service) LastForLoan(ctx context.Context, loanID uuid.UUID, kind string) (*Notification, error) {
	n := &Notification{}
	err := s.db.GetContext(ctx, n, `
		SELECT id, user_id, loan_id, kind, message, created_at
		FROM notifications
		WHERE loan_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, loanID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "load last notification", err)
	}
	return n, nil
}

// Email delivers best-effort: failures are logged, never propagated.
func (s *service) Email(ctx context.Context, to, subject, body string) {
	if s.sender == nil || to == "" {
		return
	}
	if err := s.sender.Send(ctx, to, subject, body); err != nil {
		s.log.Warn("email delivery failed", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
	}
}
