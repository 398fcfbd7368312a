// internal/notify/service.go
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Service records notifications and sends best-effort emails. Loan
// operations never fail because of a notification problem.
type Service interface {
	Record(ctx context.Context, userID int64, loanID *uuid.UUID, kind, message string) error
	ListByUser(ctx context.Context, userID int64) ([]*Notification, error)
	LastForLoan(ctx context.Context, loanID uuid.UUID, kind string) (*Notification, error)
	Email(ctx context.Context, to, subject, body string)
}
