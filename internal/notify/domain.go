// internal/notify/domain.go
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds written by the loan flow and the overdue sweep.
const (
	KindLoanCreated   = "loan_created"
	KindLoanReturned  = "loan_returned"
	KindLoanRenewed   = "loan_renewed"
	KindLoanExtended  = "loan_extended"
	KindNudge         = "nudge"
	KindOverdue       = "overdue"
	KindOverdueRemind = "overdue_reminder"
)

// Notification is one message recorded for a user, optionally tied to a loan.
type Notification struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	LoanID    *uuid.UUID `db:"loan_id" json:"loan_id,omitempty"`
	Kind      string     `db:"kind" json:"kind"`
	Message   string     `db:"message" json:"message"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
