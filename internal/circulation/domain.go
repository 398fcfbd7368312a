// internal/circulation/domain.go
package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Loan is one borrow event in the ledger. Rows are never deleted; a book's
// history is the sequence of its loans.
type Loan struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	BookID     int64      `db:"book_id" json:"book_id"`
	StudentID  int64      `db:"student_id" json:"student_id"`
	BorrowedAt time.Time  `db:"borrowed_at" json:"borrowed_at"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	ReturnedAt *time.Time `db:"returned_at" json:"returned_at,omitempty"`
	Renewals   int        `db:"renewals" json:"renewals"`

	// Extension/nudge state. ExtensionPending and ExtensionRequestedAt
	// record the one-shot extension grant; ExtendedPhase marks that the
	// loan left the normal renewal flow (by extension or by nudge).
	ExtendedPhase        bool       `db:"extended_phase" json:"extended_phase"`
	ExtendedStartedAt    *time.Time `db:"extended_started_at" json:"extended_started_at,omitempty"`
	ExtensionPending     bool       `db:"extension_pending" json:"extension_pending"`
	ExtensionRequestedAt *time.Time `db:"extension_requested_at" json:"extension_requested_at,omitempty"`
	LastNudgedAt         *time.Time `db:"last_nudged_at" json:"last_nudged_at,omitempty"`
}

// Open reports whether the loan has not been returned yet.
func (l *Loan) Open() bool { return l.ReturnedAt == nil }

// OverdueAt is computed, never stored: an open loan past its due date.
func (l *Loan) OverdueAt(now time.Time) bool {
	return l.Open() && now.After(l.DueDate)
}

// AnnotatedLoan is a loan with its read-time overdue flag.
type AnnotatedLoan struct {
	Loan
	IsOverdue bool `json:"is_overdue"`
}

// Annotate computes the overdue flag at the given instant.
func Annotate(loan Loan, now time.Time) *AnnotatedLoan {
	return &AnnotatedLoan{Loan: loan, IsOverdue: loan.OverdueAt(now)}
}

// Preview is the result of a renew/extend dry run.
type Preview struct {
	NewDueDate time.Time `json:"new_due_date"`
	Message    string    `json:"message"`
}
