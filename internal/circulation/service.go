// internal/circulation/service.go
package circulation

import (
	"context"

	"github.com/google/uuid"
)

// Status filters for loan listings.
const (
	StatusAll      = "all"
	StatusActive   = "active"
	StatusReturned = "returned"
)

// Service defines the interface for the loan service.
type Service interface {
	// Borrow is the self-service path: the student authenticates with NUSP
	// and password. BorrowAsAdmin skips the password check.
	Borrow(ctx context.Context, bookID int64, nusp, password string) (*Loan, error)
	BorrowAsAdmin(ctx context.Context, bookID int64, nusp string) (*Loan, error)

	// Return closes the open loan for a book.
	Return(ctx context.Context, bookID int64) (*Loan, error)

	// RegisterInternalUse records in-library use as a ghost loan that is
	// created already returned.
	RegisterInternalUse(ctx context.Context, bookID int64) (*Loan, error)

	Renew(ctx context.Context, loanID uuid.UUID, userID int64) (*Loan, error)
	PreviewRenew(ctx context.Context, loanID uuid.UUID, userID int64) (*Preview, error)
	Extend(ctx context.Context, loanID uuid.UUID, userID int64) (*Loan, error)
	PreviewExtend(ctx context.Context, loanID uuid.UUID, userID int64) (*Preview, error)
	Nudge(ctx context.Context, loanID uuid.UUID) (*Loan, error)

	GetLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	ListLoans(ctx context.Context, status string) ([]*AnnotatedLoan, error)
	ListUserLoans(ctx context.Context, userID int64, status string) ([]*AnnotatedLoan, error)
	ListActiveLoans(ctx context.Context) ([]*AnnotatedLoan, error)
}
