// internal/circulation/implementation.go
package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"acervo/internal/apperr"
	"acervo/internal/catalog"
	"acervo/internal/membership"
	"acervo/internal/notify"
	"acervo/internal/rules"
)

// service implements the Service interface.
type service struct {
	db       *sqlx.DB
	rules    rules.Service
	catalog  catalog.Service
	members  membership.Service
	notifier notify.Service
	log      *zap.Logger

	tracer       trace.Tracer
	loansCreated metric.Int64Counter

	limiter *borrowLimiter

	// Borrower recorded on internal-use ghost loans.
	internalUserID int64

	now func() time.Time
}

// NewService creates a new loan service instance.
func NewService(
	db *sqlx.DB,
	rulesStore rules.Service,
	catalogSvc catalog.Service,
	members membership.Service,
	notifier notify.Service,
	internalUserID int64,
	log *zap.Logger,
) Service {
	loansCreated, err := otel.Meter("acervo/circulation").Int64Counter("loans_created_total")
	if err != nil {
		log.Warn("loan counter unavailable", zap.Error(err))
	}
	return &service{
		db:             db,
		rules:          rulesStore,
		catalog:        catalogSvc,
		members:        members,
		notifier:       notifier,
		log:            log,
		tracer:         otel.Tracer("acervo/circulation"),
		loansCreated:   loansCreated,
		limiter:        newBorrowLimiter(),
		internalUserID: internalUserID,
		now:            time.Now,
	}
}

const loanColumns = `id, book_id, student_id, borrowed_at, due_date, returned_at, renewals,
	extended_phase, extended_started_at, extension_pending, extension_requested_at, last_nudged_at`

// Borrow is the self-service path.
func (s *service) Borrow(ctx context.Context, bookID int64, nusp, password string) (*Loan, error) {
	if !s.limiter.allow(nusp) {
		return nil, apperr.New(apperr.LimitReached, "too many borrow attempts, wait a moment and try again")
	}

	user, err := s.members.Authenticate(ctx, nusp, password)
	if err != nil {
		return nil, err
	}
	return s.borrow(ctx, bookID, user)
}

// BorrowAsAdmin creates a loan at the desk, without the student's password.
func (s *service) BorrowAsAdmin(ctx context.Context, bookID int64, nusp string) (*Loan, error) {
	user, err := s.members.GetByNUSP(ctx, nusp)
	if err != nil {
		return nil, err
	}
	return s.borrow(ctx, bookID, user)
}

func (s *service) borrow(ctx context.Context, bookID int64, user *membership.User) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.Int64("book.id", bookID),
			attribute.Int64("user.id", user.ID),
		),
	)
	defer span.End()

	book, err := s.catalog.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.IsReserved {
		return nil, apperr.New(apperr.Validation, "book is on didactic reserve and cannot be borrowed")
	}

	r, err := s.rules.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	loan := &Loan{
		ID:         uuid.New(),
		BookID:     bookID,
		StudentID:  user.ID,
		BorrowedAt: now,
		DueDate:    DueDateOnBorrow(now, r),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "begin borrow transaction", err)
	}
	defer tx.Rollback()

	var openCount int
	err = tx.GetContext(ctx, &openCount,
		`SELECT COUNT(*) FROM loans WHERE student_id = $1 AND returned_at IS NULL`, user.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "count open loans", err)
	}
	if openCount >= r.MaxBooksPerUser {
		return nil, apperr.Newf(apperr.LimitReached, "loan limit of %d books reached", r.MaxBooksPerUser)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loans (id, book_id, student_id, borrowed_at, due_date, renewals)
		VALUES ($1, $2, $3, $4, $5, 0)
	`, loan.ID, loan.BookID, loan.StudentID, loan.BorrowedAt, loan.DueDate)
	if err != nil {
		// The partial unique index on open loans is the authority on
		// double-borrow, including the window between any pre-check and
		// this insert.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			span.SetAttributes(attribute.Bool("conflict.detected", true))
			return nil, apperr.New(apperr.AlreadyBorrowed, "book already borrowed")
		}
		return nil, apperr.Wrap(apperr.Infrastructure, "insert loan", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "commit borrow", err)
	}

	if s.loansCreated != nil {
		s.loansCreated.Add(ctx, 1)
	}
	s.log.Info("loan created",
		zap.String("loan_id", loan.ID.String()),
		zap.Int64("book_id", bookID),
		zap.String("nusp", user.NUSP),
		zap.Time("due_date", loan.DueDate),
	)

	s.notifyUser(ctx, user, loan, notify.KindLoanCreated,
		fmt.Sprintf("Loan registered: %q. Due date: %s.", book.Title, loan.DueDate.Format("02 Jan 2006")))

	return loan, nil
}

// Return closes the open loan for a book.
func (s *service) Return(ctx context.Context, bookID int64) (*Loan, error) {
	now := s.now()
	loan := &Loan{}
	err := s.db.GetContext(ctx, loan, `
		UPDATE loans SET returned_at = $1
		WHERE book_id = $2 AND returned_at IS NULL
		RETURNING `+loanColumns,
		now, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "no open loan for this book")
		}
		return nil, apperr.Wrap(apperr.Infrastructure, "return loan", err)
	}

	s.log.Info("loan returned", zap.String("loan_id", loan.ID.String()), zap.Int64("book_id", bookID))

	if user, err := s.members.GetByID(ctx, loan.StudentID); err == nil {
		s.notifyUser(ctx, user, loan, notify.KindLoanReturned, "Return registered. Thank you!")
	}
	return loan, nil
}

// RegisterInternalUse records in-library use as a ghost loan, created
// already returned so it never blocks the open-loan index.
func (s *service) RegisterInternalUse(ctx context.Context, bookID int64) (*Loan, error) {
	if _, err := s.catalog.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	now := s.now()
	loan := &Loan{}
	err := s.db.GetContext(ctx, loan, `
		INSERT INTO loans (id, book_id, student_id, borrowed_at, due_date, returned_at, renewals)
		VALUES ($1, $2, $3, $4, $4, $4, 0)
		RETURNING `+loanColumns,
		uuid.New(), bookID, s.internalUserID, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "insert internal-use loan", err)
	}

	s.log.Info("internal use registered", zap.Int64("book_id", bookID))
	return loan, nil
}

// PreviewRenew validates a renewal and reports the due date it would yield.
func (s *service) PreviewRenew(ctx context.Context, loanID uuid.UUID, userID int64) (*Preview, error) {
	loan, r, hasOverdue, err := s.loadForPolicy(ctx, loanID, userID)
	if err != nil {
		return nil, err
	}
	newDue, err := CheckRenew(loan, r, s.now(), hasOverdue)
	if err != nil {
		return nil, err
	}
	return &Preview{
		NewDueDate: newDue,
		Message:    "New due date after renewal.",
	}, nil
}

// Renew pushes the due date out by renewal_days and bumps the counter.
func (s *service) Renew(ctx context.Context, loanID uuid.UUID, userID int64) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.renew",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())))
	defer span.End()

	loan, r, hasOverdue, err := s.loadForPolicy(ctx, loanID, userID)
	if err != nil {
		return nil, err
	}
	newDue, err := CheckRenew(loan, r, s.now(), hasOverdue)
	if err != nil {
		return nil, err
	}

	// The renewals guard makes the update optimistic: a concurrent renewal
	// of the same loan loses instead of double-applying.
	res, err := s.db.ExecContext(ctx, `
		UPDATE loans SET due_date = $1, renewals = renewals + 1
		WHERE id = $2 AND returned_at IS NULL AND renewals = $3
	`, newDue, loanID, loan.Renewals)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "renew loan", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.Validation, "loan changed, try again")
	}

	updated, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	s.log.Info("loan renewed",
		zap.String("loan_id", loanID.String()),
		zap.Int("renewals", updated.Renewals),
		zap.Time("due_date", updated.DueDate),
	)

	if user, err := s.members.GetByID(ctx, updated.StudentID); err == nil {
		s.notifyUser(ctx, user, updated, notify.KindLoanRenewed,
			fmt.Sprintf("Loan renewed. New due date: %s.", updated.DueDate.Format("02 Jan 2006")))
	}
	return updated, nil
}

// PreviewExtend validates the extension and reports the due date it would
// yield.
func (s *service) PreviewExtend(ctx context.Context, loanID uuid.UUID, userID int64) (*Preview, error) {
	loan, r, hasOverdue, err := s.loadForPolicy(ctx, loanID, userID)
	if err != nil {
		return nil, err
	}
	newDue, err := CheckExtend(loan, r, s.now(), hasOverdue)
	if err != nil {
		return nil, err
	}
	return &Preview{
		NewDueDate: newDue,
		Message:    fmt.Sprintf("New due date after extension (%d days from today).", r.RenewalDays*r.ExtensionBlockMultiplier),
	}, nil
}

// Extend grants the one-shot extension and moves the loan into the extended
// phase.
func (s *service) Extend(ctx context.Context, loanID uuid.UUID, userID int64) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.extend",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())))
	defer span.End()

	loan, r, hasOverdue, err := s.loadForPolicy(ctx, loanID, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	newDue, err := CheckExtend(loan, r, now, hasOverdue)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE loans SET
			due_date = $1,
			extended_phase = TRUE,
			extended_started_at = $2,
			extension_pending = TRUE,
			extension_requested_at = $2
		WHERE id = $3 AND returned_at IS NULL AND extension_pending = FALSE
	`, newDue, now, loanID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "extend loan", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.Validation, "loan already extended")
	}

	updated, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	s.log.Info("loan extended",
		zap.String("loan_id", loanID.String()),
		zap.Time("due_date", updated.DueDate),
	)

	if user, err := s.members.GetByID(ctx, updated.StudentID); err == nil {
		s.notifyUser(ctx, user, updated, notify.KindLoanExtended,
			fmt.Sprintf("Loan extended. New due date: %s.", updated.DueDate.Format("02 Jan 2006")))
	}
	return updated, nil
}

// Nudge reminds the borrower and tightens a lenient due date. The effective
// due date becomes max(due_date, now + shortened_due_days_after_nudge).
func (s *service) Nudge(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	r, err := s.rules.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	newDue, err := CheckNudge(loan, r, now)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE loans SET due_date = $1, extended_phase = TRUE, last_nudged_at = $2
		WHERE id = $3 AND returned_at IS NULL
	`, newDue, now, loanID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "nudge loan", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.Validation, "loan already returned")
	}

	updated, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	s.log.Info("loan nudged",
		zap.String("loan_id", loanID.String()),
		zap.Time("due_date", updated.DueDate),
	)

	if user, err := s.members.GetByID(ctx, updated.StudentID); err == nil {
		s.notifyUser(ctx, user, updated, notify.KindNudge,
			fmt.Sprintf("Please return your book soon. Due date: %s.", updated.DueDate.Format("02 Jan 2006")))
	}
	return updated, nil
}

// GetLoan retrieves a loan regardless of status.
func (s *service) GetLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	loan := &Loan{}
	err := s.db.GetContext(ctx, loan,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "loan not found")
		}
		return nil, apperr.Wrap(apperr.Infrastructure, "get loan", err)
	}
	return loan, nil
}

// ListLoans returns loans filtered by status, newest first, annotated with
// the read-time overdue flag.
func (s *service) ListLoans(ctx context.Context, status string) ([]*AnnotatedLoan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans`
	switch status {
	case StatusActive:
		query += ` WHERE returned_at IS NULL`
	case StatusReturned:
		query += ` WHERE returned_at IS NOT NULL`
	case StatusAll, "":
	default:
		return nil, apperr.New(apperr.Validation, "status must be all, active or returned")
	}
	query += ` ORDER BY borrowed_at DESC`

	var loans []Loan
	if err := s.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "list loans", err)
	}
	return s.annotate(loans), nil
}

// ListUserLoans returns one user's loans filtered by status.
func (s *service) ListUserLoans(ctx context.Context, userID int64, status string) ([]*AnnotatedLoan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE student_id = $1`
	switch status {
	case StatusActive:
		query += ` AND returned_at IS NULL`
	case StatusReturned:
		query += ` AND returned_at IS NOT NULL`
	case StatusAll, "":
	default:
		return nil, apperr.New(apperr.Validation, "status must be all, active or returned")
	}
	query += ` ORDER BY borrowed_at DESC`

	var loans []Loan
	if err := s.db.SelectContext(ctx, &loans, query, userID); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "list user loans", err)
	}
	return s.annotate(loans), nil
}

// ListActiveLoans returns every open loan with its overdue flag.
func (s *service) ListActiveLoans(ctx context.Context) ([]*AnnotatedLoan, error) {
	return s.ListLoans(ctx, StatusActive)
}

func (s *service) annotate(loans []Loan) []*AnnotatedLoan {
	now := s.now()
	annotated := make([]*AnnotatedLoan, 0, len(loans))
	for _, loan := range loans {
		annotated = append(annotated, Annotate(loan, now))
	}
	return annotated
}

// loadForPolicy gathers everything the policy calculators need: the loan,
// the rules row, and whether the user holds another overdue open loan. The
// ownership check lives here; userID 0 skips it (trusted callers).
func (s *service) loadForPolicy(ctx context.Context, loanID uuid.UUID, userID int64) (*Loan, rules.Rules, bool, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, rules.Rules{}, false, err
	}
	if userID != 0 && loan.StudentID != userID {
		return nil, rules.Rules{}, false, apperr.New(apperr.Unauthorized, "loan does not belong to this user")
	}

	r, err := s.rules.Get(ctx)
	if err != nil {
		return nil, rules.Rules{}, false, err
	}

	// Counts every open overdue loan, the requested one included; an overdue
	// loan can neither be renewed nor extended.
	var hasOverdue bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM loans
			WHERE student_id = $1 AND returned_at IS NULL AND due_date < $2
		)
	`, loan.StudentID, s.now()).Scan(&hasOverdue)
	if err != nil {
		return nil, rules.Rules{}, false, apperr.Wrap(apperr.Infrastructure, "check overdue loans", err)
	}

	return loan, r, hasOverdue, nil
}

func (s *service) notifyUser(ctx context.Context, user *membership.User, loan *Loan, kind, message string) {
	if s.notifier == nil {
		return
	}
	loanID := loan.ID
	if err := s.notifier.Record(ctx, user.ID, &loanID, kind, message); err != nil {
		s.log.Warn("record notification failed", zap.String("loan_id", loanID.String()), zap.Error(err))
	}
	s.notifier.Email(ctx, user.Email, "Library: "+kind, message)
}
