// internal/reports/service.go
package reports

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"acervo/internal/apperr"
)

// LoanReport is the aggregate snapshot behind the admin dashboard.
type LoanReport struct {
	GeneratedAt   time.Time `json:"generated_at"`
	TotalLoans    int       `json:"total_loans"`
	ActiveLoans   int       `json:"active_loans"`
	ReturnedLoans int       `json:"returned_loans"`
	OverdueLoans  int       `json:"overdue_loans"`
	TotalRenewals int       `json:"total_renewals"`

	LoansPerClass []ClassCount `json:"loans_per_class"`
	TopBooks      []BookCount  `json:"top_books"`
}

// ClassCount counts loans taken by students of one class.
type ClassCount struct {
	Class string `db:"class" json:"class"`
	Count int    `db:"count" json:"count"`
}

// BookCount counts how often one title was borrowed.
type BookCount struct {
	BookID int64  `db:"book_id" json:"book_id"`
	Title  string `db:"title" json:"title"`
	Count  int    `db:"count" json:"count"`
}

// Service builds loan reports.
type Service interface {
	LoanReport(ctx context.Context) (*LoanReport, error)
}

type service struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewService creates a new reporting service instance.
func NewService(db *sqlx.DB) Service {
	return &service{db: db, now: time.Now}
}

func (s *service) LoanReport(ctx context.Context) (*LoanReport, error) {
	now := s.now()
	report := &LoanReport{GeneratedAt: now}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE returned_at IS NULL),
			COUNT(*) FILTER (WHERE returned_at IS NOT NULL),
			COUNT(*) FILTER (WHERE returned_at IS NULL AND due_date < $1),
			COALESCE(SUM(renewals), 0)
		FROM loans
	`, now).Scan(
		&report.TotalLoans,
		&report.ActiveLoans,
		&report.ReturnedLoans,
		&report.OverdueLoans,
		&report.TotalRenewals,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "loan totals", err)
	}

	err = s.db.SelectContext(ctx, &report.LoansPerClass, `
		SELECT COALESCE(NULLIF(u.class, ''), 'unknown') AS class, COUNT(*) AS count
		FROM loans l
		JOIN users u ON u.id = l.student_id
		GROUP BY 1
		ORDER BY count DESC, class
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "loans per class", err)
	}

	err = s.db.SelectContext(ctx, &report.TopBooks, `
		SELECT b.id AS book_id, b.title, COUNT(*) AS count
		FROM loans l
		JOIN books b ON b.id = l.book_id
		GROUP BY b.id, b.title
		ORDER BY count DESC, b.title
		LIMIT 10
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "top books", err)
	}

	return report, nil
}
