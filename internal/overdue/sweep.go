// internal/overdue/sweep.go
package overdue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"acervo/internal/apperr"
	"acervo/internal/catalog"
	"acervo/internal/circulation"
	"acervo/internal/membership"
	"acervo/internal/notify"
	"acervo/internal/rules"
)

// Sweep walks every open loan once: overdue loans get a first notice and then
// reminders on the overdue_reminder_days cadence, each user gets one
// consolidated email, and loans inside the extension window get nudged.
type Sweep struct {
	rules    rules.Service
	loans    circulation.Service
	catalog  catalog.Service
	members  membership.Service
	notifier notify.Service
	log      *zap.Logger

	now func() time.Time
}

func NewSweep(
	rulesStore rules.Service,
	loans circulation.Service,
	catalogSvc catalog.Service,
	members membership.Service,
	notifier notify.Service,
	log *zap.Logger,
) *Sweep {
	return &Sweep{
		rules:    rulesStore,
		loans:    loans,
		catalog:  catalogSvc,
		members:  members,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Result summarizes one pass for logging and tests.
type Result struct {
	Scanned   int
	Notices   int
	Reminders int
	Nudged    int
}

func (s *Sweep) Run(ctx context.Context) (*Result, error) {
	r, err := s.rules.Get(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.loans.ListActiveLoans(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &Result{Scanned: len(active)}
	overduePerUser := map[int64][]string{}

	for _, loan := range active {
		if loan.IsOverdue {
			kind := s.noticeKind(ctx, &loan.Loan, r, now)
			if kind == "" {
				continue
			}

			title := s.bookTitle(ctx, loan.BookID)
			message := fmt.Sprintf("%q is overdue since %s. Please return it.",
				title, loan.DueDate.Format("02 Jan 2006"))

			loanID := loan.ID
			if err := s.notifier.Record(ctx, loan.StudentID, &loanID, kind, message); err != nil {
				s.log.Warn("record overdue notice failed", zap.String("loan_id", loanID.String()), zap.Error(err))
				continue
			}
			overduePerUser[loan.StudentID] = append(overduePerUser[loan.StudentID], message)
			if kind == notify.KindOverdue {
				result.Notices++
			} else {
				result.Reminders++
			}
			continue
		}

		// Approaching the due date without overdue: tighten the loan. The
		// cooldown makes repeated runs idempotent within a day.
		if circulation.InExtensionWindow(&loan.Loan, r, now) && loan.LastNudgedAt == nil {
			if _, err := s.loans.Nudge(ctx, loan.ID); err != nil {
				if apperr.KindOf(err) != apperr.LimitReached {
					s.log.Warn("nudge failed", zap.String("loan_id", loan.ID.String()), zap.Error(err))
				}
				continue
			}
			result.Nudged++
		}
	}

	for userID, messages := range overduePerUser {
		user, err := s.members.GetByID(ctx, userID)
		if err != nil {
			s.log.Warn("load borrower failed", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		s.notifier.Email(ctx, user.Email,
			fmt.Sprintf("Library: %d overdue book(s)", len(messages)),
			strings.Join(messages, "\n"))
	}

	s.log.Info("overdue sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("notices", result.Notices),
		zap.Int("reminders", result.Reminders),
		zap.Int("nudged", result.Nudged),
	)
	return result, nil
}

// noticeKind decides whether an overdue loan is due a first notice, a
// reminder, or nothing yet.
func (s *Sweep) noticeKind(ctx context.Context, loan *circulation.Loan, r rules.Rules, now time.Time) string {
	last := s.lastNotice(ctx, loan)
	if last == nil {
		return notify.KindOverdue
	}
	cadence := time.Duration(r.OverdueReminderDays) * 24 * time.Hour
	if now.Sub(last.CreatedAt) >= cadence {
		return notify.KindOverdueRemind
	}
	return ""
}

func (s *Sweep) lastNotice(ctx context.Context, loan *circulation.Loan) *notify.Notification {
	var last *notify.Notification
	for _, kind := range []string{notify.KindOverdue, notify.KindOverdueRemind} {
		n, err := s.notifier.LastForLoan(ctx, loan.ID, kind)
		if err != nil {
			s.log.Warn("load last notice failed", zap.String("loan_id", loan.ID.String()), zap.Error(err))
			continue
		}
		if n != nil && (last == nil || n.CreatedAt.After(last.CreatedAt)) {
			last = n
		}
	}
	return last
}

func (s *Sweep) bookTitle(ctx context.Context, bookID int64) string {
	book, err := s.catalog.GetBook(ctx, bookID)
	if err != nil {
		return fmt.Sprintf("book %d", bookID)
	}
	return book.Title
}
