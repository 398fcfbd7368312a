// internal/rules/implementation.go
package rules

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"acervo/internal/apperr"
)

// service implements the Service interface backed by the rules row, cached
// in memory and invalidated on update.
type service struct {
	db  *sqlx.DB
	log *zap.Logger

	mu     sync.RWMutex
	cached *Rules
}

// NewService creates a new rules store instance.
func NewService(db *sqlx.DB, log *zap.Logger) Service {
	return &service{db: db, log: log}
}

const selectRules = `
	SELECT
		COALESCE(max_days, 7) AS max_days,
		COALESCE(renewal_days, 7) AS renewal_days,
		COALESCE(max_renewals, 2) AS max_renewals,
		COALESCE(max_books_per_user, 5) AS max_books_per_user,
		COALESCE(overdue_reminder_days, 3) AS overdue_reminder_days,
		COALESCE(extension_window_days, 3) AS extension_window_days,
		COALESCE(extension_block_multiplier, 3) AS extension_block_multiplier,
		COALESCE(shortened_due_days_after_nudge, 5) AS shortened_due_days_after_nudge,
		COALESCE(nudge_cooldown_hours, 24) AS nudge_cooldown_hours,
		COALESCE(pending_nudge_extension_days, 5) AS pending_nudge_extension_days
	FROM rules
	WHERE id = 1
`

// Get returns the singleton rules row with defaults coalesced.
func (s *service) Get(ctx context.Context) (Rules, error) {
	s.mu.RLock()
	if s.cached != nil {
		r := *s.cached
		s.mu.RUnlock()
		return r, nil
	}
	s.mu.RUnlock()

	var r Rules
	if err := s.db.GetContext(ctx, &r, selectRules); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Migration seeds the row, but a wiped table must not take the
			// loan flow down with it.
			s.log.Warn("rules row missing, serving defaults")
			return Defaults(), nil
		}
		return Rules{}, apperr.Wrap(apperr.Infrastructure, "load rules", err)
	}

	s.mu.Lock()
	s.cached = &r
	s.mu.Unlock()
	return r, nil
}

// Update validates and writes the rules row, then invalidates the cache.
func (s *service) Update(ctx context.Context, r Rules) (Rules, error) {
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE rules SET
			max_days = $1,
			renewal_days = $2,
			max_renewals = $3,
			max_books_per_user = $4,
			overdue_reminder_days = $5,
			extension_window_days = $6,
			extension_block_multiplier = $7,
			shortened_due_days_after_nudge = $8,
			nudge_cooldown_hours = $9,
			pending_nudge_extension_days = $10
		WHERE id = 1
	`,
		r.MaxDays, r.RenewalDays, r.MaxRenewals, r.MaxBooksPerUser,
		r.OverdueReminderDays, r.ExtensionWindowDays, r.ExtensionBlockMultiplier,
		r.ShortenedDueDaysAfterNudge, r.NudgeCooldownHours, r.PendingNudgeExtensionDays,
	)
	if err != nil {
		return Rules{}, apperr.Wrap(apperr.Infrastructure, "update rules", err)
	}

	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()

	s.log.Info("loan rules updated",
		zap.Int("max_days", r.MaxDays),
		zap.Int("max_renewals", r.MaxRenewals),
		zap.Int("max_books_per_user", r.MaxBooksPerUser),
	)
	return s.Get(ctx)
}
