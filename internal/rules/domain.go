// internal/rules/domain.go
package rules

import (
	"time"

	"acervo/internal/apperr"
)

// Rules is the singleton loan-policy record (row id=1). Every loan operation
// reads it; only the admin settings form writes it.
type Rules struct {
	MaxDays                    int `db:"max_days" json:"max_days"`
	RenewalDays                int `db:"renewal_days" json:"renewal_days"`
	MaxRenewals                int `db:"max_renewals" json:"max_renewals"`
	MaxBooksPerUser            int `db:"max_books_per_user" json:"max_books_per_user"`
	OverdueReminderDays        int `db:"overdue_reminder_days" json:"overdue_reminder_days"`
	ExtensionWindowDays        int `db:"extension_window_days" json:"extension_window_days"`
	ExtensionBlockMultiplier   int `db:"extension_block_multiplier" json:"extension_block_multiplier"`
	ShortenedDueDaysAfterNudge int `db:"shortened_due_days_after_nudge" json:"shortened_due_days_after_nudge"`
	NudgeCooldownHours         int `db:"nudge_cooldown_hours" json:"nudge_cooldown_hours"`
	PendingNudgeExtensionDays  int `db:"pending_nudge_extension_days" json:"pending_nudge_extension_days"`
}

// Defaults returns the policy values a fresh installation starts with.
func Defaults() Rules {
	return Rules{
		MaxDays:                    7,
		RenewalDays:                7,
		MaxRenewals:                2,
		MaxBooksPerUser:            5,
		OverdueReminderDays:        3,
		ExtensionWindowDays:        3,
		ExtensionBlockMultiplier:   3,
		ShortenedDueDaysAfterNudge: 5,
		NudgeCooldownHours:         24,
		PendingNudgeExtensionDays:  5,
	}
}

// Validate rejects negative policy values.
func (r Rules) Validate() error {
	fields := map[string]int{
		"max_days":                       r.MaxDays,
		"renewal_days":                   r.RenewalDays,
		"max_renewals":                   r.MaxRenewals,
		"max_books_per_user":             r.MaxBooksPerUser,
		"overdue_reminder_days":          r.OverdueReminderDays,
		"extension_window_days":          r.ExtensionWindowDays,
		"extension_block_multiplier":     r.ExtensionBlockMultiplier,
		"shortened_due_days_after_nudge": r.ShortenedDueDaysAfterNudge,
		"nudge_cooldown_hours":           r.NudgeCooldownHours,
		"pending_nudge_extension_days":   r.PendingNudgeExtensionDays,
	}
	for name, v := range fields {
		if v < 0 {
			return apperr.Newf(apperr.Validation, "%s must be a non-negative integer", name)
		}
	}
	return nil
}

// NudgeCooldown returns the cooldown as a duration.
func (r Rules) NudgeCooldown() time.Duration {
	return time.Duration(r.NudgeCooldownHours) * time.Hour
}
