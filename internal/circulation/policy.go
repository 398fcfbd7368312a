// internal/circulation/policy.go
package circulation

import (
	"time"

	"acervo/internal/apperr"
	"acervo/internal/rules"
)

// The policy calculators are pure functions over stored timestamps and the
// rules row. All state checks live here; the service only loads, calls and
// persists.

// DueDateOnBorrow computes the initial due date.
func DueDateOnBorrow(now time.Time, r rules.Rules) time.Time {
	return now.AddDate(0, 0, r.MaxDays)
}

// CheckRenew validates a renewal and returns the new due date:
// the current one pushed out by renewal_days.
func CheckRenew(loan *Loan, r rules.Rules, now time.Time, userHasOverdue bool) (time.Time, error) {
	if !loan.Open() {
		return time.Time{}, apperr.New(apperr.Validation, "loan already returned")
	}
	if loan.ExtendedPhase {
		return time.Time{}, apperr.New(apperr.Validation, "loan is in the extended phase and can no longer be renewed")
	}
	if loan.Renewals >= r.MaxRenewals {
		return time.Time{}, apperr.New(apperr.LimitReached, "renewal limit reached")
	}
	if loan.OverdueAt(now) {
		return time.Time{}, apperr.New(apperr.Validation, "loan is overdue and cannot be renewed")
	}
	if userHasOverdue {
		return time.Time{}, apperr.New(apperr.Validation, "return your overdue books before renewing")
	}
	return loan.DueDate.AddDate(0, 0, r.RenewalDays), nil
}

// CheckExtend validates the one-shot extension and returns the new due date:
// renewal_days * extension_block_multiplier days from now.
func CheckExtend(loan *Loan, r rules.Rules, now time.Time, userHasOverdue bool) (time.Time, error) {
	if !loan.Open() {
		return time.Time{}, apperr.New(apperr.Validation, "loan already returned")
	}
	if loan.ExtensionPending || loan.ExtendedPhase {
		return time.Time{}, apperr.New(apperr.Validation, "loan already extended")
	}
	if loan.Renewals < r.MaxRenewals {
		return time.Time{}, apperr.New(apperr.Validation, "extension is only available after the renewal limit is reached")
	}
	if loan.OverdueAt(now) {
		return time.Time{}, apperr.New(apperr.Validation, "loan is overdue and cannot be extended")
	}
	if userHasOverdue {
		return time.Time{}, apperr.New(apperr.Validation, "return your overdue books before extending")
	}
	if loan.DueDate.Sub(now) > time.Duration(r.ExtensionWindowDays)*24*time.Hour {
		return time.Time{}, apperr.Newf(apperr.Validation, "extension opens %d days before the due date", r.ExtensionWindowDays)
	}
	return now.AddDate(0, 0, r.RenewalDays*r.ExtensionBlockMultiplier), nil
}

// CheckNudge validates the cooldown and returns the effective due date after
// a nudge: max(due_date, now + shortened_due_days_after_nudge). A nudge
// never shortens a loan below that floor and never cuts an already-later due
// date.
func CheckNudge(loan *Loan, r rules.Rules, now time.Time) (time.Time, error) {
	if !loan.Open() {
		return time.Time{}, apperr.New(apperr.Validation, "loan already returned")
	}
	if loan.LastNudgedAt != nil && now.Sub(*loan.LastNudgedAt) < r.NudgeCooldown() {
		return time.Time{}, apperr.New(apperr.LimitReached, "nudge cooldown active")
	}

	floor := now.Add(time.Duration(r.ShortenedDueDaysAfterNudge) * 24 * time.Hour)
	if loan.DueDate.After(floor) {
		return loan.DueDate, nil
	}
	return floor, nil
}

// InExtensionWindow reports whether a loan is close enough to (or past) its
// due date for the overdue sweep to nudge it.
func InExtensionWindow(loan *Loan, r rules.Rules, now time.Time) bool {
	if !loan.Open() {
		return false
	}
	return loan.DueDate.Sub(now) <= time.Duration(r.ExtensionWindowDays)*24*time.Hour
}
