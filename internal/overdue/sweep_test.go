// internal/overdue/sweep_test.go
package overdue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"acervo/internal/apperr"
	"acervo/internal/catalog"
	"acervo/internal/circulation"
	"acervo/internal/membership"
	"acervo/internal/notify"
	"acervo/internal/rules"
)

type fakeRules struct{ r rules.Rules }

func (f *fakeRules) Get(context.Context) (rules.Rules, error) { return f.r, nil }
func (f *fakeRules) Update(_ context.Context, r rules.Rules) (rules.Rules, error) {
	f.r = r
	return r, nil
}

type fakeCatalog struct{}

func (f *fakeCatalog) AddBook(context.Context, catalog.Book) (*catalog.Book, error) { return nil, nil }
func (f *fakeCatalog) GetBook(_ context.Context, id int64) (*catalog.Book, error) {
	return &catalog.Book{ID: id, Title: "Calculus I"}, nil
}
func (f *fakeCatalog) ListBooks(context.Context) ([]*catalog.Book, error)      { return nil, nil }
func (f *fakeCatalog) Search(context.Context, string) ([]*catalog.Book, error) { return nil, nil }
func (f *fakeCatalog) SetReserved(context.Context, int64, bool) error          { return nil }
func (f *fakeCatalog) RemoveBook(context.Context, int64) error                 { return nil }

type fakeMembers struct{}

func (f *fakeMembers) Register(context.Context, membership.RegisterInput) (*membership.User, error) {
	return nil, nil
}
func (f *fakeMembers) Authenticate(context.Context, string, string) (*membership.User, error) {
	return nil, nil
}
func (f *fakeMembers) GetByID(_ context.Context, id int64) (*membership.User, error) {
	return &membership.User{ID: id, Email: "student@usp.br"}, nil
}
func (f *fakeMembers) GetByNUSP(context.Context, string) (*membership.User, error) { return nil, nil }
func (f *fakeMembers) List(context.Context) ([]*membership.User, error)            { return nil, nil }
func (f *fakeMembers) UpdateRole(context.Context, int64, string) error             { return nil }

// fakeNotify records notifications in memory.
type fakeNotify struct {
	recorded []recordedNotice
	existing map[uuid.UUID]*notify.Notification
	emails   []string
}

type recordedNotice struct {
	userID int64
	loanID uuid.UUID
	kind   string
}

func (f *fakeNotify) Record(_ context.Context, userID int64, loanID *uuid.UUID, kind, _ string) error {
	f.recorded = append(f.recorded, recordedNotice{userID: userID, loanID: *loanID, kind: kind})
	return nil
}

func (f *fakeNotify) ListByUser(context.Context, int64) ([]*notify.Notification, error) {
	return nil, nil
}

func (f *fakeNotify) LastForLoan(_ context.Context, loanID uuid.UUID, kind string) (*notify.Notification, error) {
	n := f.existing[loanID]
	if n == nil || n.Kind != kind {
		return nil, nil
	}
	return n, nil
}

func (f *fakeNotify) Email(_ context.Context, to, _, _ string) {
	f.emails = append(f.emails, to)
}

// fakeLoans serves a fixed listing and counts nudges.
type fakeLoans struct {
	circulation.Service
	active []*circulation.AnnotatedLoan
	nudged []uuid.UUID
}

func (f *fakeLoans) ListActiveLoans(context.Context) ([]*circulation.AnnotatedLoan, error) {
	return f.active, nil
}

func (f *fakeLoans) Nudge(_ context.Context, id uuid.UUID) (*circulation.Loan, error) {
	f.nudged = append(f.nudged, id)
	return nil, nil
}

func annotated(loan circulation.Loan, now time.Time) *circulation.AnnotatedLoan {
	return circulation.Annotate(loan, now)
}

func TestSweep(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	r := rules.Defaults()

	overdueLoan := circulation.Loan{
		ID:        uuid.New(),
		BookID:    1,
		StudentID: 7,
		DueDate:   now.AddDate(0, 0, -2),
	}
	remindedLoan := circulation.Loan{
		ID:        uuid.New(),
		BookID:    2,
		StudentID: 7,
		DueDate:   now.AddDate(0, 0, -10),
	}
	recentNotice := circulation.Loan{
		ID:        uuid.New(),
		BookID:    3,
		StudentID: 8,
		DueDate:   now.AddDate(0, 0, -1),
	}
	nearDue := circulation.Loan{
		ID:        uuid.New(),
		BookID:    4,
		StudentID: 9,
		DueDate:   now.AddDate(0, 0, 1), // inside the extension window
	}
	farDue := circulation.Loan{
		ID:        uuid.New(),
		BookID:    5,
		StudentID: 9,
		DueDate:   now.AddDate(0, 0, r.ExtensionWindowDays+3),
	}

	notifier := &fakeNotify{existing: map[uuid.UUID]*notify.Notification{
		// Old first notice: past the reminder cadence, due a reminder.
		remindedLoan.ID: {Kind: notify.KindOverdue, CreatedAt: now.AddDate(0, 0, -(r.OverdueReminderDays + 1))},
		// Fresh first notice: nothing new yet.
		recentNotice.ID: {Kind: notify.KindOverdue, CreatedAt: now.Add(-time.Hour)},
	}}
	loans := &fakeLoans{active: []*circulation.AnnotatedLoan{
		annotated(overdueLoan, now),
		annotated(remindedLoan, now),
		annotated(recentNotice, now),
		annotated(nearDue, now),
		annotated(farDue, now),
	}}

	sweep := NewSweep(&fakeRules{r: r}, loans, &fakeCatalog{}, &fakeMembers{}, notifier, zap.NewNop())
	sweep.now = func() time.Time { return now }

	result, err := sweep.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Scanned)
	assert.Equal(t, 1, result.Notices)
	assert.Equal(t, 1, result.Reminders)
	assert.Equal(t, 1, result.Nudged)

	require.Len(t, notifier.recorded, 2)
	kinds := map[uuid.UUID]string{}
	for _, n := range notifier.recorded {
		kinds[n.loanID] = n.kind
	}
	assert.Equal(t, notify.KindOverdue, kinds[overdueLoan.ID])
	assert.Equal(t, notify.KindOverdueRemind, kinds[remindedLoan.ID])

	// One consolidated email for student 7's two overdue books, none for the
	// student whose notice is still fresh.
	assert.Equal(t, []string{"student@usp.br"}, notifier.emails)

	require.Len(t, loans.nudged, 1)
	assert.Equal(t, nearDue.ID, loans.nudged[0])
}

func TestSweepSkipsNudgeOnCooldown(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	r := rules.Defaults()

	nudgedAt := now.Add(-time.Hour)
	loan := circulation.Loan{
		ID:           uuid.New(),
		BookID:       1,
		StudentID:    7,
		DueDate:      now.AddDate(0, 0, 1),
		LastNudgedAt: &nudgedAt,
	}

	loans := &fakeLoans{active: []*circulation.AnnotatedLoan{annotated(loan, now)}}
	notifier := &fakeNotify{existing: map[uuid.UUID]*notify.Notification{}}

	sweep := NewSweep(&fakeRules{r: r}, loans, &fakeCatalog{}, &fakeMembers{}, notifier, zap.NewNop())
	sweep.now = func() time.Time { return now }

	result, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Nudged)
	assert.Empty(t, loans.nudged)

	// Sanity: a direct nudge would be rejected by the cooldown anyway.
	_, err = circulation.CheckNudge(&loan, r, now)
	assert.Equal(t, apperr.LimitReached, apperr.KindOf(err))
}
