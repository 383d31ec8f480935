package domain_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/activitydirectory/internal/domain"
	"example.com/activitydirectory/internal/roster"
)

func newService(t *testing.T, seed []domain.Activity, opts ...domain.Option) *domain.Service {
	t.Helper()
	repo, err := roster.NewMemoryRepository(seed)
	require.NoError(t, err)
	return domain.NewService(repo, opts...)
}

func chessSeed() []domain.Activity {
	return []domain.Activity{{
		Name:            "Chess Club",
		Description:     "Learn strategies and compete in chess tournaments",
		Schedule:        "Fridays, 3:30 PM - 5:00 PM",
		MaxParticipants: 3,
		Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
	}}
}

func TestEnrollAppendsInSignupOrder(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, chessSeed())

	msg, err := svc.Enroll(ctx, "Chess Club", "test@example.com")
	require.NoError(t, err)
	require.Equal(t, "Signed up test@example.com for Chess Club", msg)

	activities, err := svc.ListActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu", "test@example.com"}, activities["Chess Club"].Participants)
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, chessSeed())

	_, err := svc.Enroll(ctx, "Chess Club", "dup@example.com")
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, "Chess Club", "dup@example.com")
	require.ErrorIs(t, err, domain.ErrAlreadySignedUp)
	require.True(t, domain.IsConflict(err))

	activities, err := svc.ListActivities(ctx)
	require.NoError(t, err)
	count := 0
	for _, p := range activities["Chess Club"].Participants {
		if p == "dup@example.com" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, chessSeed())

	msg, err := svc.Withdraw(ctx, "Chess Club", "michael@mergington.edu")
	require.NoError(t, err)
	require.Equal(t, "Removed michael@mergington.edu from Chess Club", msg)

	_, err = svc.Withdraw(ctx, "Chess Club", "michael@mergington.edu")
	require.ErrorIs(t, err, domain.ErrNotSignedUp)
	require.True(t, domain.IsConflict(err))

	activities, err := svc.ListActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"daniel@mergington.edu"}, activities["Chess Club"].Participants)
}

func TestUnknownActivityIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, chessSeed())

	_, err := svc.Enroll(ctx, "Nonexistent", "a@example.com")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
	require.False(t, domain.IsConflict(err))

	_, err = svc.Withdraw(ctx, "Nonexistent", "a@example.com")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)

	_, err = svc.Enroll(ctx, " Chess Club", "a@example.com")
	require.ErrorIs(t, err, domain.ErrActivityNotFound, "names are matched exactly")
}

func TestListActivitiesReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, chessSeed())

	activities, err := svc.ListActivities(ctx)
	require.NoError(t, err)
	chess := activities["Chess Club"]
	chess.Participants[0] = "mallory@example.com"

	again, err := svc.ListActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, "michael@mergington.edu", again["Chess Club"].Participants[0])
}

func TestEnrollPastCapacityIsAcceptedAndLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	svc := newService(t, chessSeed(), domain.WithLogger(zerolog.New(&buf)))

	_, err := svc.Enroll(ctx, "Chess Club", "third@example.com")
	require.NoError(t, err)
	require.Empty(t, buf.String())

	_, err = svc.Enroll(ctx, "Chess Club", "fourth@example.com")
	require.NoError(t, err)
	require.Contains(t, buf.String(), "roster exceeds advertised capacity")

	activities, err := svc.ListActivities(ctx)
	require.NoError(t, err)
	require.Len(t, activities["Chess Club"].Participants, 4)
}

func TestRecorderReceivesChanges(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.September, 1, 15, 30, 0, 0, time.UTC)
	rec := &stubRecorder{}
	svc := newService(t, chessSeed(), domain.WithRecorder(rec), domain.WithClock(func() time.Time { return now }))

	_, err := svc.Enroll(ctx, "Chess Club", "a@example.com")
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, "Chess Club", "a@example.com")
	require.Error(t, err)
	_, err = svc.Withdraw(ctx, "Chess Club", "a@example.com")
	require.NoError(t, err)

	require.Equal(t, []domain.EnrollmentChange{
		{Activity: "Chess Club", Email: "a@example.com", Action: domain.ActionSignedUp, RosterSize: 3, Sequence: 1, OccurredAt: now},
		{Activity: "Chess Club", Email: "a@example.com", Action: domain.ActionRemoved, RosterSize: 2, Sequence: 2, OccurredAt: now},
	}, rec.changes)
}

func TestRecorderFailureDoesNotFailEnroll(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	svc := newService(t, chessSeed(),
		domain.WithRecorder(&stubRecorder{err: errors.New("outbox unavailable")}),
		domain.WithLogger(zerolog.New(&buf)),
	)

	_, err := svc.Enroll(ctx, "Chess Club", "a@example.com")
	require.NoError(t, err)
	require.Contains(t, buf.String(), "outbox unavailable")

	activities, err := svc.ListActivities(ctx)
	require.NoError(t, err)
	require.Contains(t, activities["Chess Club"].Participants, "a@example.com")
}

func TestConcurrentChangesCarryOrderedSequences(t *testing.T) {
	ctx := context.Background()
	rec := &stubRecorder{}
	svc := newService(t, []domain.Activity{{Name: "Drama Club", MaxParticipants: 100}}, domain.WithRecorder(rec))

	const students = 40
	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Enroll(ctx, "Drama Club", fmt.Sprintf("student%d@x.edu", i))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	changes := rec.recorded()
	require.Len(t, changes, students)
	sort.Slice(changes, func(i, j int) bool { return changes[i].Sequence < changes[j].Sequence })
	for i, change := range changes {
		// Each sequence matches the roster size it was taken with.
		require.Equal(t, uint64(i+1), change.Sequence)
		require.Equal(t, i+1, change.RosterSize)
	}
}

type stubRecorder struct {
	mu      sync.Mutex
	changes []domain.EnrollmentChange
	err     error
}

func (r *stubRecorder) Record(_ context.Context, change domain.EnrollmentChange) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

func (r *stubRecorder) recorded() []domain.EnrollmentChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.EnrollmentChange(nil), r.changes...)
}
