// Package domain defines the business logic for the activity directory.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/activitydirectory/internal/observability"
)

var (
	// ErrActivityNotFound is returned when no activity matches the requested name.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrAlreadySignedUp is returned when the email is already on the roster.
	ErrAlreadySignedUp = errors.New("student already signed up for this activity")
	// ErrNotSignedUp is returned when withdrawing an email that is not on the roster.
	ErrNotSignedUp = errors.New("student is not signed up for this activity")
)

// IsConflict reports whether err is a roster membership conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySignedUp) || errors.Is(err, ErrNotSignedUp)
}

// Action names the roster transition carried by an EnrollmentChange.
type Action string

const (
	ActionSignedUp Action = "signed_up"
	ActionRemoved  Action = "removed"
)

// EnrollmentChange describes a successful roster mutation.
type EnrollmentChange struct {
	Activity   string
	Email      string
	Action     Action
	RosterSize int
	// Sequence is the activity's Revision after the change.
	Sequence   uint64
	OccurredAt time.Time
}

// Repository owns the activity collection. Enroll and Withdraw must perform their
// membership check and the write atomically for a given activity.
type Repository interface {
	List(ctx context.Context) ([]Activity, error)
	Enroll(ctx context.Context, activityName, email string) (Activity, error)
	Withdraw(ctx context.Context, activityName, email string) (Activity, error)
}

// EventRecorder receives roster changes after they have been applied.
type EventRecorder interface {
	Record(ctx context.Context, change EnrollmentChange) error
}

// NoopRecorder discards every change.
type NoopRecorder struct{}

// Record performs no action.
func (NoopRecorder) Record(context.Context, EnrollmentChange) error { return nil }

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithRecorder publishes roster changes to recorder.
func WithRecorder(recorder EventRecorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithLogger overrides the logger used to report warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used to stamp changes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates directory reads and roster changes.
type Service struct {
	repo     Repository
	recorder EventRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		recorder: NoopRecorder{},
		logger:   zerolog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActivities returns every activity keyed by name.
func (s *Service) ListActivities(ctx context.Context) (map[string]Activity, error) {
	activities, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Activity, len(activities))
	for _, a := range activities {
		out[a.Name] = a
	}
	return out, nil
}

// Enroll appends email to the roster of the named activity. Capacity is advertised
// but not enforced; a roster that grows past it is only reported.
func (s *Service) Enroll(ctx context.Context, activityName, email string) (string, error) {
	activity, err := s.repo.Enroll(ctx, activityName, email)
	recordOutcome(activityName, ActionSignedUp, err)
	if err != nil {
		return "", err
	}

	if activity.OverCapacity() {
		observability.RecordOverCapacity(activity.Name)
		s.logger.Warn().
			Str("activity", activity.Name).
			Int("participants", len(activity.Participants)).
			Int("max_participants", activity.MaxParticipants).
			Msg("roster exceeds advertised capacity")
	}

	s.applied(ctx, activity, email, ActionSignedUp)
	return fmt.Sprintf("Signed up %s for %s", email, activityName), nil
}

// Withdraw removes email from the roster of the named activity.
func (s *Service) Withdraw(ctx context.Context, activityName, email string) (string, error) {
	activity, err := s.repo.Withdraw(ctx, activityName, email)
	recordOutcome(activityName, ActionRemoved, err)
	if err != nil {
		return "", err
	}

	s.applied(ctx, activity, email, ActionRemoved)
	return fmt.Sprintf("Removed %s from %s", email, activityName), nil
}

// applied runs outside the roster lock, so changes to one activity may reach the
// recorder out of order; Sequence lets consumers restore it.
func (s *Service) applied(ctx context.Context, activity Activity, email string, action Action) {
	change := EnrollmentChange{
		Activity:   activity.Name,
		Email:      email,
		Action:     action,
		RosterSize: len(activity.Participants),
		Sequence:   activity.Revision,
		OccurredAt: s.now(),
	}
	// The roster is authoritative; a lost notification must not undo the change.
	if err := s.recorder.Record(ctx, change); err != nil {
		observability.RecordEventFailure()
		s.logger.Error().Err(err).
			Str("activity", activity.Name).
			Str("action", string(action)).
			Msg("failed to record enrollment change")
	}
}

// recordOutcome labels unknown names as "unknown" so arbitrary path segments
// cannot grow the metric cardinality.
func recordOutcome(activityName string, action Action, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrActivityNotFound):
		activityName, outcome = "unknown", "not_found"
	case IsConflict(err):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	observability.RecordEnrollment(activityName, string(action), outcome)
}
