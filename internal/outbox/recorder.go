// Package outbox persists roster change notifications and delivers them to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/activitydirectory/internal/domain"
	"example.com/activitydirectory/internal/events"
)

// execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder writes roster changes into the outbox table. It implements domain.EventRecorder.
type Recorder struct {
	db    execer
	newID func() string
}

// NewRecorder constructs a Recorder backed by db.
func NewRecorder(db execer) *Recorder {
	return &Recorder{db: db, newID: uuid.NewString}
}

// Record inserts the change as an outbox row.
func (r *Recorder) Record(ctx context.Context, change domain.EnrollmentChange) error {
	eventType, err := eventTypeFor(change.Action)
	if err != nil {
		return err
	}
	route, ok := RouteFor(eventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	payload := events.ParticipantChanged{
		EventID:    r.newID(),
		Activity:   change.Activity,
		Email:      change.Email,
		Action:     string(change.Action),
		RosterSize: change.RosterSize,
		Sequence:   change.Sequence,
		OccurredAt: change.OccurredAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	// Keying by activity keeps one roster on one partition; consumers order by sequence.
	if _, err := r.db.Exec(ctx, stmt,
		change.Activity,
		eventType,
		route.Topic,
		route.SchemaSubject,
		change.Activity,
		body,
		payload.EventID,
	); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func eventTypeFor(action domain.Action) (string, error) {
	switch action {
	case domain.ActionSignedUp:
		return events.TypeParticipantSignedUp, nil
	case domain.ActionRemoved:
		return events.TypeParticipantRemoved, nil
	default:
		return "", fmt.Errorf("unsupported roster action %q", action)
	}
}
