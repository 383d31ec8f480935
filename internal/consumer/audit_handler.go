package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"example.com/activitydirectory/internal/events"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditHandler appends every roster event to enrollment_event_log.
type AuditHandler struct {
	db execer
}

// NewAuditHandler constructs a handler backed by db.
func NewAuditHandler(db execer) *AuditHandler {
	return &AuditHandler{db: db}
}

// Handle stores msg. Redelivered offsets are ignored.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	var change events.ParticipantChanged
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}

	_, err := h.db.Exec(ctx,
		`INSERT INTO enrollment_event_log (event_type, activity, email, action, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		change.Activity,
		change.Email,
		change.Action,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
		msg.Timestamp,
	)
	return err
}
