package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// deadLetter copies msgs into outbox_dlq and marks the outbox rows published so
// the dispatcher stops retrying them. Both happen in tx. Each entry keeps the
// retry count its event carried and becomes due after retryDelay.
func deadLetter(ctx context.Context, tx pgx.Tx, msgs []Message, reason string, base time.Duration) error {
	batch := &pgx.Batch{}
	ids := make([]int64, 0, len(msgs))
	for _, msg := range msgs {
		batch.Queue(
			`INSERT INTO outbox_dlq (event_id, aggregate_id, event_type, topic, schema_subject, partition_key, payload, reason, retry_count, next_retry_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW() + $10::interval)`,
			msg.EventID, msg.AggregateID, msg.EventType, msg.Topic, msg.SchemaSubject, msg.PartitionKey, msg.Payload,
			fmt.Sprintf("%s (topic=%s)", reason, msg.Topic),
			msg.RetryCount,
			retryDelay(base, msg.RetryCount),
		)
		ids = append(ids, msg.EventID)
	}
	batch.Queue(`UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("dead-letter %d events: %w", len(msgs), err)
	}
	for _, msg := range msgs {
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

// retryDelay is how long a freshly dead-lettered event waits before the DLQ
// manager may requeue it. The first failure is retried at once.
func retryDelay(base time.Duration, retries int) time.Duration {
	if retries <= 0 {
		return 0
	}
	return backoffDelay(base, retries)
}
