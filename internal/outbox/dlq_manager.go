package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxBackoff        = time.Hour
	defaultMaxRetries = 5
	defaultBaseDelay  = time.Minute

	dueEntriesQuery = `SELECT dlq_id, event_id, aggregate_id, event_type, topic, schema_subject, partition_key, payload, retry_count
        FROM outbox_dlq
        WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
        ORDER BY created_at
        LIMIT $1`
)

// dlqEntry is an outbox_dlq row that is due for another attempt.
type dlqEntry struct {
	ID            int64  `db:"dlq_id"`
	EventID       int64  `db:"event_id"`
	AggregateID   string `db:"aggregate_id"`
	EventType     string `db:"event_type"`
	Topic         string `db:"topic"`
	SchemaSubject string `db:"schema_subject"`
	PartitionKey  string `db:"partition_key"`
	Payload       []byte `db:"payload"`
	RetryCount    int    `db:"retry_count"`
}

// DLQManager moves dead-lettered events back into the outbox and quarantines
// the ones that exhausted their retries.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager. Non-positive settings fall back to
// five retries and a one minute base delay.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &DLQManager{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay}
}

// RunOnce settles up to batchSize due entries and returns how many succeeded.
// Per-entry failures are joined into the returned error.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	rows, err := m.pool.Query(ctx, dueEntriesQuery, batchSize)
	if err != nil {
		return 0, fmt.Errorf("select due dlq entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[dlqEntry])
	if err != nil {
		return 0, fmt.Errorf("scan dlq entries: %w", err)
	}

	var (
		errs    error
		settled int
	)
	for _, entry := range entries {
		if entry.RetryCount >= m.maxRetries {
			err = m.quarantine(ctx, entry)
		} else {
			err = m.requeue(ctx, entry)
		}
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("dlq entry %d: %w", entry.ID, err))
			continue
		}
		settled++
	}
	return settled, errs
}

func (m *DLQManager) quarantine(ctx context.Context, entry dlqEntry) error {
	if _, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`,
		fmt.Sprintf("retry limit %d reached", m.maxRetries), entry.ID,
	); err != nil {
		return err
	}
	dlqQuarantinedCounter.Inc()
	return nil
}

// requeue swaps the entry back into the outbox with its retry count bumped, so a
// later dead-letter of the same event resumes counting toward maxRetries. When
// the swap fails the entry stays dead-lettered with its next attempt pushed out.
func (m *DLQManager) requeue(ctx context.Context, entry dlqEntry) error {
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if entry.SchemaSubject == "" {
			return errors.New("missing schema_subject")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO outbox (aggregate_id, event_type, topic, schema_subject, partition_key, payload, retry_count)
             VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			entry.AggregateID, entry.EventType, entry.Topic, entry.SchemaSubject, entry.PartitionKey, entry.Payload,
			entry.RetryCount+1,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID)
		return err
	})
	if err == nil {
		dlqRequeuedCounter.Inc()
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	return m.reschedule(ctx, entry, err)
}

func (m *DLQManager) reschedule(ctx context.Context, entry dlqEntry, cause error) error {
	_, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq
            SET retry_count = retry_count + 1,
                last_attempt_at = NOW(),
                next_retry_at = NOW() + $1::interval,
                reason = $2
          WHERE dlq_id = $3`,
		backoffDelay(m.baseDelay, entry.RetryCount+1), cause.Error(), entry.ID,
	)
	return err
}

// backoffDelay is base doubled for every attempt after the first, capped at one hour.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 20 {
		return maxBackoff
	}
	if delay := base << shift; delay > 0 && delay < maxBackoff {
		return delay
	}
	return maxBackoff
}
