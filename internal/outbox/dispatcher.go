package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/activitydirectory/internal/events"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 25

	claimQuery = `SELECT event_id, aggregate_id, event_type, topic, schema_subject, partition_key, payload, retry_count
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`
)

// publisher is satisfied by *kafka.Writer.
type publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(ctx context.Context, subject, schema string) (int, error)
}

// Message is an outbox row claimed for delivery.
type Message struct {
	EventID       int64           `db:"event_id"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Topic         string          `db:"topic"`
	SchemaSubject string          `db:"schema_subject"`
	PartitionKey  string          `db:"partition_key"`
	Payload       json.RawMessage `db:"payload"`
	// RetryCount is the number of times the event has come back from the DLQ.
	RetryCount    int             `db:"retry_count"`
}

// DispatcherOption tunes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the logger used for delivery failures.
func WithDispatchLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithPollInterval sets how often the outbox is drained. Non-positive values are ignored.
func WithPollInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithBatchSize caps the rows claimed per pass. Non-positive values are ignored.
func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithRetryBaseDelay sets the backoff base applied when a requeued event fails
// again. Non-positive values are ignored.
func WithRetryBaseDelay(base time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if base > 0 {
			d.retryBase = base
		}
	}
}

// Dispatcher drains the outbox table and publishes roster events to Kafka.
// A batch that cannot be published is dead-lettered as a whole.
type Dispatcher struct {
	pool      *pgxpool.Pool
	publisher publisher
	registry  schemaRegistrar
	logger    zerolog.Logger
	interval  time.Duration
	batchSize int
	retryBase time.Duration

	mu        sync.Mutex
	schemaIDs map[string]int
	done      chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, pub publisher, registry schemaRegistrar, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pool:      pool,
		publisher: pub,
		registry:  registry,
		logger:    zerolog.Nop(),
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		retryBase: defaultBaseDelay,
		schemaIDs: make(map[string]int),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drains the outbox every poll interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("outbox dispatch failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// drain settles one batch and reports how many rows left the pending set.
func (d *Dispatcher) drain(ctx context.Context) (int, error) {
	claimed, err := d.claim(ctx)
	if err != nil || len(claimed) == 0 {
		return 0, err
	}

	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if pubErr := d.publish(ctx, claimed); pubErr != nil {
		d.logger.Warn().Err(pubErr).Int("events", len(claimed)).Msg("publish failed, dead-lettering batch")
		failedCounter.Add(float64(len(claimed)))
		err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
			return deadLetter(ctx, tx, claimed, pubErr.Error(), d.retryBase)
		})
		if err != nil {
			return 0, err
		}
		return len(claimed), nil
	}

	if _, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, eventIDs(claimed)); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	deliveredCounter.Add(float64(len(claimed)))
	return len(claimed), nil
}

func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	var claimed []Message
	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, claimQuery, d.batchSize)
		if err != nil {
			return err
		}
		claimed, err = pgx.CollectRows(rows, pgx.RowToStructByName[Message])
		if err != nil || len(claimed) == 0 {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, eventIDs(claimed))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}
	return claimed, nil
}

func (d *Dispatcher) publish(ctx context.Context, msgs []Message) error {
	records := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		route, ok := RouteFor(msg.EventType)
		if !ok {
			return fmt.Errorf("event %d: no route for event_type %q", msg.EventID, msg.EventType)
		}
		schemaID, err := d.schemaID(ctx, msg.SchemaSubject, route.Schema)
		if err != nil {
			return fmt.Errorf("resolve schema %s: %w", msg.SchemaSubject, err)
		}
		records = append(records, kafka.Message{
			Topic: msg.Topic,
			Key:   []byte(msg.PartitionKey),
			Value: events.EncodeFrame(schemaID, msg.Payload),
			Headers: []kafka.Header{
				{Key: events.HeaderEventType, Value: []byte(msg.EventType)},
				{Key: events.HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			},
		})
	}
	return d.publisher.WriteMessages(ctx, records...)
}

// schemaID resolves the registry ID for subject once per process.
func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	d.mu.Lock()
	id, ok := d.schemaIDs[subject]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.schemaIDs[subject] = id
	d.mu.Unlock()
	return id, nil
}

func eventIDs(msgs []Message) []int64 {
	ids := make([]int64, len(msgs))
	for i, msg := range msgs {
		ids[i] = msg.EventID
	}
	return ids
}
