// Package consumer reads roster events back from Kafka for downstream processing.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/activitydirectory/internal/events"
)

// Reader is the part of *kafka.Reader the processor relies on.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Message is a roster event decoded from its wire frame.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for fetch, decode and handler failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithFetchBackoff sets the pause after a failed fetch.
func WithFetchBackoff(d time.Duration) Option {
	return func(p *Processor) { p.fetchBackoff = d }
}

// Processor feeds messages from a Reader to a Handler. Offsets are committed
// after a successful Handle, and also for records that can never be decoded so
// they do not wedge the partition. Handler failures stay uncommitted and are
// redelivered after a rebalance or restart.
type Processor struct {
	reader       Reader
	handler      Handler
	logger       zerolog.Logger
	fetchBackoff time.Duration
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:       reader,
		handler:      handler,
		logger:       zerolog.Nop(),
		fetchBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until ctx is cancelled or the reader reports a
// context error.
func (p *Processor) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		record, err := p.reader.FetchMessage(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			p.logger.Warn().Err(err).Msg("fetch failed")
			wait(ctx, p.fetchBackoff)
			continue
		}
		p.process(ctx, record)
	}
	return ctx.Err()
}

func (p *Processor) process(ctx context.Context, record kafka.Message) {
	log := p.logger.With().Str("topic", record.Topic).Int("partition", record.Partition).Int64("offset", record.Offset).Logger()

	msg, err := decode(record)
	if err != nil {
		log.Warn().Err(err).Msg("dropping undecodable record")
		observe(record.Topic, "", resultMalformed)
		p.commit(ctx, log, record)
		return
	}

	if err := p.handler.Handle(ctx, msg); err != nil {
		log.Error().Err(err).Str("event_type", msg.EventType).Msg("handler failed")
		observe(msg.Topic, msg.EventType, resultFailed)
		return
	}

	if p.commit(ctx, log, record) {
		observe(msg.Topic, msg.EventType, resultProcessed)
		markLastProcessed(msg)
	}
}

func (p *Processor) commit(ctx context.Context, log zerolog.Logger, record kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, record); err != nil {
		log.Error().Err(err).Msg("commit failed")
		return false
	}
	return true
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func decode(record kafka.Message) (Message, error) {
	schemaID, payload, err := events.DecodeFrame(record.Value)
	if err != nil {
		return Message{}, err
	}

	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	eventType := headers[events.HeaderEventType]
	if eventType == "" {
		return Message{}, fmt.Errorf("missing %s header", events.HeaderEventType)
	}
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:         record.Topic,
		Partition:     record.Partition,
		Offset:        record.Offset,
		Timestamp:     record.Time,
		EventType:     eventType,
		SchemaSubject: headers[events.HeaderSchemaSubject],
		SchemaID:      schemaID,
		Payload:       append(json.RawMessage(nil), payload...),
	}, nil
}
