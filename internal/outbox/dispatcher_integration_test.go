//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/activitydirectory/internal/domain"
	"example.com/activitydirectory/internal/testsupport"
)

func TestRecorderAndDispatcherPublish(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	rec := NewRecorder(pool)
	require.NoError(t, rec.Record(ctx, domain.EnrollmentChange{
		Activity: "Chess Club", Email: "test@example.com", Action: domain.ActionSignedUp, RosterSize: 3, Sequence: 1, OccurredAt: time.Now().UTC(),
	}))
	require.NoError(t, rec.Record(ctx, domain.EnrollmentChange{
		Activity: "Chess Club", Email: "test@example.com", Action: domain.ActionRemoved, RosterSize: 2, Sequence: 2, OccurredAt: time.Now().UTC(),
	}))

	producer := &stubProducer{}
	d := NewDispatcher(pool, producer, &stubRegistry{id: 42}, WithBatchSize(5))
	before := testutil.ToFloat64(deliveredCounter)
	batchesBefore := histogramSampleCount(t)

	settled, err := d.drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, settled)

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0], 2)
	require.InDelta(t, before+2, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Equal(t, batchesBefore+1, histogramSampleCount(t))

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 2, published)

	settled, err = d.drain(ctx)
	require.NoError(t, err)
	require.Zero(t, settled)
	require.Len(t, producer.writes, 1, "published rows are not re-sent")
}

func TestDispatcherRoutesFailuresToDLQAndManagerRequeues(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	require.NoError(t, NewRecorder(pool).Record(ctx, domain.EnrollmentChange{
		Activity: "Art Class", Email: "a@example.com", Action: domain.ActionSignedUp, RosterSize: 1, Sequence: 1, OccurredAt: time.Now().UTC(),
	}))

	d := NewDispatcher(pool, &stubProducer{err: errors.New("broker down")}, &stubRegistry{id: 1}, WithDispatchLogger(zerolog.New(zerolog.NewTestWriter(t))))
	settled, err := d.drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)

	manager := NewDLQManager(pool, 3, time.Second)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Zero(t, dlqCount)

	var pending, retries int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*), MAX(retry_count) FROM outbox WHERE published_at IS NULL`).Scan(&pending, &retries))
	require.Equal(t, 1, pending)
	require.Equal(t, 1, retries)
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, aggregate_id, event_type, topic, schema_subject, partition_key, payload, reason, retry_count, next_retry_at)
         VALUES (1, 'Chess Club', 'activity.participant_signed_up', 'activity_enrollments', 'activity_enrollments-value', 'Chess Club', '{}', 'broker down', 3, NOW())`)
	require.NoError(t, err)

	processed, err := NewDLQManager(pool, 3, time.Second).RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func TestPersistentPublishFailureEndsInQuarantine(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	require.NoError(t, NewRecorder(pool).Record(ctx, domain.EnrollmentChange{
		Activity: "Soccer Club", Email: "s@example.com", Action: domain.ActionSignedUp, RosterSize: 1, Sequence: 1, OccurredAt: time.Now().UTC(),
	}))

	const maxRetries = 3
	d := NewDispatcher(pool, &stubProducer{err: errors.New("broker down")}, &stubRegistry{id: 1},
		WithRetryBaseDelay(time.Millisecond))
	manager := NewDLQManager(pool, maxRetries, time.Millisecond)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		settled, err := d.drain(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, settled)

		time.Sleep(20 * time.Millisecond)
		processed, err := manager.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, processed)

		var retries int
		require.NoError(t, pool.QueryRow(ctx, `SELECT retry_count FROM outbox WHERE published_at IS NULL`).Scan(&retries))
		require.Equal(t, attempt, retries)
	}

	settled, err := d.drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	time.Sleep(20 * time.Millisecond)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var quarantined, retries int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(retry_count) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined, &retries))
	require.Equal(t, 1, quarantined)
	require.Equal(t, maxRetries, retries)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Zero(t, pending)

	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed, "quarantined entries are not picked up again")
}
