package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox rows settled by the dispatcher, by result (published or dead_lettered).",
	}, []string{"result"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activity_directory",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time from claiming a batch until it is published or dead-lettered.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "outbox",
		Name:      "dead_lettered_total",
		Help:      "Events written to outbox_dlq, by topic.",
	}, []string{"topic"})

	dlqActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries settled by the manager, by action (requeued or quarantined).",
	}, []string{"action"})
)

var (
	deliveredCounter      = publishedEvents.WithLabelValues("published")
	failedCounter         = publishedEvents.WithLabelValues("dead_lettered")
	dlqRequeuedCounter    = dlqActions.WithLabelValues("requeued")
	dlqQuarantinedCounter = dlqActions.WithLabelValues("quarantined")
)

func init() {
	prometheus.MustRegister(publishedEvents, batchDuration, dlqCounter, dlqActions)
}
