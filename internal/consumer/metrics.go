package consumer

import "github.com/prometheus/client_golang/prometheus"

const (
	resultProcessed = "processed"
	resultFailed    = "handler_error"
	resultMalformed = "malformed"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka records seen by the audit consumer, by outcome.",
	}, []string{"topic", "event_type", "result"})

	lastProcessedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "activity_directory",
		Subsystem: "consumer",
		Name:      "last_processed_timestamp_seconds",
		Help:      "Kafka timestamp of the newest record handled per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(messagesCounter, lastProcessedGauge)
}

func observe(topic, eventType, result string) {
	messagesCounter.WithLabelValues(topic, eventType, result).Inc()
}

func markLastProcessed(msg Message) {
	if msg.Timestamp.IsZero() {
		return
	}
	lastProcessedGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
}
