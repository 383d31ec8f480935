// Package observability holds the Prometheus collectors shared by the directory service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	enrollmentCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "roster",
		Name:      "changes_total",
		Help:      "Roster change attempts grouped by activity, action and outcome.",
	}, []string{"activity", "action", "outcome"})

	rosterSizeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "activity_directory",
		Subsystem: "roster",
		Name:      "participants",
		Help:      "Current number of participants enrolled per activity.",
	}, []string{"activity"})

	overCapacityCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "roster",
		Name:      "over_capacity_total",
		Help:      "Signups accepted while the roster exceeded max_participants.",
	}, []string{"activity"})

	eventFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "events",
		Name:      "record_failures_total",
		Help:      "Roster changes that could not be written to the outbox.",
	})
)

func init() {
	prometheus.MustRegister(enrollmentCounter, rosterSizeGauge, overCapacityCounter, eventFailureCounter)
}

// RecordEnrollment counts a signup or removal attempt.
func RecordEnrollment(activity, action, outcome string) {
	enrollmentCounter.WithLabelValues(activity, action, outcome).Inc()
}

// RecordRosterSize sets the participant gauge for an activity.
func RecordRosterSize(activity string, size int) {
	rosterSizeGauge.WithLabelValues(activity).Set(float64(size))
}

// RecordOverCapacity counts a signup that left the roster above capacity.
func RecordOverCapacity(activity string) {
	overCapacityCounter.WithLabelValues(activity).Inc()
}

// RecordEventFailure counts a roster change whose notification was lost.
func RecordEventFailure() {
	eventFailureCounter.Inc()
}
