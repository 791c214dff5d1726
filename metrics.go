package auth

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts activity events by type.
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink registers the counters on reg. A nil registerer skips registration.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storeauth",
			Name:      "activity_events_total",
			Help:      "Authentication activity events by type.",
		},
		[]string{"event"},
	)
	if reg != nil {
		reg.MustRegister(events)
	}
	return &MetricsSink{events: events}
}

// Record implements ActivitySink.
func (m *MetricsSink) Record(_ context.Context, event ActivityEvent) error {
	m.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// Counter exposes the underlying vector for scraping in tests.
func (m *MetricsSink) Counter() *prometheus.CounterVec {
	return m.events
}
