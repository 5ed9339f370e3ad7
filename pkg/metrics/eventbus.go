package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventBusMetrics records in-process event dispatch outcomes.
type EventBusMetrics struct {
	dispatched *prometheus.CounterVec
	failed     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewEventBusMetrics registers the event bus metrics on the provided registerer.
func NewEventBusMetrics(reg prometheus.Registerer) *EventBusMetrics {
	if reg == nil {
		return &EventBusMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbus_dispatched_total",
		Help: "Events delivered to a handler.",
	}, []string{"event_type", "handler"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbus_failed_total",
		Help: "Handler invocations that returned an error or panicked.",
	}, []string{"event_type", "handler"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventbus_handler_duration_seconds",
		Help:    "Handler latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(dispatched, failed, duration)
	return &EventBusMetrics{
		dispatched: dispatched,
		failed:     failed,
		duration:   duration,
	}
}

// ObserveDispatch records one handler invocation.
func (m *EventBusMetrics) ObserveDispatch(eventType, handler string, took time.Duration, err error) {
	if m == nil || m.dispatched == nil {
		return
	}
	eventType = normalizeLabel(eventType)
	handler = normalizeLabel(handler)
	m.dispatched.WithLabelValues(eventType, handler).Inc()
	m.duration.WithLabelValues(eventType).Observe(took.Seconds())
	if err != nil {
		m.failed.WithLabelValues(eventType, handler).Inc()
	}
}
