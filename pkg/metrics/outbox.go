package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics counts what the relay did with each outbox row. A nil receiver records
// nothing.
type OutboxMetrics struct {
	published    *prometheus.CounterVec
	retried      *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	batch        prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return nil
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradelink",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events delivered to Pub/Sub.",
		}, []string{"event_type"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradelink",
			Subsystem: "outbox",
			Name:      "retried_total",
			Help:      "Publish attempts that failed and will be retried.",
		}, []string{"event_type"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradelink",
			Subsystem: "outbox",
			Name:      "dead_lettered_total",
			Help:      "Outbox events moved to the DLQ table.",
		}, []string{"event_type", "reason"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tradelink",
			Subsystem: "outbox",
			Name:      "batch_rows",
			Help:      "Rows claimed per relay batch.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
	reg.MustRegister(m.published, m.retried, m.deadLettered, m.batch)
	return m
}

func (m *OutboxMetrics) Published(eventType string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(eventType).Inc()
}

func (m *OutboxMetrics) Retried(eventType string) {
	if m == nil {
		return
	}
	m.retried.WithLabelValues(eventType).Inc()
}

func (m *OutboxMetrics) DeadLettered(eventType, reason string) {
	if m == nil {
		return
	}
	m.deadLettered.WithLabelValues(eventType, reason).Inc()
}

func (m *OutboxMetrics) ObserveBatch(rows int) {
	if m == nil {
		return
	}
	m.batch.Observe(float64(rows))
}
