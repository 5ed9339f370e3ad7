package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetricsLabelsByEventType(t *testing.T) {
	m := NewOutboxMetrics(prometheus.NewRegistry())

	m.Published("order_created")
	m.Published("order_created")
	m.Retried("complaint_filed")
	m.DeadLettered("message_sent", "max_attempts")
	m.ObserveBatch(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("order_created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retried.WithLabelValues("complaint_filed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deadLettered.WithLabelValues("message_sent", "max_attempts")))
}

func TestOutboxMetricsBatchHistogram(t *testing.T) {
	m := NewOutboxMetrics(prometheus.NewRegistry())

	m.ObserveBatch(3)
	m.ObserveBatch(0)

	var sample dto.Metric
	require.NoError(t, m.batch.Write(&sample))
	assert.Equal(t, uint64(2), sample.GetHistogram().GetSampleCount())
	assert.Equal(t, 3.0, sample.GetHistogram().GetSampleSum())
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.Published("x")
	m.Retried("x")
	m.DeadLettered("x", "y")
	m.ObserveBatch(1)
}
