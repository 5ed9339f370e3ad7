package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Unix(1_767_225_600, 0)

	m.Ran("outbox-retention", 2*time.Second, nil, finished)
	m.Ran("outbox-retention", time.Second, errors.New("db down"), finished)
	m.Skipped("outbox-retention")
	m.Failed("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("outbox-retention", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("outbox-retention", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("outbox-retention", OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", OutcomeFailure)))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("outbox-retention")))

	expected := `
# HELP tradelink_cron_job_last_success_timestamp_seconds Unix time of the last successful run.
# TYPE tradelink_cron_job_last_success_timestamp_seconds gauge
tradelink_cron_job_last_success_timestamp_seconds{job="outbox-retention"} 1.7672256e+09
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tradelink_cron_job_last_success_timestamp_seconds"))
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	assert.Nil(t, NewCronJobMetrics(nil))
	m.Ran("job", time.Second, nil, time.Now())
	m.Failed("job")
	m.Skipped("job")
}
