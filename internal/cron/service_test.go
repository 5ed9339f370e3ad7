package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type lockSet map[string]*fakeLock

func (l lockSet) factory(job string, _ time.Duration) (Lock, error) {
	lock, ok := l[job]
	if !ok {
		lock = &fakeLock{}
		l[job] = lock
	}
	return lock, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func newTestService(t *testing.T, locks lockSet, cronMetrics *metrics.CronJobMetrics, jobs map[*testJob]time.Duration) *Service {
	t.Helper()
	registry := NewRegistry()
	for job, every := range jobs {
		require.NoError(t, registry.Register(job, every))
	}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Locks:    locks.factory,
		Metrics:  cronMetrics,
	})
	require.NoError(t, err)
	return service
}

func TestServiceRunsAllDueJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	locks := lockSet{}
	service := newTestService(t, locks, nil, map[*testJob]time.Duration{ok: time.Hour, failing: time.Hour})

	service.runDue(context.Background())

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, locks["success"].released)
	assert.Equal(t, 1, locks["fail"].released)
}

func TestServiceHonorsPerJobInterval(t *testing.T) {
	hourly := &testJob{name: "hourly"}
	minutely := &testJob{name: "minutely"}
	service := newTestService(t, lockSet{}, nil, map[*testJob]time.Duration{hourly: time.Hour, minutely: time.Minute})

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return clock }
	service.runDue(context.Background())

	clock = clock.Add(2 * time.Minute)
	service.runDue(context.Background())

	assert.Equal(t, 1, hourly.runs)
	assert.Equal(t, 2, minutely.runs)
}

func TestServiceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "outbox-retention"}
	locks := lockSet{"outbox-retention": &fakeLock{held: true}}
	service := newTestService(t, locks, nil, map[*testJob]time.Duration{job: time.Hour})

	service.runDue(context.Background())

	assert.Zero(t, job.runs)
	assert.Zero(t, locks["outbox-retention"].released)
}

func TestServiceRecordsJobOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := &testJob{name: "outbox-retention", err: errors.New("db down")}
	service := newTestService(t, lockSet{}, metrics.NewCronJobMetrics(reg), map[*testJob]time.Duration{job: time.Hour})

	service.runDue(context.Background())

	count, err := testutil.GatherAndCount(reg, "tradelink_cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewServiceRequiresLockFactory(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	assert.Error(t, err)
}
