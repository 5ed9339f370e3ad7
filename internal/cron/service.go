package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/metrics"
)

const defaultTick = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
	// Tick is how often due jobs are checked; each job still runs on its own cadence.
	Tick time.Duration
}

// Service runs each registered job when its interval has elapsed, holding that job's
// lock for the run so only one replica executes it.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    map[string]Lock
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	lastRun  map[string]time.Time
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	locks := make(map[string]Lock, len(registry.entries))
	for _, entry := range registry.Scheduled() {
		lock, err := params.Locks(entry.Job.Name(), entry.Every)
		if err != nil {
			return nil, fmt.Errorf("lock for %s: %w", entry.Job.Name(), err)
		}
		locks[entry.Job.Name()] = lock
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    locks,
		metrics:  params.Metrics,
		tick:     tick,
		lastRun:  map[string]time.Time{},
		now:      time.Now,
	}, nil
}

// Run checks for due jobs immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Service) runDue(ctx context.Context) {
	now := s.now()
	for _, entry := range s.registry.Scheduled() {
		name := entry.Job.Name()
		if last, ok := s.lastRun[name]; ok && now.Sub(last) < entry.Every {
			continue
		}
		s.lastRun[name] = now
		s.runJob(ctx, entry.Job)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	lock := s.locks[job.Name()]

	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "cron lock acquire failed", err)
		s.metrics.Failed(job.Name())
		return
	}
	if !locked {
		if held, ok := lock.(interface {
			Holder(context.Context) (string, error)
		}); ok {
			if owner, err := held.Holder(jobCtx); err == nil && owner != "" {
				jobCtx = s.logg.WithField(jobCtx, "holder", owner)
			}
		}
		s.logg.Info(jobCtx, "job held by another instance; skipping")
		s.metrics.Skipped(job.Name())
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.logg.Error(jobCtx, "cron lock release failed", err)
		}
	}()

	start := s.now()
	err = job.Run(jobCtx)
	finished := s.now()
	duration := finished.Sub(start)
	s.metrics.Ran(job.Name(), duration, err, finished)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Info(jobCtx, "job completed")
}
