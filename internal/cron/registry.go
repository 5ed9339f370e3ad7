package cron

import (
	"context"
	"fmt"
	"time"
)

// Job is one unit of periodic maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduled pairs a job with its cadence.
type Scheduled struct {
	Job   Job
	Every time.Duration
}

// Registry holds the scheduled jobs keyed by name.
type Registry struct {
	entries []Scheduled
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register adds job to run every interval. Names must be unique since they key the
// distributed lock and the metrics labels.
func (r *Registry) Register(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name())
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.entries = append(r.entries, Scheduled{Job: job, Every: every})
	return nil
}

// Scheduled returns a copy of the entries in registration order.
func (r *Registry) Scheduled() []Scheduled {
	out := make([]Scheduled, len(r.entries))
	copy(out, r.entries)
	return out
}
