package main

import (
	"math/rand/v2"
	"time"
)

// pollBackoff spaces relay polls. Each wait gets up to a quarter of itself in jitter
// so replicas drift apart.
type pollBackoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
	jitter  func(time.Duration) time.Duration
}

func newPollBackoff(base, max time.Duration) *pollBackoff {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max < base {
		max = base
	}
	return &pollBackoff{
		base:    base,
		max:     max,
		current: base,
		jitter: func(d time.Duration) time.Duration {
			return rand.N(d/4 + 1)
		},
	}
}

func (b *pollBackoff) idle() time.Duration {
	b.current = b.base
	return b.base + b.jitter(b.base)
}

func (b *pollBackoff) failed() time.Duration {
	b.current = min(b.current*2, b.max)
	return b.current + b.jitter(b.current)
}

func (b *pollBackoff) reset() {
	b.current = b.base
}
