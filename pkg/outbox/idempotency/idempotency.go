// Package idempotency keeps Pub/Sub consumers from applying a domain event twice.
//
// A consumer first claims an event with a short-lived "processing" marker. When its
// handler succeeds the marker becomes "done" for the retention TTL; when it fails the
// marker is removed so redelivery can retry. A claim left by a crashed worker expires
// after ClaimTTL.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ClaimTTL = 5 * time.Minute

	stateProcessing = "processing"
	stateDone       = "done"
)

// ErrInFlight means another worker holds the claim; the message should be redelivered.
var ErrInFlight = errors.New("event is being processed elsewhere")

// Store is the Redis surface the guard needs. *pkg/redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager keeps "done" markers for ttl; zero keeps them without expiry.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Run invokes fn at most once per consumer and event. skipped is true when an earlier
// delivery already completed.
func (m *Manager) Run(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (skipped bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}

	claimed, err := m.store.SetNX(ctx, key, stateProcessing, ClaimTTL)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	if !claimed {
		return m.existing(ctx, key)
	}

	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(ctx, key); delErr != nil {
			return false, errors.Join(err, fmt.Errorf("release claim %s: %w", eventID, delErr))
		}
		return false, err
	}
	if err := m.store.Set(ctx, key, stateDone, m.ttl); err != nil {
		return false, fmt.Errorf("mark %s done: %w", eventID, err)
	}
	return false, nil
}

func (m *Manager) existing(ctx context.Context, key string) (bool, error) {
	state, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// The claim expired between SetNX and Get.
		return false, ErrInFlight
	case err != nil:
		return false, fmt.Errorf("read marker: %w", err)
	case state == stateDone:
		return true, nil
	}
	return false, ErrInFlight
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
