package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tradelink-backend/pkg/instance"
)

const lockScope = "cron"

// Lock guards one job across cron-worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type LockFactory func(job string, ttl time.Duration) (Lock, error)

// Locker is the owner-scoped lock surface of pkg/redis.Client.
type Locker interface {
	AcquireLock(ctx context.Context, scope, id, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, scope, id, owner string) error
	LockKey(scope, id string) string
	Get(ctx context.Context, key string) (string, error)
}

// RedisLock holds tl:lock:cron:<job>. The stored value is instance/uuid so a
// stuck key can be traced to a replica.
type RedisLock struct {
	locker Locker
	job    string
	ttl    time.Duration
	owner  string
}

func NewRedisLock(locker Locker, job string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case locker == nil:
		return nil, errors.New("redis locker required")
	case job == "":
		return nil, errors.New("job name is required")
	case ttl <= 0:
		return nil, errors.New("lock ttl must be positive")
	}
	return &RedisLock{locker: locker, job: job, ttl: ttl}, nil
}

func RedisLockFactory(locker Locker) LockFactory {
	return func(job string, ttl time.Duration) (Lock, error) {
		return NewRedisLock(locker, job, ttl)
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := instance.ID() + "/" + uuid.NewString()
	ok, err := l.locker.AcquireLock(ctx, lockScope, l.job, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire cron lock %s: %w", l.job, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Holder returns the owner value currently stored, or "" when the job is free.
func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	value, err := l.locker.Get(ctx, l.locker.LockKey(lockScope, l.job))
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

// Release is a no-op unless this lock acquired the key and still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	owner := l.owner
	if owner == "" {
		return nil
	}
	l.owner = ""
	if err := l.locker.ReleaseLock(ctx, lockScope, l.job, owner); err != nil {
		return fmt.Errorf("release cron lock %s: %w", l.job, err)
	}
	return nil
}
