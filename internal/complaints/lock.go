package complaints

import (
	"context"
	"strconv"
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/google/uuid"
)

const actionLockScope = "complaint-action"

// Locker is the distributed lock primitive; *redis.Client satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, scope, id, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, scope, id, owner string) error
}

// ActionLock makes resolve and escalate mutually exclusive for one observed
// version of a complaint. The key includes the version, so a successful
// action (which bumps the version) never blocks the next legal step, while a
// competing action against the same version is turned away until the TTL
// lapses or the holder fails and releases.
type ActionLock struct {
	locker Locker
	ttl    time.Duration
}

// NewActionLock builds the lock over locker.
func NewActionLock(locker Locker, ttl time.Duration) (*ActionLock, error) {
	if locker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "locker required")
	}
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "action lock ttl must be positive")
	}
	return &ActionLock{locker: locker, ttl: ttl}, nil
}

// Acquire claims the lock for the complaint's current version. The returned
// release func must be called only when the guarded action failed.
func (l *ActionLock) Acquire(ctx context.Context, complaint *models.Complaint) (func(context.Context) error, error) {
	id := lockID(complaint)
	owner := uuid.NewString()
	ok, err := l.locker.AcquireLock(ctx, actionLockScope, id, owner, l.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire complaint action lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "another action on this complaint is in progress").
			WithDetails(map[string]any{"complaint_id": complaint.ID})
	}
	return func(ctx context.Context) error {
		return l.locker.ReleaseLock(ctx, actionLockScope, id, owner)
	}, nil
}

func lockID(complaint *models.Complaint) string {
	return complaint.ID.String() + ":v" + strconv.Itoa(complaint.Version)
}
