// Package lock provides short-lived mutual exclusion keyed by name.
//
// Locks are advisory and expire after their TTL, so a crashed holder never blocks
// other workers forever. Release only removes a lock that is still owned by the caller.
package lock

import (
	"context"
	"time"

	apperrors "github.com/allisson/orderflow/internal/errors"
)

// ErrNotAcquired is returned by WithLock when another owner holds the key.
var ErrNotAcquired = apperrors.Wrap(apperrors.ErrLocked, "lock held by another owner")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases. Acquire reports false without error when the key is taken.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

// WithLock runs fn while holding key. It returns ErrNotAcquired without calling fn when the
// key is already held. The lease is released with a context that outlives ctx cancellation.
func WithLock(
	ctx context.Context,
	locker Locker,
	key string,
	ttl time.Duration,
	fn func(ctx context.Context) error,
) (err error) {
	lease, ok, err := locker.Acquire(ctx, key, ttl)
	if err != nil {
		return apperrors.Wrapf(err, "failed to acquire lock %s", key)
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil && err == nil {
			err = apperrors.Wrapf(releaseErr, "failed to release lock %s", key)
		}
	}()

	return fn(ctx)
}
