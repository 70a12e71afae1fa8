package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("exclusive until released", func(t *testing.T) {
		locker := NewLocalLocker()

		lease, ok, err := locker.Acquire(ctx, "saga:resume:1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = locker.Acquire(ctx, "saga:resume:1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = locker.Acquire(ctx, "saga:resume:2", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, lease.Release(ctx))
		_, ok, err = locker.Acquire(ctx, "saga:resume:1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired lease can be taken over", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		locker := NewLocalLocker()
		locker.clock = func() time.Time { return now }

		stale, ok, err := locker.Acquire(ctx, "job", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		now = now.Add(2 * time.Second)
		_, ok, err = locker.Acquire(ctx, "job", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		// The previous owner must not free the new owner's lock.
		require.NoError(t, stale.Release(ctx))
		_, ok, err = locker.Acquire(ctx, "job", time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
