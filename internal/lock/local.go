package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	clock func() time.Time
}

type localEntry struct {
	owner     string
	expiresAt time.Time
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]localEntry),
		clock: time.Now,
	}
}

// Acquire takes key for ttl unless a live lease exists.
func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return nil, false, nil
	}

	owner := uuid.NewString()
	l.held[key] = localEntry{owner: owner, expiresAt: now.Add(ttl)}
	return &localLease{locker: l, key: key, owner: owner}, true, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	owner  string
}

func (l *localLease) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if entry, ok := l.locker.held[l.key]; ok && entry.owner == l.owner {
		delete(l.locker.held, l.key)
	}
	return nil
}
