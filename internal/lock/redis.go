package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "orderflow:lock:"

// releaseScript deletes the key only while it still holds the caller's owner token,
// so an expired lease can never delete the lock of the worker that took over.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key if its value equals owner, in one atomic step.
	CompareAndDelete(ctx context.Context, key, owner string) (bool, error)
}

// RedisConfig holds the redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient opens a redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisLocker implements Locker using Redis SETNX with a TTL and an owner token.
type RedisLocker struct {
	store redisStore
}

// NewRedisLocker creates a RedisLocker backed by client.
func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{store: &cmdableStore{client: client}}
}

func newRedisLockerWithStore(store redisStore) *RedisLocker {
	return &RedisLocker{store: store}
}

// Acquire tries to own key for ttl.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	if key == "" {
		return nil, false, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, false, errors.New("lock ttl must be positive")
	}

	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, keyNamespace+key, owner, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{store: l.store, key: keyNamespace + key, owner: owner}, true, nil
}

type redisLease struct {
	store redisStore
	key   string
	owner string
}

// Release frees the lock only if the owner value still matches. A lease that expired
// or was taken over releases nothing.
func (l *redisLease) Release(ctx context.Context) error {
	if _, err := l.store.CompareAndDelete(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// cmdableStore adapts redis.Cmdable to redisStore.
type cmdableStore struct {
	client redis.Cmdable
}

func (s *cmdableStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *cmdableStore) CompareAndDelete(ctx context.Context, key, owner string) (bool, error) {
	deleted, err := releaseScript.Run(ctx, s.client, []string{key}, owner).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}
