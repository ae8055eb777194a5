package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultLockTTL keeps a claimed slot visible long after the run, so a
// replica whose clock lags behind cannot claim the same slot again.
const defaultLockTTL = 24 * time.Hour

// Lock makes a job run on one replica per scheduled slot.
type Lock interface {
	// Acquire claims slot. Only the first caller for a slot gets true.
	Acquire(ctx context.Context, slot string) (bool, error)
}

// redisStore is the subset of Redis used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}

// RedisLock implements Lock with one SETNX key per slot. Claims are never
// released; they expire after the TTL.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock builds a lock on a go-redis client.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	return newRedisLock(goRedisStore{client}, key, ttl)
}

func newRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	owner, err := os.Hostname()
	if err != nil || owner == "" {
		owner = "unknown"
	}
	return &RedisLock{client: client, key: key, ttl: ttl, owner: owner}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, slot string) (bool, error) {
	if slot == "" {
		return false, errors.New("lock slot is required")
	}
	key := l.key + ":" + slot
	ok, err := l.client.SetNX(ctx, key, l.owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

type goRedisStore struct {
	c *redis.Client
}

func (s goRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.c.SetNX(ctx, key, value, ttl).Result()
}
