package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func TestRedisLock_OneClaimPerSlot(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	a, err := newRedisLock(store, "cron:weekly", 0)
	require.NoError(t, err)
	b, err := newRedisLock(store, "cron:weekly", 0)
	require.NoError(t, err)

	ok, err := a.Acquire(ctx, "2026-10-19T08:00")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls["cron:weekly:2026-10-19T08:00"])

	ok, err = b.Acquire(ctx, "2026-10-19T08:00")
	require.NoError(t, err)
	assert.False(t, ok)

	// The winner cannot claim its own slot twice either.
	ok, err = a.Acquire(ctx, "2026-10-19T08:00")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.Acquire(ctx, "2026-10-26T08:00")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Errors(t *testing.T) {
	_, err := newRedisLock(newMemoryStore(), "", time.Minute)
	assert.Error(t, err)

	_, err = NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)

	l, _ := newRedisLock(newMemoryStore(), "k", time.Minute)
	_, err = l.Acquire(context.Background(), "")
	assert.Error(t, err)

	store := newMemoryStore()
	store.setErr = errors.New("connection refused")
	l, _ = newRedisLock(store, "k", time.Minute)
	_, err = l.Acquire(context.Background(), "2026-10-19T08:00")
	assert.ErrorIs(t, err, store.setErr)
}
