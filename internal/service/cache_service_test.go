package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*CacheService, *time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cs := NewCacheService(ctx)
	cs.now = func() time.Time { return now }
	return cs, &now
}

func TestCacheService_TTL(t *testing.T) {
	cs, now := newTestCache(t)

	cs.Set("k", "v", time.Minute)
	value, ok := cs.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", value)

	*now = now.Add(time.Minute)
	_, ok = cs.Get("k")
	assert.False(t, ok)

	cs.purgeExpired()
	cs.mu.RLock()
	assert.Empty(t, cs.cache)
	cs.mu.RUnlock()
}

func TestCacheService_GetOrSetDoesNotCacheErrors(t *testing.T) {
	cs, _ := newTestCache(t)
	calls := 0

	_, err := cs.GetOrSet("k", time.Minute, func() (any, error) {
		calls++
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	for i := 0; i < 2; i++ {
		value, err := cs.GetOrSet("k", time.Minute, func() (any, error) {
			calls++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, value)
	}
	assert.Equal(t, 2, calls)
}
