package service

import (
	"context"
	"sync"
	"time"

	"github.com/ignatzorin/tertab-backend/internal/goroutine"
)

const defaultCleanupInterval = 5 * time.Minute

// CacheService provides in-memory caching with TTL.
type CacheService struct {
	mu    sync.RWMutex
	cache map[string]*cacheEntry
	now   func() time.Time
}

type cacheEntry struct {
	data      any
	expiresAt time.Time
}

// NewCacheService creates a cache whose cleanup loop stops with ctx.
func NewCacheService(ctx context.Context) *CacheService {
	cs := &CacheService{
		cache: make(map[string]*cacheEntry),
		now:   time.Now,
	}

	goroutine.Go(ctx, "cache cleanup", func(ctx context.Context) {
		cs.cleanup(ctx, defaultCleanupInterval)
	})

	return cs
}

// Get retrieves a value from cache.
func (cs *CacheService) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.cache[key]
	if !exists {
		return nil, false
	}

	// Expired entries are left for cleanup.
	if !cs.now().Before(entry.expiresAt) {
		return nil, false
	}

	return entry.data, true
}

// Set stores a value in cache with TTL.
func (cs *CacheService) Set(key string, value any, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[key] = &cacheEntry{
		data:      value,
		expiresAt: cs.now().Add(ttl),
	}
}

// GetOrSet retrieves a value from cache or computes it if not found.
// Errors are not cached.
func (cs *CacheService) GetOrSet(key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	if value, found := cs.Get(key); found {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		return nil, err
	}

	cs.Set(key, value, ttl)

	return value, nil
}

// cleanup removes expired entries periodically.
func (cs *CacheService) cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.purgeExpired()
		}
	}
}

func (cs *CacheService) purgeExpired() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.now()
	for key, entry := range cs.cache {
		if !now.Before(entry.expiresAt) {
			delete(cs.cache, key)
		}
	}
}
