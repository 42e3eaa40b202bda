package services

import (
	"sync"
	"time"
)

// CacheService holds values until their TTL passes. Expired entries are
// dropped lazily on read.
type CacheService[T any] struct {
	mu    sync.RWMutex
	items map[string]cacheItem[T]
	now   func() time.Time
}

type cacheItem[T any] struct {
	value      T
	expiration time.Time
}

// NewCacheService creates an empty cache
func NewCacheService[T any]() *CacheService[T] {
	return &CacheService[T]{
		items: make(map[string]cacheItem[T]),
		now:   time.Now,
	}
}

// Get retrieves a live value from cache
func (cs *CacheService[T]) Get(key string) (T, bool) {
	cs.mu.RLock()
	item, exists := cs.items[key]
	cs.mu.RUnlock()

	if !exists || !cs.now().Before(item.expiration) {
		if exists {
			cs.Delete(key)
		}
		var zero T
		return zero, false
	}
	return item.value, true
}

// Set stores a value in cache with TTL
func (cs *CacheService[T]) Set(key string, value T, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.items[key] = cacheItem[T]{
		value:      value,
		expiration: cs.now().Add(ttl),
	}
}

// Delete removes a value from cache
func (cs *CacheService[T]) Delete(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.items, key)
}

// Clear removes all values
func (cs *CacheService[T]) Clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.items = make(map[string]cacheItem[T])
}
