package cache

import (
	"context"
	"sync"
	"time"

	"github.com/storepulse/backend/internal/domain"
)

// cacheItem represents a single cached detail record with expiration
type cacheItem struct {
	record     *domain.Record
	expiration time.Time
}

// MemoryDetailCache is a thread-safe in-memory detail-record cache with TTL
// support. Get returns a clone so callers can attach per-request fields
// without corrupting the cached copy.
type MemoryDetailCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

// NewMemoryDetailCache creates a new in-memory detail cache
func NewMemoryDetailCache() *MemoryDetailCache {
	cache := &MemoryDetailCache{
		data: make(map[string]cacheItem),
	}

	// Start cleanup goroutine to remove expired entries every 10 minutes
	go cache.cleanupExpired()

	return cache
}

// Get retrieves a detail record from the cache
func (c *MemoryDetailCache) Get(ctx context.Context, key string) (*domain.Record, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	// Check if expired
	if time.Now().After(item.expiration) {
		return nil, domain.ErrCacheMiss
	}

	return item.record.Clone(), nil
}

// Set stores a detail record in the cache with TTL
func (c *MemoryDetailCache) Set(ctx context.Context, key string, rec *domain.Record, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem{
		record:     rec.Clone(),
		expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a detail record from the cache
func (c *MemoryDetailCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryDetailCache) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now()
		for key, item := range c.data {
			if now.After(item.expiration) {
				delete(c.data, key)
			}
		}
		c.mutex.Unlock()
	}
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryDetailCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}
