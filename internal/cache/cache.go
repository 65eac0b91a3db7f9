package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/our-story/internal/models"
)

// Cache stores the last successful payload of each table, keyed by table name.
// Get returns (snapshot, true, nil) on hit and (zero, false, nil) on miss or expiry.
type Cache interface {
	Get(ctx context.Context, key string) (models.Table, bool, error)
	Set(ctx context.Context, key string, value models.Table, ttl time.Duration) error
}

// InMemoryCache implements Cache with a map and TTL-based expiration.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.Table
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the snapshot for key if present and not expired. Expired entries are removed.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Table, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Table{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.Table{}, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.Table{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores a snapshot that expires after ttl.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Table, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
