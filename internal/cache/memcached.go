package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/our-story/internal/models"
)

const keyPrefix = "our-story:table:"

// MemcachedCache implements Cache using memcached.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211").
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) *MemcachedCache {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key hashes the table name: memcached keys must be ASCII without spaces and table names are not.
func (c *MemcachedCache) key(k string) string {
	sum := sha1.Sum([]byte(k))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get implements Cache.Get.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.Table, bool, error) {
	if ctx.Err() != nil {
		return models.Table{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.Table{}, false, nil
		}
		return models.Table{}, false, err
	}
	var data models.Table
	if err := json.Unmarshal(item.Value, &data); err != nil {
		return models.Table{}, false, err
	}
	return data, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.Table, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	expSec := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
