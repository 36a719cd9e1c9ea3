// Package cache is the Redis-backed content-addressed response cache
// backing the router's cachedResponse fallback strategy (SUPPLEMENT;
// spec §4.7 leaves the cache optional). Grounded on the teacher's
// webSearchStateService get/set-by-key Redis usage
// (internal/application/service/web_search_state.go).
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "routercache:"

// Cache implements router.ResponseCache against a Redis client.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a Cache. ttl of zero means entries never expire.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached content for key, if present.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores content under key, overwriting any prior entry.
func (c *Cache) Set(ctx context.Context, key string, content string) {
	_ = c.client.Set(ctx, keyPrefix+key, content, c.ttl).Err()
}
