package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PayloadCache is a TTL cache of raw upstream response payloads, keyed by
// (source, address). A hit lets a run skip an expensive upstream call; the
// cached bytes are the exact body a fetch would have returned.
type PayloadCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewPayloadCache creates a payload cache with the given TTL.
func NewPayloadCache(cache *RedisCache, ttl time.Duration) *PayloadCache {
	return &PayloadCache{cache: cache, ttl: ttl}
}

func payloadKey(source, address string) string {
	return fmt.Sprintf("payload:%s:%s", source, address)
}

// Get returns the cached payload for (source, address), or ok=false on a
// miss. Cache transport errors are returned so callers can decide whether to
// treat them as misses.
func (c *PayloadCache) Get(ctx context.Context, source, address string) ([]byte, bool, error) {
	data, err := c.cache.client.Get(ctx, payloadKey(source, address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return data, true, nil
}

// Set stores a payload under the cache TTL.
func (c *PayloadCache) Set(ctx context.Context, source, address string, payload []byte) error {
	if err := c.cache.client.Set(ctx, payloadKey(source, address), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
