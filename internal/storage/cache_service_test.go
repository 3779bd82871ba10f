package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPayloadCache(t *testing.T, ttl time.Duration) (*PayloadCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewPayloadCache(NewRedisCacheFromClient(client), ttl), mr
}

func TestPayloadCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then hit round-trips the payload", func(t *testing.T) {
		cache, _ := setupPayloadCache(t, time.Minute)

		_, ok, err := cache.Get(ctx, "debank", "0xabc")
		require.NoError(t, err)
		assert.False(t, ok)

		payload := []byte(`[{"id":"aave"}]`)
		require.NoError(t, cache.Set(ctx, "debank", "0xabc", payload))

		got, ok, err := cache.Get(ctx, "debank", "0xabc")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, payload, got)
	})

	t.Run("sources are isolated", func(t *testing.T) {
		cache, _ := setupPayloadCache(t, time.Minute)
		require.NoError(t, cache.Set(ctx, "debank", "0xabc", []byte("a")))

		_, ok, err := cache.Get(ctx, "hyperliquid", "0xabc")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("entries expire after the TTL", func(t *testing.T) {
		cache, mr := setupPayloadCache(t, time.Second)
		require.NoError(t, cache.Set(ctx, "debank", "0xabc", []byte("a")))

		mr.FastForward(2 * time.Second)

		_, ok, err := cache.Get(ctx, "debank", "0xabc")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
