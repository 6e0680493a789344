//go:build integration

package cache

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: REDIS_ADDR=localhost:6379 go test -v -tags=integration ./internal/cache/...

func setupTestCache(t *testing.T, ttl time.Duration) *RedisCache {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	c, err := NewRedisCache(Config{Host: host, Port: port, DB: 15, TTL: ttl})
	require.NoError(t, err, "Failed to connect to test Redis")
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache_MissIsNotAnError(t *testing.T) {
	c := setupTestCache(t, time.Minute)
	ctx := context.Background()
	url := "https://example.test/missing/" + t.Name()

	require.NoError(t, c.Delete(ctx, url))

	body, ok, err := c.Get(ctx, url)
	require.NoError(t, err, "redis.Nil should be reported as a miss")
	assert.False(t, ok)
	assert.Empty(t, body)
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	c := setupTestCache(t, time.Minute)
	ctx := context.Background()
	url := "https://example.test/rankings/" + t.Name()

	require.NoError(t, c.Set(ctx, url, "<html>page</html>"))

	body, ok, err := c.Get(ctx, url)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html>page</html>", body)

	ttl, err := c.client.TTL(ctx, PageKey(url)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "Entry should carry the configured TTL")

	require.NoError(t, c.Delete(ctx, url))
	_, ok, err = c.Get(ctx, url)
	require.NoError(t, err)
	assert.False(t, ok, "Deleted page should miss")
}
