package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"nba_salaries/ingestion/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "salaries:page:"

// Config holds Redis connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache stores fetched page markup keyed by URL
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().
		Str("addr", client.Options().Addr).
		Dur("ttl", cfg.TTL).
		Msg("Connected to Redis")

	return &RedisCache{client: client, ttl: cfg.TTL}, nil
}

// PageKey returns the Redis key for a page URL
func PageKey(url string) string {
	return keyPrefix + url
}

// Get returns the cached markup for url
func (c *RedisCache) Get(ctx context.Context, url string) (string, bool, error) {
	body, err := c.client.Get(ctx, PageKey(url)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached page: %w", err)
	}

	metrics.RecordCacheHit()
	return body, true, nil
}

// Set stores markup for url with the configured TTL
func (c *RedisCache) Set(ctx context.Context, url, body string) error {
	if err := c.client.Set(ctx, PageKey(url), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache page: %w", err)
	}
	return nil
}

// Delete drops the cached markup for url
func (c *RedisCache) Delete(ctx context.Context, url string) error {
	if err := c.client.Del(ctx, PageKey(url)).Err(); err != nil {
		return fmt.Errorf("failed to evict cached page: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
