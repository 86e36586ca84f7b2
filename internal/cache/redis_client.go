// Package cache provides a Redis-backed cache for the TMO tree and TPRM
// definitions the builder (C6) and change-stream updater (C8) re-read on
// nearly every pass, so they don't round-trip to the inventory service
// for schema data that changes far less often than MO/PRM data (spec
// §4.1, §5 "schema reads are cacheable").
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avataa-hq/avataa-graphs/internal/config"
)

// Client wraps a Redis client with typed get/set helpers, generalized
// from internal/cache/redis_client.go.
type Client struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewClient dials Redis per cfg and verifies connectivity.
func NewClient(ctx context.Context, cfg config.CacheConfig) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("cache addr missing")
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger := slog.Default().With("component", "cache")
	logger.Info("redis client connected", "addr", cfg.Addr)

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Client{client: client, logger: logger, ttl: ttl}, nil
}

func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Get retrieves a cached value by key and unmarshals into target.
// Returns false on a cache miss (not an error).
func (c *Client) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), target); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value for key %s: %w", key, err)
	}
	return true, nil
}

func (c *Client) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

func (c *Client) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", key, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed for key %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes every key matching pattern. Nothing in this
// module calls it; TMO changes do not invalidate cached entries.
func (c *Client) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan failed for pattern %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis delete failed for pattern %s: %w", pattern, err)
	}
	return deleted, nil
}

// TmoTreeKey is the cache key for a projection's full TMO tree.
func TmoTreeKey(database string) string {
	return fmt.Sprintf("tmo_tree:%s", database)
}

// TprmKey is the cache key for a single TPRM definition.
func TprmKey(tprmID int64) string {
	return fmt.Sprintf("tprm:%d", tprmID)
}
