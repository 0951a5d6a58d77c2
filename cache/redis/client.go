package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/cache/internal/tracking"
	"github.com/taskhub/taskhub/logger"
)

// Client wraps a Redis connection and implements the cache.Store contract.
type Client struct {
	client *redis.Client
	config *Config
	logger logger.Logger
	closed atomic.Bool
}

var _ cache.Store = (*Client)(nil)

// NewClient creates a Redis-backed store and verifies connectivity before
// returning. A client that cannot reach the server is never handed out.
func NewClient(cfg *Config, log logger.Logger) (*Client, error) {
	c, err := NewLazyClient(cfg, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		return nil, cache.NewConnectionError("connect", cfg.Address(), err)
	}

	log.Debug().
		Str("address", cfg.Address()).
		Int("database", cfg.Database).
		Int("pool_size", cfg.PoolSize).
		Msg("Redis store connected")

	return c, nil
}

// NewLazyClient creates a Redis-backed store without checking that the server
// is reachable. Commands dial on first use, so a backend that is down at
// construction time becomes usable once it comes back. Startup paths that
// tolerate a degraded cache use this; everything else should prefer NewClient.
func NewLazyClient(cfg *Config, log logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, cache.NewConfigError("cache.redis", "configuration is required", nil)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Address(),
		Password:        cfg.Password,
		DB:              cfg.Database,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	})

	return &Client{
		client: rdb,
		config: cfg,
		logger: log,
	}, nil
}

// Get retrieves the value stored under key. A missing key yields
// cache.ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}

	start := time.Now()
	data, err := c.client.Get(ctx, key).Bytes()

	if errors.Is(err, redis.Nil) {
		tracking.RecordCacheOperation(ctx, tracking.OpGet, time.Since(start), false, nil)
		return nil, cache.ErrNotFound
	}
	tracking.RecordCacheOperation(ctx, tracking.OpGet, time.Since(start), err == nil, err)

	if err != nil {
		return nil, cache.NewOperationError("get", key, err)
	}

	return data, nil
}

// Set stores value under key with the given expiry. The expiry must be
// positive; unbounded entries are not allowed.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}

	start := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()
	tracking.RecordCacheOperation(ctx, tracking.OpSet, time.Since(start), false, err)

	if err != nil {
		return cache.NewOperationError("set", key, err)
	}

	return nil
}

// Delete removes the given keys and reports how many existed.
func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if c.closed.Load() {
		return 0, cache.ErrClosed
	}

	if len(keys) == 0 {
		return 0, nil
	}

	start := time.Now()
	deleted, err := c.client.Del(ctx, keys...).Result()
	tracking.RecordCacheOperation(ctx, tracking.OpDelete, time.Since(start), false, err)

	if err != nil {
		return 0, cache.NewOperationError("delete", keys[0], err)
	}

	return deleted, nil
}

// Exists reports whether key is present without fetching its value.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, cache.ErrClosed
	}

	start := time.Now()
	n, err := c.client.Exists(ctx, key).Result()
	tracking.RecordCacheOperation(ctx, tracking.OpExists, time.Since(start), n > 0, err)

	if err != nil {
		return false, cache.NewOperationError("exists", key, err)
	}

	return n > 0, nil
}

// Scan walks keys matching pattern starting at cursor and returns the next
// page together with the follow-up cursor. A returned cursor of zero means
// the iteration is complete.
func (c *Client) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	if c.closed.Load() {
		return nil, 0, cache.ErrClosed
	}

	start := time.Now()
	keys, next, err := c.client.Scan(ctx, cursor, pattern, count).Result()
	tracking.RecordCacheOperation(ctx, tracking.OpScan, time.Since(start), len(keys) > 0, err)

	if err != nil {
		return nil, 0, cache.NewOperationError("scan", pattern, err)
	}

	return keys, next, nil
}

// Ping verifies connectivity to the Redis server.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	tracking.RecordCacheOperation(ctx, tracking.OpPing, time.Since(start), err == nil, err)

	if err != nil {
		return cache.NewConnectionError("ping", c.config.Address(), err)
	}

	return nil
}

// Close releases the connection pool. Closing twice returns cache.ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}

	if err := c.client.Close(); err != nil {
		return cache.NewOperationError("close", "", err)
	}

	c.logger.Debug().
		Str("address", c.config.Address()).
		Msg("Redis store closed")

	return nil
}
