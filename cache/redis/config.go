// Package redis implements the cache.Store contract on a Redis backend.
package redis

import (
	"fmt"
	"time"

	"github.com/taskhub/taskhub/cache"
)

// Config holds Redis connection options.
type Config struct {
	// Host is the Redis server hostname or IP address.
	Host string `config:"cache.redis.host" required:"true"`

	// Port is the Redis server port (default: 6379).
	Port int `config:"cache.redis.port" default:"6379"`

	// Password for Redis authentication (optional).
	// Provide via environment variable: TASKHUB_CACHE_REDIS_PASSWORD
	Password string `config:"cache.redis.password"` //nolint:gosec // config field, loaded from env

	// Database number to use (default: 0). Redis supports 0-15 by default.
	Database int `config:"cache.redis.database" default:"0"`

	// PoolSize is the maximum number of socket connections (default: 10).
	PoolSize int `config:"cache.redis.pool.size" default:"10"`

	// MinIdleConns keeps this many connections warm in the pool (default: 2).
	MinIdleConns int `config:"cache.redis.pool.idle" default:"2"`

	// DialTimeout is the timeout for establishing new connections (default: 5s).
	DialTimeout time.Duration `config:"cache.redis.timeout.dial" default:"5s"`

	// ReadTimeout is the timeout for socket reads (default: 3s). -1 disables it.
	ReadTimeout time.Duration `config:"cache.redis.timeout.read" default:"3s"`

	// WriteTimeout is the timeout for socket writes (default: 3s). -1 disables it.
	WriteTimeout time.Duration `config:"cache.redis.timeout.write" default:"3s"`

	// MaxRetries is the maximum number of retries per command (default: 3).
	// -1 disables retries.
	MaxRetries int `config:"cache.redis.retry.max" default:"3"`

	// MinRetryBackoff is the minimum backoff between retries (default: 8ms).
	MinRetryBackoff time.Duration `config:"cache.redis.retry.backoff.min" default:"8ms"`

	// MaxRetryBackoff is the maximum backoff between retries (default: 512ms).
	MaxRetryBackoff time.Duration `config:"cache.redis.retry.backoff.max" default:"512ms"`
}

// Validate performs fail-fast validation of the Redis configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return cache.NewConfigError("cache.redis.host", "host is required", nil)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return cache.NewConfigError("cache.redis.port", fmt.Sprintf("invalid port: %d", c.Port), nil)
	}

	if c.Database < 0 || c.Database > 15 {
		return cache.NewConfigError("cache.redis.database", fmt.Sprintf("invalid database number: %d (must be 0-15)", c.Database), nil)
	}

	if c.PoolSize <= 0 {
		return cache.NewConfigError("cache.redis.pool.size", fmt.Sprintf("invalid pool size: %d (must be > 0)", c.PoolSize), nil)
	}

	if c.MinIdleConns < 0 {
		return cache.NewConfigError("cache.redis.pool.idle", "min idle connections cannot be negative", nil)
	}

	if c.DialTimeout < 0 {
		return cache.NewConfigError("cache.redis.timeout.dial", "dial timeout cannot be negative", nil)
	}

	if c.ReadTimeout < -1 {
		return cache.NewConfigError("cache.redis.timeout.read", "read timeout cannot be less than -1", nil)
	}

	if c.WriteTimeout < -1 {
		return cache.NewConfigError("cache.redis.timeout.write", "write timeout cannot be less than -1", nil)
	}

	return nil
}

// Address returns the Redis server address in "host:port" format.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
