// Package cache provides the caching layer for the task service: a
// vendor-agnostic Store contract over the KV backend, a deterministic key
// scheme, and a Service that implements cache-aside reads with TTL tiers,
// pattern invalidation, and graceful degradation when the backend is down.
package cache

import (
	"context"
	"time"
)

// Store is the minimal contract a cache backend must provide. All
// implementations must be thread-safe and context-aware.
//
// Store deals in raw bytes and exact keys; TTL policy, serialization, and
// error tolerance live in Service.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL, overwriting any existing value.
	// TTL must be positive; ErrInvalidTTL otherwise.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys and returns how many existed.
	// Deleting absent keys is not an error.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Scan iterates keys matching a glob pattern, returning one page of keys
	// and the cursor for the next call. A returned cursor of 0 ends the
	// iteration. count is a page-size hint; non-positive values use the
	// backend default.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) (keys []string, next uint64, err error)

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases the backend connection. The store must not be used
	// afterwards. Close is idempotent.
	Close() error
}

// TTLTier selects the expiration class for a cached payload. Tier durations
// come from Config so deployments can tune them without touching call sites.
type TTLTier int

const (
	// TierShort is for volatile data: filtered lists and aggregates.
	TierShort TTLTier = iota
	// TierMedium is for single entities fetched by ID.
	TierMedium
	// TierLong is for slow-changing data such as user profiles.
	TierLong
)

// String returns the tier name used in logs and metrics.
func (t TTLTier) String() string {
	switch t {
	case TierShort:
		return "short"
	case TierMedium:
		return "medium"
	case TierLong:
		return "long"
	default:
		return "unknown"
	}
}

// InvalidationResult reports the outcome of one pattern invalidation.
type InvalidationResult struct {
	// Pattern is the glob pattern that was scanned.
	Pattern string
	// Deleted is the number of keys removed.
	Deleted int64
	// Success is false when the scan or delete could not complete, e.g. the
	// backend was unreachable. Deleted holds the partial count in that case.
	Success bool
}

// Service is the cache facade repositories depend on. Every method is safe to
// call when the backend is degraded or disabled: reads surface misses and
// writes become no-ops, so callers never branch on cache health.
type Service interface {
	// Read returns the payload for key and whether it was found. Any backend
	// or decode problem is reported as a miss.
	Read(ctx context.Context, key string) ([]byte, bool)

	// Write stores a payload under the tier's TTL. Returns false when the
	// write was skipped or failed; callers may ignore the result.
	Write(ctx context.Context, key string, payload []byte, tier TTLTier) bool

	// Remove deletes exact keys and returns how many were removed.
	Remove(ctx context.Context, keys ...string) int64

	// InvalidatePattern deletes every key matching the glob pattern by
	// walking the backend's scan cursor in bounded pages and deleting each
	// page as it is found. Matching nothing is a success.
	InvalidatePattern(ctx context.Context, pattern string) InvalidationResult

	// InvalidateMultiple invalidates each pattern in order, continuing past
	// individual failures, and returns one result per pattern.
	InvalidateMultiple(ctx context.Context, patterns []string) []InvalidationResult

	// Healthy reports whether the backend is currently considered reachable.
	// A false value means operations are being short-circuited.
	Healthy() bool

	// Ping checks the backend directly, bypassing the degraded short-circuit.
	// A successful ping restores a degraded service to healthy.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Config holds the cache service settings.
type Config struct {
	// Namespace prefixes every key so multiple services can share a backend.
	Namespace string `config:"cache.namespace" default:"taskhub"`

	// TTLShort applies to TierShort payloads (default 1m).
	TTLShort time.Duration `config:"cache.ttl.short" default:"1m"`

	// TTLMedium applies to TierMedium payloads (default 5m).
	TTLMedium time.Duration `config:"cache.ttl.medium" default:"5m"`

	// TTLLong applies to TierLong payloads (default 1h).
	TTLLong time.Duration `config:"cache.ttl.long" default:"1h"`

	// ScanPageSize bounds how many keys one scan page may return during
	// pattern invalidation (default 100).
	ScanPageSize int64 `config:"cache.scan.pagesize" default:"100"`
}

// Validate fails fast on settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return NewConfigError("cache.namespace", "namespace is required", nil)
	}
	for field, ttl := range map[string]time.Duration{
		"cache.ttl.short":  c.TTLShort,
		"cache.ttl.medium": c.TTLMedium,
		"cache.ttl.long":   c.TTLLong,
	} {
		if ttl <= 0 {
			return NewConfigError(field, "ttl must be positive", nil)
		}
	}
	if c.ScanPageSize <= 0 {
		return NewConfigError("cache.scan.pagesize", "scan page size must be positive", nil)
	}
	return nil
}

// TTL resolves a tier to its configured duration.
func (c *Config) TTL(tier TTLTier) time.Duration {
	switch tier {
	case TierShort:
		return c.TTLShort
	case TierMedium:
		return c.TTLMedium
	case TierLong:
		return c.TTLLong
	default:
		return c.TTLShort
	}
}
