package logger

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// dbCounterKey tracks the number of database operations per request
	dbCounterKey contextKey = "db_operation_counter"
	// dbElapsedKey tracks total database elapsed time per request
	dbElapsedKey contextKey = "db_elapsed_nanos"
	// cacheHitKey tracks cache hits per request
	cacheHitKey contextKey = "cache_hit_counter"
	// cacheMissKey tracks cache misses per request
	cacheMissKey contextKey = "cache_miss_counter"
	// severityHookKey stores a callback for request-level severity tracking
	severityHookKey contextKey = "severity_hook"
)

// WithRequestTrackers installs the per-request operation counters used by the
// request summary log line: database operation count and elapsed time, and
// cache hit/miss counts.
func WithRequestTrackers(ctx context.Context) context.Context {
	dbCount := int64(0)
	dbElapsed := int64(0)
	hits := int64(0)
	misses := int64(0)
	ctx = context.WithValue(ctx, dbCounterKey, &dbCount)
	ctx = context.WithValue(ctx, dbElapsedKey, &dbElapsed)
	ctx = context.WithValue(ctx, cacheHitKey, &hits)
	ctx = context.WithValue(ctx, cacheMissKey, &misses)
	return ctx
}

// WithSeverityHook attaches a severity hook to the context. The hook is used by
// the logging adapter to propagate WARN/ERROR logs back to request middleware.
func WithSeverityHook(ctx context.Context, hook func(zerolog.Level)) context.Context {
	if ctx == nil || hook == nil {
		return ctx
	}
	return context.WithValue(ctx, severityHookKey, hook)
}

// severityHookFromContext retrieves the severity hook from the context when present.
func severityHookFromContext(ctx context.Context) func(zerolog.Level) {
	if ctx == nil {
		return nil
	}
	if hook, ok := ctx.Value(severityHookKey).(func(zerolog.Level)); ok {
		return hook
	}
	return nil
}

func increment(ctx context.Context, key contextKey) {
	if counter, ok := ctx.Value(key).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

func load(ctx context.Context, key contextKey) int64 {
	if counter, ok := ctx.Value(key).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// IncrementDBCounter increments the database operation counter in the context.
func IncrementDBCounter(ctx context.Context) {
	increment(ctx, dbCounterKey)
}

// GetDBCounter returns the database operation count from the context.
func GetDBCounter(ctx context.Context) int64 {
	return load(ctx, dbCounterKey)
}

// AddDBElapsed adds elapsed nanoseconds to the database time tracked in the context.
func AddDBElapsed(ctx context.Context, nanos int64) {
	if elapsed, ok := ctx.Value(dbElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// GetDBElapsed returns the accumulated database time in nanoseconds.
func GetDBElapsed(ctx context.Context) int64 {
	return load(ctx, dbElapsedKey)
}

// IncrementCacheHit increments the per-request cache hit counter.
func IncrementCacheHit(ctx context.Context) {
	increment(ctx, cacheHitKey)
}

// IncrementCacheMiss increments the per-request cache miss counter.
func IncrementCacheMiss(ctx context.Context) {
	increment(ctx, cacheMissKey)
}

// GetCacheHits returns the per-request cache hit count.
func GetCacheHits(ctx context.Context) int64 {
	return load(ctx, cacheHitKey)
}

// GetCacheMisses returns the per-request cache miss count.
func GetCacheMisses(ctx context.Context) int64 {
	return load(ctx, cacheMissKey)
}
