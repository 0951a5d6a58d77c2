// Package tracking records OpenTelemetry metrics for cache operations.
package tracking

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for cache metrics instrumentation
	cacheMeterName = "taskhub/cache"

	// Redis is a database per OTel semantic conventions, so operation latency
	// uses the db.client histogram name.
	metricCacheOperationDuration = "db.client.operation.duration"

	metricCacheHit              = "cache.hit"
	metricCacheMiss             = "cache.miss"
	metricCacheInvalidationKeys = "cache.invalidation.keys"

	attrDBSystem       = "db.system.name"
	attrDBOperation    = "db.operation.name"
	attrErrorType      = "error.type"
	attrCacheHitStatus = "cache.hit"
	attrPattern        = "cache.pattern"
	attrSuccess        = "cache.invalidation.success"
)

// Cache operation names recorded on the duration histogram.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpExists = "exists"
	OpScan   = "scan"
	OpPing   = "ping"
)

// isLookupOperation reports whether the operation tracks hit/miss statistics.
func isLookupOperation(operation string) bool {
	return operation == OpGet || operation == OpExists
}

var (
	cacheMeter    metric.Meter
	meterOnce     sync.Once
	meterInitMu   sync.Mutex
	metricsInited bool

	cacheOperationDuration metric.Float64Histogram
	cacheHitCounter        metric.Int64Counter
	cacheMissCounter       metric.Int64Counter
	invalidationCounter    metric.Int64Counter
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize cache metric %s: %v\n", metricName, err)
	}
}

func initCacheMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if cacheMeter != nil {
		return
	}

	cacheMeter = otel.Meter(cacheMeterName)

	var err error

	cacheOperationDuration, err = cacheMeter.Float64Histogram(
		metricCacheOperationDuration,
		metric.WithDescription("Duration of cache operations"),
		metric.WithUnit("s"),
	)
	logMetricError(metricCacheOperationDuration, err)

	cacheHitCounter, err = cacheMeter.Int64Counter(
		metricCacheHit,
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	logMetricError(metricCacheHit, err)

	cacheMissCounter, err = cacheMeter.Int64Counter(
		metricCacheMiss,
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	logMetricError(metricCacheMiss, err)

	invalidationCounter, err = cacheMeter.Int64Counter(
		metricCacheInvalidationKeys,
		metric.WithDescription("Number of cache keys removed by pattern invalidation"),
		metric.WithUnit("{key}"),
	)
	logMetricError(metricCacheInvalidationKeys, err)

	metricsInited = true
}

func ensureCacheMeterInitialized() {
	meterOnce.Do(initCacheMeter)
}

// RecordCacheOperation records duration and, for lookups, hit/miss counters.
// Call it after each backend operation.
func RecordCacheOperation(ctx context.Context, operation string, duration time.Duration, hit bool, err error) {
	ensureCacheMeterInitialized()

	attrs := []attribute.KeyValue{
		attribute.String(attrDBSystem, "redis"),
		attribute.String(attrDBOperation, operation),
	}

	if isLookupOperation(operation) {
		attrs = append(attrs, attribute.Bool(attrCacheHitStatus, hit))
	}

	if err != nil {
		attrs = append(attrs, attribute.String(attrErrorType, classifyError(err)))
	}

	if cacheOperationDuration != nil {
		cacheOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}

	if isLookupOperation(operation) {
		recordHitMissCounters(ctx, hit, attrs)
	}
}

// RecordInvalidation records the number of keys removed by one pattern
// invalidation and whether the traversal completed.
func RecordInvalidation(ctx context.Context, pattern string, deleted int64, success bool) {
	ensureCacheMeterInitialized()

	if invalidationCounter == nil {
		return
	}

	invalidationCounter.Add(ctx, deleted, metric.WithAttributes(
		attribute.String(attrPattern, pattern),
		attribute.Bool(attrSuccess, success),
	))
}

// classifyError returns an error classification string for metrics.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "closed"):
		return "closed"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	default:
		return "error"
	}
}

func recordHitMissCounters(ctx context.Context, hit bool, attrs []attribute.KeyValue) {
	if hit {
		if cacheHitCounter != nil {
			cacheHitCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
		return
	}
	if cacheMissCounter != nil {
		cacheMissCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// IsInitialized returns true if cache metrics have been initialized.
func IsInitialized() bool {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	return metricsInited
}

// ResetForTesting resets the metric state for testing purposes.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	cacheMeter = nil
	cacheOperationDuration = nil
	cacheHitCounter = nil
	cacheMissCounter = nil
	invalidationCounter = nil
	metricsInited = false
	meterOnce = sync.Once{}
}
