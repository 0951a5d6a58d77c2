package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// resetDBMeterForTesting clears the meter singletons so each test binds its
// instruments to a fresh provider.
func resetDBMeterForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	meterOnce = sync.Once{}
	dbMeter = nil
	dbCallsCounter = nil
	dbDurationHistogram = nil
	dbRowsAffectedCounter = nil
}

func setupDBMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	resetDBMeterForTesting()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		resetDBMeterForTesting()
	})

	return reader
}

func metricsContext(vendor string) *Context {
	return &Context{
		Logger:   newRecordingLogger(),
		Vendor:   vendor,
		Settings: testSettings(),
	}
}

func TestRecordDBMetricsCountsCalls(t *testing.T) {
	reader := setupDBMeterProvider(t)

	tc := metricsContext("postgresql")
	recordDBMetrics(context.Background(), tc, "SELECT * FROM tasks", 10*time.Millisecond, 0, nil)
	recordDBMetrics(context.Background(), tc, "SELECT * FROM tasks", 10*time.Millisecond, 0, nil)
	recordDBMetrics(context.Background(), tc, "SELECT * FROM tasks", 10*time.Millisecond, 0, errors.New("boom"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	var sawSuccess, sawError bool
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != dbMeterName {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name != metricDBCalls {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "expected sum data for %s", metricDBCalls)
			for _, dp := range sum.DataPoints {
				total += dp.Value
				if v, found := dp.Attributes.Value(attribute.Key("error")); found {
					if v.AsBool() {
						sawError = true
					} else {
						sawSuccess = true
					}
				}
				attrs := dp.Attributes.ToSlice()
				assertDBAttribute(t, attrs, metricDbSystem, "postgresql")
				assertDBAttribute(t, attrs, metricDbOperation, "select")
				assertDBAttribute(t, attrs, metricDbSQLTable, "tasks")
			}
		}
	}

	assert.Equal(t, int64(3), total, "call counter should count every operation")
	assert.True(t, sawSuccess, "expected a data point tagged error=false")
	assert.True(t, sawError, "expected a data point tagged error=true")
}

func TestRecordDBMetricsDurationHistogram(t *testing.T) {
	reader := setupDBMeterProvider(t)

	recordDBMetrics(context.Background(), metricsContext("oracle"), "UPDATE tasks SET done = 1", 42*time.Millisecond, 1, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var found bool
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != dbMeterName {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name != metricDBDuration {
				continue
			}
			found = true
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok, "expected histogram data")
			require.NotEmpty(t, hist.DataPoints)

			attrs := hist.DataPoints[0].Attributes.ToSlice()
			assertDBAttribute(t, attrs, metricDbSystem, "oracle")
			assertDBAttribute(t, attrs, metricDbOperation, "update")
			assertDBAttribute(t, attrs, metricDbSQLTable, "tasks")
		}
	}

	assert.True(t, found, "expected to find %s metric", metricDBDuration)
}

func TestRecordDBMetricsRowsAffected(t *testing.T) {
	reader := setupDBMeterProvider(t)

	tc := metricsContext("postgresql")
	recordDBMetrics(context.Background(), tc, "DELETE FROM tasks", 5*time.Millisecond, 5, nil)
	// Failed operations and empty results must not count affected rows.
	recordDBMetrics(context.Background(), tc, "DELETE FROM tasks", 5*time.Millisecond, 3, errors.New("boom"))
	recordDBMetrics(context.Background(), tc, "DELETE FROM tasks", 5*time.Millisecond, 0, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(5), sumDBCounter(t, rm, metricRowsAffected))
}

func TestRecordDBMetricsNoRowsIsNotAnError(t *testing.T) {
	reader := setupDBMeterProvider(t)

	recordDBMetrics(context.Background(), metricsContext("postgresql"), "SELECT * FROM tasks WHERE id = 1", time.Millisecond, 0, sql.ErrNoRows)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != dbMeterName {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name != metricDBCalls {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.NotEmpty(t, sum.DataPoints)
			v, found := sum.DataPoints[0].Attributes.Value(attribute.Key("error"))
			require.True(t, found, "expected error attribute")
			assert.False(t, v.AsBool(), "sql.ErrNoRows should not count as an error")
			return
		}
	}
	t.Fatal("expected to find call counter")
}

func TestExtractTableName(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{name: "select", query: "SELECT id FROM tasks WHERE done = false", expected: "tasks"},
		{name: "select_join", query: "SELECT t.id FROM tasks t JOIN users u ON u.id = t.user_id", expected: "tasks"},
		{name: "select_schema_qualified", query: `SELECT id FROM "app"."tasks"`, expected: "tasks"},
		{name: "insert", query: "INSERT INTO categories (name) VALUES ($1)", expected: "categories"},
		{name: "update", query: "UPDATE users SET email = $1 WHERE id = $2", expected: "users"},
		{name: "delete", query: "DELETE FROM tasks WHERE id = $1", expected: "tasks"},
		{name: "merge", query: "MERGE INTO tasks target USING (SELECT :1 AS id FROM dual) source ON (target.id = source.id)", expected: "tasks"},
		{name: "mixed_case", query: "select id from Tasks", expected: "tasks"},
		{name: "empty", query: "", expected: "unknown"},
		{name: "unparseable", query: "TRUNCATE somewhere", expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractTableName(tt.query))
		})
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected int64
		ok       bool
	}{
		{name: "int", value: int(7), expected: 7, ok: true},
		{name: "int32", value: int32(-3), expected: -3, ok: true},
		{name: "int64", value: int64(42), expected: 42, ok: true},
		{name: "uint32", value: uint32(9), expected: 9, ok: true},
		{name: "uint64_in_range", value: uint64(10), expected: 10, ok: true},
		{name: "uint64_overflow", value: uint64(9223372036854775808), expected: 0, ok: false},
		{name: "float64", value: float64(3.7), expected: 3, ok: true},
		{name: "string", value: "10", expected: 0, ok: false},
		{name: "nil", value: nil, expected: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asInt64(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestIsSQLNoRowsError(t *testing.T) {
	assert.True(t, isSQLNoRowsError(sql.ErrNoRows))
	assert.True(t, isSQLNoRowsError(fmt.Errorf("fetch task: %w", sql.ErrNoRows)))
	assert.False(t, isSQLNoRowsError(errors.New("boom")))
	assert.False(t, isSQLNoRowsError(nil))
}

func TestExtractPoolStats(t *testing.T) {
	inUse, idle, maxOpen := extractPoolStats(map[string]any{
		"in_use":               3,
		"idle":                 int64(2),
		"max_open_connections": uint32(25),
	})
	assert.Equal(t, int64(3), inUse)
	assert.Equal(t, int64(2), idle)
	assert.Equal(t, int64(25), maxOpen)

	inUse, idle, maxOpen = extractPoolStats(map[string]any{"unrelated": "x"})
	assert.Zero(t, inUse)
	assert.Zero(t, idle)
	assert.Zero(t, maxOpen)
}

func TestRegisterConnectionPoolMetrics(t *testing.T) {
	reader := setupDBMeterProvider(t)

	conn := &stubConnection{stats: map[string]any{
		"in_use":               int64(4),
		"idle":                 int64(6),
		"max_open_connections": int64(25),
	}}

	cleanup := RegisterConnectionPoolMetrics(conn, "postgres")
	defer cleanup()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	gauges := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != dbMeterName {
			continue
		}
		for _, m := range sm.Metrics {
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				continue
			}
			require.NotEmpty(t, gauge.DataPoints)
			gauges[m.Name] = gauge.DataPoints[0].Value
			assertDBAttribute(t, gauge.DataPoints[0].Attributes.ToSlice(), metricDbSystem, "postgresql")
		}
	}

	assert.Equal(t, int64(4), gauges[metricPoolActive])
	assert.Equal(t, int64(6), gauges[metricPoolIdle])
	assert.Equal(t, int64(25), gauges[metricPoolTotal])
}

func TestRegisterConnectionPoolMetricsStatsError(t *testing.T) {
	reader := setupDBMeterProvider(t)

	conn := &stubConnection{statsErr: errors.New("stats unavailable")}
	cleanup := RegisterConnectionPoolMetrics(conn, "postgresql")
	defer cleanup()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
}

// assertDBAttribute checks that an attribute with the given key and value exists.
func assertDBAttribute(t *testing.T, attrs []attribute.KeyValue, key, expected string) {
	t.Helper()
	for _, kv := range attrs {
		if string(kv.Key) == key {
			assert.Equal(t, expected, kv.Value.AsString(), "attribute %s value mismatch", key)
			return
		}
	}
	t.Errorf("attribute %s not found in %v", key, attrs)
}

// sumDBCounter finds a counter metric by name within the database scope and
// returns the sum of all data point values.
func sumDBCounter(t *testing.T, rm metricdata.ResourceMetrics, metricName string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != dbMeterName {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name != metricName {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "expected sum data for %s", metricName)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}
