package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for database metrics instrumentation
	dbMeterName = "taskhub/database"

	// Metric names following OpenTelemetry semantic conventions
	metricDBCalls    = "db.client.calls"
	metricDBDuration = "db.client.operation.duration"

	// Connection pool metrics
	metricPoolActive = "db.connection.pool.active"
	metricPoolIdle   = "db.connection.pool.idle"
	metricPoolTotal  = "db.connection.pool.total"

	metricDbSQLTable  = "db.sql.table"
	metricDbOperation = "db.operation.name"
	metricDbSystem    = "db.system"

	// I/O metrics
	metricRowsAffected = "db.rows.affected"
)

var (
	dbMeter     metric.Meter
	meterOnce   sync.Once
	meterInitMu sync.Mutex

	dbCallsCounter        metric.Int64Counter
	dbDurationHistogram   metric.Float64Histogram
	dbRowsAffectedCounter metric.Int64Counter
)

// logMetricError reports a metric initialization failure to stderr. Metrics
// are best-effort; a failed instrument must not break database access.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

// noOpCleanup returns a cleanup function that does nothing, letting callers
// use one cleanup pattern whether or not registration succeeded.
func noOpCleanup() func() {
	return func() {}
}

// asInt64 converts the numeric types that driver Stats() maps contain into
// int64. Returns false for non-numeric values and for uint64 overflow.
//
//nolint:gocyclo // Type switch for numeric conversion requires many cases by nature
func asInt64(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		if val <= uint(9223372036854775807) { // math.MaxInt64
			return int64(val), true
		}
		return 0, false
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val <= 9223372036854775807 { // math.MaxInt64
			return int64(val), true
		}
		return 0, false
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	default:
		return 0, false
	}
}

// initDBMeter initializes the OpenTelemetry meter and instruments once.
func initDBMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if dbMeter != nil {
		return
	}

	dbMeter = otel.Meter(dbMeterName)

	var err error
	dbCallsCounter, err = dbMeter.Int64Counter(
		metricDBCalls,
		metric.WithDescription("Total number of database client calls"),
	)
	logMetricError(metricDBCalls, err)

	dbDurationHistogram, err = dbMeter.Float64Histogram(
		metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	logMetricError(metricDBDuration, err)

	dbRowsAffectedCounter, err = dbMeter.Int64Counter(
		metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"),
	)
	logMetricError(metricRowsAffected, err)
}

// getDBMeter returns the database meter, initializing it if necessary.
func getDBMeter() metric.Meter {
	meterOnce.Do(initDBMeter)
	return dbMeter
}

// recordDBMetrics emits the call counter, duration histogram, and rows
// affected counter for one database operation. sql.ErrNoRows does not count
// as an error. Failures here never propagate to the caller.
func recordDBMetrics(ctx context.Context, tc *Context, query string, duration time.Duration, rowsAffected int64, err error) {
	meter := getDBMeter()
	if meter == nil {
		return
	}

	operation := extractDBOperation(query)
	table := extractTableName(query)
	vendor := normalizeDBVendor(tc.Vendor)

	isError := err != nil && !isSQLNoRowsError(err)

	commonAttrs := []attribute.KeyValue{
		attribute.String(metricDbSystem, vendor),
		attribute.String(metricDbOperation, operation),
		attribute.String(metricDbSQLTable, table),
	}

	if dbCallsCounter != nil {
		counterAttrs := make([]attribute.KeyValue, 0, len(commonAttrs)+1)
		counterAttrs = append(counterAttrs, commonAttrs...)
		counterAttrs = append(counterAttrs, attribute.Bool("error", isError))
		dbCallsCounter.Add(ctx, 1, metric.WithAttributes(counterAttrs...))
	}

	if dbDurationHistogram != nil {
		durationMs := float64(duration.Nanoseconds()) / 1e6
		dbDurationHistogram.Record(ctx, durationMs, metric.WithAttributes(commonAttrs...))
	}

	if dbRowsAffectedCounter != nil && rowsAffected > 0 && !isError {
		dbRowsAffectedCounter.Add(ctx, rowsAffected, metric.WithAttributes(commonAttrs...))
	}
}

// isSQLNoRowsError reports whether err is sql.ErrNoRows, which indicates an
// empty result set rather than a failure.
func isSQLNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

var (
	// Patterns for extracting table names from DML statements. They accept
	// quoted identifiers and schema-qualified names, capturing the table part.
	selectTableRegex = regexp.MustCompile("(?i)FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	insertTableRegex = regexp.MustCompile("(?i)INSERT\\s+INTO\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	updateTableRegex = regexp.MustCompile("(?i)UPDATE\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	deleteTableRegex = regexp.MustCompile("(?i)DELETE\\s+FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	mergeTableRegex  = regexp.MustCompile("(?i)MERGE\\s+INTO\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
)

// tryExtractTable returns the lowercase captured table name, or "".
func tryExtractTable(pattern *regexp.Regexp, query string) string {
	if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return ""
}

// extractTableName extracts the primary table from a DML statement for the
// db.sql.table attribute. Joins resolve to the first table; anything the
// lightweight patterns cannot identify becomes "unknown".
func extractTableName(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "unknown"
	}

	queryUpper := strings.ToUpper(query)

	if strings.HasPrefix(queryUpper, "SELECT") {
		if table := tryExtractTable(selectTableRegex, query); table != "" {
			return table
		}
	}

	if strings.HasPrefix(queryUpper, "INSERT") {
		if table := tryExtractTable(insertTableRegex, query); table != "" {
			return table
		}
	}

	if strings.HasPrefix(queryUpper, "UPDATE") {
		if table := tryExtractTable(updateTableRegex, query); table != "" {
			return table
		}
	}

	if strings.HasPrefix(queryUpper, "DELETE") {
		if table := tryExtractTable(deleteTableRegex, query); table != "" {
			return table
		}
	}

	if strings.HasPrefix(queryUpper, "MERGE") {
		if table := tryExtractTable(mergeTableRegex, query); table != "" {
			return table
		}
	}

	return "unknown"
}

// createGauge creates an observable gauge, logging failures without aborting.
func createGauge(meter metric.Meter, name, description string) metric.Int64ObservableGauge {
	gauge, err := meter.Int64ObservableGauge(name, metric.WithDescription(description))
	logMetricError(name, err)
	return gauge
}

// collectInstruments gathers the non-nil gauges for callback registration.
func collectInstruments(gauges ...metric.Int64ObservableGauge) []metric.Observable {
	var instruments []metric.Observable
	for _, g := range gauges {
		if g != nil {
			instruments = append(instruments, g)
		}
	}
	return instruments
}

// extractPoolStats pulls the pool gauge values from a Stats() map.
func extractPoolStats(stats map[string]any) (inUse, idle, maxOpen int64) {
	if val, ok := asInt64(stats["in_use"]); ok {
		inUse = val
	}
	if val, ok := asInt64(stats["idle"]); ok {
		idle = val
	}
	if val, ok := asInt64(stats["max_open_connections"]); ok {
		maxOpen = val
	}
	return
}

// poolMetricsRegistration holds the gauge state observed by the pool callback.
type poolMetricsRegistration struct {
	conn interface {
		Stats() (map[string]any, error)
	}
	activeGauge metric.Int64ObservableGauge
	idleGauge   metric.Int64ObservableGauge
	totalGauge  metric.Int64ObservableGauge
	attrs       []attribute.KeyValue
}

// observePoolStats reads the pool statistics and updates the gauges. Called
// by the metrics SDK on its collection interval.
func (r *poolMetricsRegistration) observePoolStats(_ context.Context, observer metric.Observer) error {
	stats, err := r.conn.Stats()
	if err != nil {
		return nil // best-effort, keep collecting
	}

	inUse, idle, maxOpen := extractPoolStats(stats)

	if r.activeGauge != nil {
		observer.ObserveInt64(r.activeGauge, inUse, metric.WithAttributes(r.attrs...))
	}
	if r.idleGauge != nil {
		observer.ObserveInt64(r.idleGauge, idle, metric.WithAttributes(r.attrs...))
	}
	if r.totalGauge != nil {
		observer.ObserveInt64(r.totalGauge, maxOpen, metric.WithAttributes(r.attrs...))
	}

	return nil
}

// RegisterConnectionPoolMetrics registers observable gauges reporting active,
// idle, and maximum pool connections for one database connection. Call it once
// per connection at startup. Registration degrades gracefully; gauges that
// fail to register are simply skipped. The returned cleanup unregisters the
// callback.
func RegisterConnectionPoolMetrics(conn interface {
	Stats() (map[string]any, error)
}, vendor string) func() {
	meter := getDBMeter()
	if meter == nil {
		return noOpCleanup()
	}

	reg := &poolMetricsRegistration{
		conn: conn,
		attrs: []attribute.KeyValue{
			attribute.String(metricDbSystem, normalizeDBVendor(vendor)),
		},
	}

	reg.activeGauge = createGauge(meter, metricPoolActive, "Number of active database connections")
	reg.idleGauge = createGauge(meter, metricPoolIdle, "Number of idle database connections")
	reg.totalGauge = createGauge(meter, metricPoolTotal, "Maximum number of database connections configured")

	instruments := collectInstruments(reg.activeGauge, reg.idleGauge, reg.totalGauge)
	if len(instruments) == 0 {
		return noOpCleanup()
	}

	registration, err := meter.RegisterCallback(reg.observePoolStats, instruments...)
	if err != nil {
		logMetricError("pool_metrics_callback", err)
		return noOpCleanup()
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("pool_metrics_unregister", err)
		}
	}
}
