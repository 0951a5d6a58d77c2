package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskhub/taskhub/logger"
)

const (
	// Default operation type for unidentified queries
	defaultOperation = "query"

	dbVendorPostgreSQL = "postgresql"
	dbVendorOracle     = "oracle"

	// OpenTelemetry instrumentation constants
	dbTracerName      = "taskhub/database" // Tracer name for database operations
	maxDBQueryAttrLen = 2000               // Maximum length for db.query.text attribute
)

// TrackDBOperation records one completed database operation: it bumps the
// per-request counters, emits an OpenTelemetry span and metrics, and logs the
// outcome. Slow operations log at warn level; sql.ErrNoRows logs at debug
// since an empty result is a normal outcome. The query string is clamped to
// the configured maximum, and parameters are included only when enabled.
//
// rowsAffected carries the write-operation row count; pass 0 for reads.
// A nil tracking context or logger makes the call a no-op.
func TrackDBOperation(ctx context.Context, tc *Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}

	elapsed := time.Since(start)

	if ctx != nil {
		logger.IncrementDBCounter(ctx)
		logger.AddDBElapsed(ctx, elapsed.Nanoseconds())
		createDBSpan(ctx, tc, query, start, err)
		recordDBMetrics(ctx, tc, query, elapsed, rowsAffected, err)
	}

	truncatedQuery := query
	if tc.Settings.MaxQueryLength() > 0 && len(query) > tc.Settings.MaxQueryLength() {
		truncatedQuery = TruncateString(query, tc.Settings.MaxQueryLength())
	}

	logEvent := tc.Logger.WithContext(ctx).WithFields(map[string]any{
		"vendor":      tc.Vendor,
		"duration_ms": elapsed.Milliseconds(),
		"duration_ns": elapsed.Nanoseconds(),
		"query":       truncatedQuery,
	})

	if tc.Settings.LogQueryParameters() && len(args) > 0 {
		logEvent = logEvent.WithFields(map[string]any{
			"args": SanitizeArgs(args, tc.Settings.MaxQueryLength()),
		})
	}

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logEvent.Debug().Msg("Database operation returned no rows")
		} else {
			logEvent.Error().Err(err).Msg("Database operation error")
		}
	} else if elapsed > tc.Settings.SlowQueryThreshold() {
		logEvent.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	} else {
		logEvent.Debug().Msg("Database operation executed")
	}
}

// extractRowsAffected reads the affected row count from a sql.Result.
// Returns 0 when the result is nil, the operation failed, or the driver
// cannot report the count. Best-effort, for metrics only.
func extractRowsAffected(result sql.Result, err error) int64 {
	if result == nil || err != nil {
		return 0
	}

	affected, affErr := result.RowsAffected()
	if affErr != nil {
		return 0
	}

	return affected
}

// TruncateString truncates value to at most maxLen runes, appending "..." when
// space allows. maxLen <= 0 disables truncation; maxLen <= 3 returns the first
// maxLen runes without an ellipsis. Operating on runes keeps multi-byte
// characters intact.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a copy of args safe to log: strings are truncated to
// maxLen, byte slices become a "<bytes len=N>" placeholder, and other values
// are formatted with %v then truncated. Empty input returns nil.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// createDBSpan creates an OpenTelemetry client span for a database operation,
// backdated to the operation start so the span duration is accurate.
func createDBSpan(ctx context.Context, tc *Context, query string, start time.Time, err error) {
	tracer := otel.Tracer(dbTracerName)

	operation := extractDBOperation(query)
	spanName := fmt.Sprintf("db.%s", operation)

	_, span := tracer.Start(ctx, spanName,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	truncatedQuery := query
	if len(query) > maxDBQueryAttrLen {
		truncatedQuery = TruncateString(query, maxDBQueryAttrLen)
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.system", normalizeDBVendor(tc.Vendor)),
		semconv.DBQueryText(truncatedQuery),
	}

	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}

	if tc.ServerAddress != "" {
		attrs = append(attrs, semconv.ServerAddress(tc.ServerAddress))
	}
	if tc.ServerPort > 0 {
		attrs = append(attrs, semconv.ServerPort(tc.ServerPort))
	}
	if tc.Namespace != "" {
		attrs = append(attrs, semconv.DBNamespace(tc.Namespace))
	}

	span.SetAttributes(attrs...)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// extractDBOperation extracts the operation type from a SQL query.
// Returns the lowercase operation name (select, insert, update, delete, ...).
func extractDBOperation(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return defaultOperation
	}

	if strings.HasPrefix(query, "PREPARE:") {
		return "prepare"
	}
	if query == "BEGIN" || query == "BEGIN_TX" {
		return "begin"
	}
	if query == "COMMIT" {
		return "commit"
	}
	if query == "ROLLBACK" {
		return "rollback"
	}

	parts := strings.Fields(query)
	if len(parts) == 0 {
		return defaultOperation
	}

	operation := strings.ToLower(parts[0])
	switch operation {
	case "select", "insert", "update", "delete", "merge", "create", "drop", "alter", "truncate":
		return operation
	default:
		return defaultOperation
	}
}

// normalizeDBVendor maps vendor aliases onto OTel db.system values.
func normalizeDBVendor(vendor string) string {
	vendor = strings.ToLower(vendor)
	switch vendor {
	case "postgres", dbVendorPostgreSQL:
		return dbVendorPostgreSQL
	case dbVendorOracle:
		return dbVendorOracle
	default:
		return vendor
	}
}
