package logger

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
)

// OTelBridge forwards zerolog output to an OpenTelemetry log provider. It
// implements io.Writer so it can be attached as an extra writer via
// NewWithOptions; each JSON entry becomes one OTel log record with severity,
// body, attributes, and trace correlation preserved.
type OTelBridge struct {
	logger log.Logger
}

// NewOTelBridge creates a bridge emitting through the given provider. A nil
// provider returns nil, which NewWithOptions treats as "no extra writer".
func NewOTelBridge(provider *sdklog.LoggerProvider) *OTelBridge {
	if provider == nil {
		return nil
	}
	return &OTelBridge{logger: provider.Logger("taskhub")}
}

// Write parses one zerolog JSON entry and emits it as an OTel log record.
// Non-JSON input (pretty console output) is silently dropped.
func (b *OTelBridge) Write(p []byte) (n int, err error) {
	if b == nil || b.logger == nil {
		return len(p), nil
	}

	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	rec, ctx := buildLogRecord(entry)
	b.logger.Emit(ctx, rec)
	return len(p), nil
}

func buildLogRecord(entry map[string]any) (log.Record, context.Context) {
	var rec log.Record

	ctx := context.Background()
	if spanCtx, ok := extractSpanContext(entry); ok {
		ctx = trace.ContextWithSpanContext(ctx, spanCtx)
	}

	if timeStr, ok := entry["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, timeStr); err == nil {
			rec.SetTimestamp(t)
		}
	}
	if levelStr, ok := entry["level"].(string); ok {
		rec.SetSeverity(severityFromZerolog(levelStr))
		rec.SetSeverityText(levelStr)
	}
	if msg, ok := entry["message"].(string); ok {
		rec.SetBody(log.StringValue(msg))
	}

	attrs := make([]log.KeyValue, 0, len(entry))
	for k, v := range entry {
		switch k {
		case "time", "level", "message":
			continue
		}
		attrs = append(attrs, log.KeyValue{Key: k, Value: toLogValue(v)})
	}
	if len(attrs) > 0 {
		rec.AddAttributes(attrs...)
	}

	return rec, ctx
}

func extractSpanContext(entry map[string]any) (trace.SpanContext, bool) {
	traceIDStr, ok := entry["trace_id"].(string)
	if !ok {
		return trace.SpanContext{}, false
	}
	spanIDStr, ok := entry["span_id"].(string)
	if !ok {
		return trace.SpanContext{}, false
	}

	traceID, err := trace.TraceIDFromHex(traceIDStr)
	if err != nil || !traceID.IsValid() {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(spanIDStr)
	if err != nil || !spanID.IsValid() {
		return trace.SpanContext{}, false
	}
	delete(entry, "trace_id")
	delete(entry, "span_id")

	flags, flagsOK := parseTraceFlags(entry["trace_flags"])
	if flagsOK {
		delete(entry, "trace_flags")
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	})
	if !sc.IsValid() {
		return trace.SpanContext{}, false
	}
	return sc, true
}

func parseTraceFlags(value any) (trace.TraceFlags, bool) {
	switch v := value.(type) {
	case string:
		// Accept decimal and hex forms ("1", "0x1", "01")
		if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
			if parsed, err := strconv.ParseUint(v[2:], 16, 8); err == nil {
				return trace.TraceFlags(parsed), true
			}
		}
		if parsed, err := strconv.ParseUint(v, 10, 8); err == nil {
			return trace.TraceFlags(parsed), true
		}
	case float64:
		if v >= 0 && v <= math.MaxUint8 {
			return trace.TraceFlags(uint8(v)), true
		}
	case int:
		if v >= 0 && v <= math.MaxUint8 {
			return trace.TraceFlags(uint8(v)), true
		}
	}
	return 0, false
}

func severityFromZerolog(level string) log.Severity {
	switch level {
	case "trace":
		return log.SeverityTrace
	case "debug":
		return log.SeverityDebug
	case "info":
		return log.SeverityInfo
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	case "fatal", "panic":
		return log.SeverityFatal
	default:
		return log.SeverityInfo
	}
}

func toLogValue(v any) log.Value {
	if v == nil {
		return log.StringValue("")
	}

	switch val := v.(type) {
	case string:
		return log.StringValue(val)
	case int:
		return log.Int64Value(int64(val))
	case int64:
		return log.Int64Value(val)
	case float64:
		return log.Float64Value(val)
	case bool:
		return log.BoolValue(val)
	case []any:
		slice := make([]log.Value, len(val))
		for i, item := range val {
			slice[i] = toLogValue(item)
		}
		return log.SliceValue(slice...)
	case map[string]any:
		kvs := make([]log.KeyValue, 0, len(val))
		for k, v := range val {
			kvs = append(kvs, log.KeyValue{Key: k, Value: toLogValue(v)})
		}
		return log.MapValue(kvs...)
	default:
		if raw, err := json.Marshal(val); err == nil {
			return log.StringValue(string(raw))
		}
		return log.StringValue("")
	}
}
