package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// resourceAttributeExporter wraps an exporter to inject resource attributes
// into log records. The LoggerProvider carries one resource for all
// processors, but the dual-mode split needs per-route attributes
// (log.type="action" vs log.type="trace"), so they are stamped onto records
// at export time instead.
type resourceAttributeExporter struct {
	wrapped        sdklog.Exporter
	resourceAttrs  []log.KeyValue
	shutdownOnce   sync.Once
	shutdownResult error
}

// newResourceAttributeExporter creates an exporter that enriches records with
// the resource's attributes.
func newResourceAttributeExporter(exporter sdklog.Exporter, res *resource.Resource) sdklog.Exporter {
	attrs := res.Attributes()
	converted := make([]log.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		converted = append(converted, convertToLogAttribute(attr))
	}

	return &resourceAttributeExporter{
		wrapped:       exporter,
		resourceAttrs: converted,
	}
}

// Export enriches each record with resource attributes before exporting.
// Records are cloned rather than mutated, the processor may still hold them.
func (e *resourceAttributeExporter) Export(ctx context.Context, records []sdklog.Record) error {
	enriched := make([]sdklog.Record, len(records))
	for i := range records {
		enriched[i] = e.enrich(&records[i])
	}

	return e.wrapped.Export(ctx, enriched)
}

// enrich returns a copy of the record carrying any resource attributes the
// record does not already define. Record attributes win on key collision.
func (e *resourceAttributeExporter) enrich(rec *sdklog.Record) sdklog.Record {
	clone := rec.Clone()

	if len(e.resourceAttrs) == 0 {
		return clone
	}

	existing := make(map[string]struct{})
	clone.WalkAttributes(func(kv log.KeyValue) bool {
		existing[kv.Key] = struct{}{}
		return true
	})

	toAdd := make([]log.KeyValue, 0, len(e.resourceAttrs))
	for _, attr := range e.resourceAttrs {
		if _, ok := existing[attr.Key]; ok {
			continue
		}
		toAdd = append(toAdd, attr)
	}

	if len(toAdd) > 0 {
		clone.AddAttributes(toAdd...)
	}

	return clone
}

// Shutdown shuts down the wrapped exporter. Both batch processors share one
// underlying exporter, so the second shutdown returns the memoized result.
func (e *resourceAttributeExporter) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.shutdownResult = e.wrapped.Shutdown(ctx)
	})
	return e.shutdownResult
}

// ForceFlush flushes the wrapped exporter.
func (e *resourceAttributeExporter) ForceFlush(ctx context.Context) error {
	return e.wrapped.ForceFlush(ctx)
}

// convertToLogAttribute converts a resource attribute.KeyValue to a log.KeyValue.
func convertToLogAttribute(kv attribute.KeyValue) log.KeyValue {
	return log.KeyValue{
		Key:   string(kv.Key),
		Value: convertAttributeValue(kv.Value),
	}
}

// convertAttributeValue converts an attribute.Value to a log.Value.
func convertAttributeValue(v attribute.Value) log.Value {
	switch v.Type() {
	case attribute.BOOL:
		return log.BoolValue(v.AsBool())
	case attribute.INT64:
		return log.Int64Value(v.AsInt64())
	case attribute.FLOAT64:
		return log.Float64Value(v.AsFloat64())
	case attribute.STRING:
		return log.StringValue(v.AsString())
	case attribute.BOOLSLICE:
		bools := v.AsBoolSlice()
		values := make([]log.Value, len(bools))
		for i, b := range bools {
			values[i] = log.BoolValue(b)
		}
		return log.SliceValue(values...)
	case attribute.INT64SLICE:
		ints := v.AsInt64Slice()
		values := make([]log.Value, len(ints))
		for i, n := range ints {
			values[i] = log.Int64Value(n)
		}
		return log.SliceValue(values...)
	case attribute.FLOAT64SLICE:
		floats := v.AsFloat64Slice()
		values := make([]log.Value, len(floats))
		for i, f := range floats {
			values[i] = log.Float64Value(f)
		}
		return log.SliceValue(values...)
	case attribute.STRINGSLICE:
		strs := v.AsStringSlice()
		values := make([]log.Value, len(strs))
		for i, s := range strs {
			values[i] = log.StringValue(s)
		}
		return log.SliceValue(values...)
	default:
		return log.StringValue(v.AsString())
	}
}
