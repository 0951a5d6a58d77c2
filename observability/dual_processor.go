package observability

import (
	"context"
	"encoding/binary"
	"errors"

	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	logTypeAction = "action"
	logTypeTrace  = "trace"
)

// DualModeLogProcessor routes log records by their log.type attribute:
//
//   - Action logs (log.type="action") are request summaries and export at
//     every severity.
//   - Trace logs (log.type="trace", or anything without the attribute) export
//     WARN and above unconditionally; INFO/DEBUG records are sampled by rate.
type DualModeLogProcessor struct {
	actionProcessor sdklog.Processor
	traceProcessor  sdklog.Processor
	samplingRate    float64
}

// NewDualModeLogProcessor creates a dual-mode log processor.
// samplingRate controls what fraction of INFO/DEBUG trace logs to export
// (0.0 to 1.0). Action logs and WARN+ records are always exported.
func NewDualModeLogProcessor(actionProcessor, traceProcessor sdklog.Processor, samplingRate float64) *DualModeLogProcessor {
	if actionProcessor == nil {
		panic("observability: actionProcessor cannot be nil")
	}
	if traceProcessor == nil {
		panic("observability: traceProcessor cannot be nil")
	}

	return &DualModeLogProcessor{
		actionProcessor: actionProcessor,
		traceProcessor:  traceProcessor,
		samplingRate:    samplingRate,
	}
}

// OnEmit routes the record to the processor matching its log.type attribute.
func (p *DualModeLogProcessor) OnEmit(ctx context.Context, rec *sdklog.Record) error {
	enrichTraceContext(ctx, rec)

	if extractLogType(rec) == logTypeAction {
		return p.actionProcessor.OnEmit(ctx, rec)
	}

	// OTel severities: Debug=5, Info=9, Warn=13, Error=17.
	if rec.Severity() >= log.SeverityWarn {
		return p.traceProcessor.OnEmit(ctx, rec)
	}

	if p.shouldSample(rec) {
		return p.traceProcessor.OnEmit(ctx, rec)
	}

	return nil
}

// Enabled pre-filters by severity. EnabledParameters carries no record
// attributes, so action-vs-trace routing has to wait for OnEmit; the only
// safe early answer is whether a record of this severity could ever export.
func (p *DualModeLogProcessor) Enabled(_ context.Context, param sdklog.EnabledParameters) bool {
	if param.Severity >= log.SeverityWarn {
		return true
	}

	return p.samplingRate > 0
}

// shouldSample decides whether an INFO/DEBUG record exports.
// Sampling keys on the trace ID so every record of a trace shares one fate.
func (p *DualModeLogProcessor) shouldSample(rec *sdklog.Record) bool {
	if p.samplingRate <= 0 {
		return false
	}
	if p.samplingRate >= 1.0 {
		return true
	}

	traceID := rec.TraceID()
	if !traceID.IsValid() {
		// No trace to key on, fall back to the record timestamp.
		ts := rec.Timestamp().UnixNano()
		if ts < 0 {
			ts = 0
		}
		return uint64(ts)%100 < uint64(p.samplingRate*100)
	}

	hash := binary.LittleEndian.Uint64(traceID[:8])
	return hash%100 < uint64(p.samplingRate*100)
}

// Shutdown shuts down both processors.
func (p *DualModeLogProcessor) Shutdown(ctx context.Context) error {
	errAction := p.actionProcessor.Shutdown(ctx)
	errTrace := p.traceProcessor.Shutdown(ctx)

	return errors.Join(errAction, errTrace)
}

// ForceFlush flushes both processors.
func (p *DualModeLogProcessor) ForceFlush(ctx context.Context) error {
	errAction := p.actionProcessor.ForceFlush(ctx)
	errTrace := p.traceProcessor.ForceFlush(ctx)

	return errors.Join(errAction, errTrace)
}

// extractLogType reads the log.type attribute, defaulting to "trace" for
// records that lack one (third-party loggers, legacy emitters).
func extractLogType(rec *sdklog.Record) string {
	logType := logTypeTrace

	rec.WalkAttributes(func(kv log.KeyValue) bool {
		if kv.Key == "log.type" {
			if kv.Value.Kind() == log.KindString {
				logType = kv.Value.AsString()
			}
			return false
		}
		return true
	})

	return logType
}

// enrichTraceContext populates the record's canonical TraceID/SpanID/TraceFlags
// fields from the span context when one is active, otherwise from trace_id and
// span_id string attributes. The fallback covers records parsed from JSON by
// the zerolog bridge, where the emitting goroutine's context is long gone.
// The string attributes stay on the record for text-based queries.
func enrichTraceContext(ctx context.Context, rec *sdklog.Record) {
	if enrichFromContext(ctx, rec) {
		return
	}

	enrichFromAttributes(rec)
}

// enrichFromContext populates canonical trace fields from the span context.
// Returns true if fields were populated.
func enrichFromContext(ctx context.Context, rec *sdklog.Record) bool {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return false
	}

	traceID := spanCtx.TraceID()
	spanID := spanCtx.SpanID()
	if !traceID.IsValid() || !spanID.IsValid() {
		return false
	}

	rec.SetTraceID(traceID)
	rec.SetSpanID(spanID)
	rec.SetTraceFlags(spanCtx.TraceFlags())
	return true
}

// traceAttributeCollector accumulates trace correlation attributes during a
// WalkAttributes pass.
type traceAttributeCollector struct {
	traceIDStr   string
	spanIDStr    string
	traceFlags   trace.TraceFlags
	foundTraceID bool
	foundSpanID  bool
	foundFlags   bool
}

// collect inspects one key-value pair, returning false to stop the walk once
// every correlation attribute has been seen.
func (c *traceAttributeCollector) collect(kv log.KeyValue) bool {
	switch kv.Key {
	case "trace_id":
		if kv.Value.Kind() == log.KindString {
			c.traceIDStr = kv.Value.AsString()
			c.foundTraceID = true
		}
	case "span_id":
		if kv.Value.Kind() == log.KindString {
			c.spanIDStr = kv.Value.AsString()
			c.foundSpanID = true
		}
	case "trace_flags":
		if kv.Value.Kind() == log.KindInt64 {
			flags := kv.Value.AsInt64()
			if flags >= 0 && flags <= 255 {
				c.traceFlags = trace.TraceFlags(uint8(flags))
				c.foundFlags = true
			}
		}
	}
	return !c.foundTraceID || !c.foundSpanID || !c.foundFlags
}

// enrichFromAttributes populates canonical trace fields from record attributes.
// Both IDs must parse before anything is written, so a malformed attribute
// never zeroes a valid field.
func enrichFromAttributes(rec *sdklog.Record) {
	collector := &traceAttributeCollector{}
	rec.WalkAttributes(collector.collect)

	if !collector.foundTraceID || !collector.foundSpanID {
		return
	}

	traceID, err := trace.TraceIDFromHex(collector.traceIDStr)
	if err != nil || !traceID.IsValid() {
		return
	}

	spanID, err := trace.SpanIDFromHex(collector.spanIDStr)
	if err != nil || !spanID.IsValid() {
		return
	}

	rec.SetTraceID(traceID)
	rec.SetSpanID(spanID)
	if collector.foundFlags {
		rec.SetTraceFlags(collector.traceFlags)
	}
}
