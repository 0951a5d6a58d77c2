// Package testing provides in-memory OpenTelemetry providers and assertion
// helpers for exercising instrumentation in unit tests, without an external
// collector or backend.
//
// Usage:
//
//	tp := NewTestTraceProvider()
//	defer tp.Shutdown(context.Background())
//
//	tracer := tp.Tracer("test")
//	_, span := tracer.Start(context.Background(), "list-tasks")
//	span.End()
//
//	NewSpanCollector(t, tp.Exporter).WithName("list-tasks").AssertCount(1)
package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	attrValueMismatchErrMsg   = "attribute %s value mismatch"
	metricNotFoundErrMsg      = "metric %s not found"
	metricValueMismatchErrMsg = "metric %s value mismatch"
	noDataPointsErrMsg        = "no data points for metric %s"
)

// TestTraceProvider wraps the SDK TracerProvider with an in-memory exporter.
// Spans are captured synchronously so assertions can run immediately after
// the span ends.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that records all spans in memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	return &TestTraceProvider{
		TracerProvider: provider,
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider with a manual reader, so
// metrics are collected on demand instead of on a timer.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider whose metrics are collected
// with Collect rather than exported periodically.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return &TestMeterProvider{
		MeterProvider: provider,
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	err := tmp.Reader.Collect(context.Background(), &rm)
	require.NoError(t, err, "failed to collect metrics")
	return rm
}

// SpanCollector provides a fluent API for filtering and asserting on captured spans.
type SpanCollector struct {
	t     *testing.T
	spans tracetest.SpanStubs
}

// NewSpanCollector creates a span collector from an in-memory exporter.
func NewSpanCollector(t *testing.T, exporter *tracetest.InMemoryExporter) *SpanCollector {
	t.Helper()
	return &SpanCollector{
		t:     t,
		spans: exporter.GetSpans(),
	}
}

// Len returns the number of collected spans.
func (sc *SpanCollector) Len() int {
	return len(sc.spans)
}

// Get returns the span at the given index, failing the test when out of bounds.
func (sc *SpanCollector) Get(index int) tracetest.SpanStub {
	sc.t.Helper()
	require.Less(sc.t, index, len(sc.spans), "span index out of bounds")
	return sc.spans[index]
}

// First returns the first span, failing the test when the collection is empty.
func (sc *SpanCollector) First() tracetest.SpanStub {
	sc.t.Helper()
	require.NotEmpty(sc.t, sc.spans, "no spans in collection")
	return sc.spans[0]
}

// WithName filters spans by name and returns a new collector.
func (sc *SpanCollector) WithName(name string) *SpanCollector {
	sc.t.Helper()
	filtered := make(tracetest.SpanStubs, 0)
	for i := range sc.spans {
		if sc.spans[i].Name == name {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// WithAttribute filters spans carrying the attribute key-value pair.
func (sc *SpanCollector) WithAttribute(key string, value any) *SpanCollector {
	sc.t.Helper()
	filtered := make(tracetest.SpanStubs, 0)
	for i := range sc.spans {
		for _, attr := range sc.spans[i].Attributes {
			if attr.Key == attribute.Key(key) && matchesValue(attr.Value, value) {
				filtered = append(filtered, sc.spans[i])
				break
			}
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// AssertCount asserts the number of collected spans.
func (sc *SpanCollector) AssertCount(expected int) *SpanCollector {
	sc.t.Helper()
	assert.Len(sc.t, sc.spans, expected, "unexpected number of spans")
	return sc
}

// AssertEmpty asserts that the collection is empty.
func (sc *SpanCollector) AssertEmpty() *SpanCollector {
	sc.t.Helper()
	assert.Empty(sc.t, sc.spans, "expected no spans, but got %d", len(sc.spans))
	return sc
}

// matchesValue reports whether an attribute value equals the expected value.
func matchesValue(attrValue attribute.Value, expected any) bool {
	switch v := expected.(type) {
	case string:
		return attrValue.AsString() == v
	case int:
		return attrValue.AsInt64() == int64(v)
	case int64:
		return attrValue.AsInt64() == v
	case float64:
		return attrValue.AsFloat64() == v
	case bool:
		return attrValue.AsBool() == v
	default:
		return false
	}
}

// AssertSpanName asserts the name of a span.
func AssertSpanName(t *testing.T, span *tracetest.SpanStub, expected string) {
	t.Helper()
	assert.Equal(t, expected, span.Name, "span name mismatch")
}

// AssertSpanAttribute asserts that a span carries an attribute with the expected value.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			assert.True(t, matchesValue(attr.Value, expected), attrValueMismatchErrMsg, key)
			return
		}
	}
	t.Errorf("attribute %s not found in span", key)
}

// AssertSpanStatus asserts the status code of a span.
func AssertSpanStatus(t *testing.T, span *tracetest.SpanStub, expectedCode codes.Code) {
	t.Helper()
	assert.Equal(t, expectedCode, span.Status.Code, "span status code mismatch")
}

// AssertSpanError asserts that a span has an error status, and optionally
// its description.
func AssertSpanError(t *testing.T, span *tracetest.SpanStub, expectedDesc string) {
	t.Helper()
	assert.Equal(t, codes.Error, span.Status.Code, "expected error status")
	if expectedDesc != "" {
		assert.Equal(t, expectedDesc, span.Status.Description, "span error description mismatch")
	}
}

// FindMetric finds a metric by name, returning nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == metricName {
				return &m
			}
		}
	}
	return nil
}

// AssertMetricExists asserts that a metric with the given name was collected.
func AssertMetricExists(t *testing.T, rm metricdata.ResourceMetrics, metricName string) {
	t.Helper()
	require.NotNil(t, FindMetric(rm, metricName), metricNotFoundErrMsg, metricName)
}

// AssertMetricDescription asserts the description of a metric.
func AssertMetricDescription(t *testing.T, rm metricdata.ResourceMetrics, metricName, expectedDesc string) {
	t.Helper()
	metric := FindMetric(rm, metricName)
	require.NotNil(t, metric, metricNotFoundErrMsg, metricName)
	assert.Equal(t, expectedDesc, metric.Description, "metric %s description mismatch", metricName)
}

// AssertMetricValue finds a metric by name and asserts its value.
// Sum and gauge metrics compare the first data point value, histograms
// compare the count.
func AssertMetricValue(t *testing.T, rm metricdata.ResourceMetrics, metricName string, expected any) {
	t.Helper()

	metric := FindMetric(rm, metricName)
	require.NotNil(t, metric, metricNotFoundErrMsg, metricName)

	switch data := metric.Data.(type) {
	case metricdata.Sum[int64]:
		assertIntDataPoint(t, metricName, data.DataPoints, expected)
	case metricdata.Sum[float64]:
		assertFloatDataPoint(t, metricName, data.DataPoints, expected)
	case metricdata.Gauge[int64]:
		assertIntDataPoint(t, metricName, data.DataPoints, expected)
	case metricdata.Gauge[float64]:
		assertFloatDataPoint(t, metricName, data.DataPoints, expected)
	case metricdata.Histogram[int64]:
		require.NotEmpty(t, data.DataPoints, noDataPointsErrMsg, metricName)
		assertHistogramCount(t, metricName, data.DataPoints[0].Count, expected)
	case metricdata.Histogram[float64]:
		require.NotEmpty(t, data.DataPoints, noDataPointsErrMsg, metricName)
		assertHistogramCount(t, metricName, data.DataPoints[0].Count, expected)
	default:
		t.Fatalf("unsupported metric data type: %T", metric.Data)
	}
}

func assertIntDataPoint(t *testing.T, name string, dps []metricdata.DataPoint[int64], expected any) {
	t.Helper()
	require.NotEmpty(t, dps, noDataPointsErrMsg, name)
	switch v := expected.(type) {
	case int:
		assert.Equal(t, int64(v), dps[0].Value, metricValueMismatchErrMsg, name)
	case int64:
		assert.Equal(t, v, dps[0].Value, metricValueMismatchErrMsg, name)
	default:
		t.Fatalf("unsupported expected value type %T for int64 metric", expected)
	}
}

func assertFloatDataPoint(t *testing.T, name string, dps []metricdata.DataPoint[float64], expected any) {
	t.Helper()
	require.NotEmpty(t, dps, noDataPointsErrMsg, name)
	v, ok := expected.(float64)
	if !ok {
		t.Fatalf("unsupported expected value type %T for float64 metric", expected)
	}
	assert.InDelta(t, v, dps[0].Value, 0.001, metricValueMismatchErrMsg, name)
}

func assertHistogramCount(t *testing.T, name string, actualCount uint64, expected any) {
	t.Helper()
	switch v := expected.(type) {
	case uint64:
		assert.Equal(t, v, actualCount, "metric %s count mismatch", name)
	case int:
		if v < 0 {
			t.Fatalf("negative count value %d for histogram metric", v)
		}
		assert.Equal(t, uint64(v), actualCount, "metric %s count mismatch", name)
	default:
		t.Fatalf("unsupported expected value type %T for histogram metric", expected)
	}
}

// GetMetricSumValue returns the first data point value of a Sum metric.
func GetMetricSumValue(rm metricdata.ResourceMetrics, metricName string) (any, error) {
	metric := FindMetric(rm, metricName)
	if metric == nil {
		return nil, fmt.Errorf(metricNotFoundErrMsg, metricName)
	}

	switch data := metric.Data.(type) {
	case metricdata.Sum[int64]:
		if len(data.DataPoints) == 0 {
			return nil, fmt.Errorf(noDataPointsErrMsg, metricName)
		}
		return data.DataPoints[0].Value, nil
	case metricdata.Sum[float64]:
		if len(data.DataPoints) == 0 {
			return nil, fmt.Errorf(noDataPointsErrMsg, metricName)
		}
		return data.DataPoints[0].Value, nil
	default:
		return nil, fmt.Errorf("metric %s is not a Sum type", metricName)
	}
}

// GetMetricHistogramCount returns the count of the first data point of a
// Histogram metric.
func GetMetricHistogramCount(rm metricdata.ResourceMetrics, metricName string) (uint64, error) {
	metric := FindMetric(rm, metricName)
	if metric == nil {
		return 0, fmt.Errorf(metricNotFoundErrMsg, metricName)
	}

	switch data := metric.Data.(type) {
	case metricdata.Histogram[int64]:
		if len(data.DataPoints) == 0 {
			return 0, fmt.Errorf(noDataPointsErrMsg, metricName)
		}
		return data.DataPoints[0].Count, nil
	case metricdata.Histogram[float64]:
		if len(data.DataPoints) == 0 {
			return 0, fmt.Errorf(noDataPointsErrMsg, metricName)
		}
		return data.DataPoints[0].Count, nil
	default:
		return 0, fmt.Errorf("metric %s is not a Histogram type", metricName)
	}
}
