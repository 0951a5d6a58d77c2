package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"google.golang.org/grpc/credentials/insecure"
)

// initMeterProvider initializes the OpenTelemetry meter provider.
func (p *provider) initMeterProvider() error {
	res, err := p.createResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(p.config.Metrics.Interval),
		sdkmetric.WithTimeout(p.config.Metrics.Export.Timeout),
	)

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	return nil
}

// temporalitySelector maps the configured temporality to an SDK selector.
// Delta temporality applies to monotonic instruments and histograms, up-down
// counters and gauges stay cumulative as the OTLP spec requires.
func (p *provider) temporalitySelector() sdkmetric.TemporalitySelector {
	if p.config.Metrics.Temporality == TemporalityDelta {
		return deltaTemporalitySelector
	}
	return sdkmetric.DefaultTemporalitySelector
}

func deltaTemporalitySelector(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	switch kind {
	case sdkmetric.InstrumentKindCounter,
		sdkmetric.InstrumentKindObservableCounter,
		sdkmetric.InstrumentKindHistogram:
		return metricdata.DeltaTemporality
	default:
		return metricdata.CumulativeTemporality
	}
}

// aggregationSelector maps the configured histogram aggregation to an SDK
// selector. Only histogram instruments are affected, other kinds keep the
// SDK defaults.
func (p *provider) aggregationSelector() sdkmetric.AggregationSelector {
	if p.config.Metrics.HistogramAggregation == HistogramAggregationExponential {
		return exponentialHistogramSelector
	}
	return sdkmetric.DefaultAggregationSelector
}

func exponentialHistogramSelector(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	if kind == sdkmetric.InstrumentKindHistogram {
		return sdkmetric.AggregationBase2ExponentialHistogram{
			MaxSize:  160,
			MaxScale: 20,
		}
	}
	return sdkmetric.DefaultAggregationSelector(kind)
}

// createMetricExporter creates a metric exporter based on the configured endpoint.
func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	if p.config.Metrics.Endpoint == EndpointStdout {
		return stdoutmetric.New(
			stdoutmetric.WithPrettyPrint(),
			stdoutmetric.WithTemporalitySelector(p.temporalitySelector()),
			stdoutmetric.WithAggregationSelector(p.aggregationSelector()),
		)
	}

	switch p.config.Metrics.Protocol {
	case ProtocolHTTP:
		return p.createOTLPHTTPMetricExporter()
	case ProtocolGRPC:
		return p.createOTLPGRPCMetricExporter()
	default:
		return nil, fmt.Errorf("metrics protocol %q: %w", p.config.Metrics.Protocol, ErrInvalidProtocol)
	}
}

// createOTLPHTTPMetricExporter creates an OTLP HTTP metric exporter.
func (p *provider) createOTLPHTTPMetricExporter() (sdkmetric.Exporter, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(stripScheme(p.config.Metrics.Endpoint)),
		otlpmetrichttp.WithTemporalitySelector(p.temporalitySelector()),
		otlpmetrichttp.WithAggregationSelector(p.aggregationSelector()),
	}

	if p.config.Metrics.Compression == CompressionGzip {
		opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
	} else {
		opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.NoCompression))
	}

	if p.config.Metrics.Insecure != nil && *p.config.Metrics.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	if len(p.config.Metrics.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(p.config.Metrics.Headers))
	}

	return otlpmetrichttp.New(context.Background(), opts...)
}

// createOTLPGRPCMetricExporter creates an OTLP gRPC metric exporter.
func (p *provider) createOTLPGRPCMetricExporter() (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.Metrics.Endpoint),
		otlpmetricgrpc.WithTemporalitySelector(p.temporalitySelector()),
		otlpmetricgrpc.WithAggregationSelector(p.aggregationSelector()),
	}

	if p.config.Metrics.Compression == CompressionGzip {
		opts = append(opts, otlpmetricgrpc.WithCompressor("gzip"))
	}

	if p.config.Metrics.Insecure != nil && *p.config.Metrics.Insecure {
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	if len(p.config.Metrics.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(p.config.Metrics.Headers))
	}

	return otlpmetricgrpc.New(context.Background(), opts...)
}

// CreateCounter creates a counter metric instrument.
// Counters are monotonically increasing values (e.g. request count, error count).
//
// Example:
//
//	counter, err := CreateCounter(meter, "http.requests.total", "Total HTTP requests")
//	if err != nil {
//	    return err
//	}
//	counter.Add(ctx, 1, metric.WithAttributes(
//	    attribute.String("method", "GET"),
//	    attribute.Int("status", 200),
//	))
func CreateCounter(meter metric.Meter, name, description string, opts ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return meter.Int64Counter(
		name,
		append([]metric.Int64CounterOption{
			metric.WithDescription(description),
		}, opts...)...,
	)
}

// CreateHistogram creates a histogram metric instrument.
// Histograms record distributions of values (e.g. request duration, response size).
//
// Example:
//
//	histogram, err := CreateHistogram(meter, "http.request.duration", "HTTP request duration in milliseconds")
//	if err != nil {
//	    return err
//	}
//	histogram.Record(ctx, 123.45, metric.WithAttributes(
//	    attribute.String("method", "GET"),
//	))
func CreateHistogram(meter metric.Meter, name, description string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return meter.Float64Histogram(
		name,
		append([]metric.Float64HistogramOption{
			metric.WithDescription(description),
		}, opts...)...,
	)
}

// CreateUpDownCounter creates an up-down counter metric instrument.
// Up-down counters can increase or decrease (e.g. active connections, queue depth).
func CreateUpDownCounter(meter metric.Meter, name, description string, opts ...metric.Int64UpDownCounterOption) (metric.Int64UpDownCounter, error) {
	return meter.Int64UpDownCounter(
		name,
		append([]metric.Int64UpDownCounterOption{
			metric.WithDescription(description),
		}, opts...)...,
	)
}
