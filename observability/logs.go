package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials/insecure"
)

// initLoggerProvider initializes the OpenTelemetry logger provider with
// dual-mode routing (action logs and trace logs).
func (p *provider) initLoggerProvider() error {
	res, err := p.createResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := p.createLogExporter()
	if err != nil {
		return fmt.Errorf("failed to create log exporter: %w", err)
	}

	processor, err := p.createDualModeProcessor(exporter)
	if err != nil {
		return fmt.Errorf("failed to create dual-mode processor: %w", err)
	}

	p.loggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(processor),
	)

	return nil
}

// createLogExporter creates a log exporter based on the configured endpoint.
func (p *provider) createLogExporter() (sdklog.Exporter, error) {
	if p.config.Logs.Endpoint == EndpointStdout {
		return stdoutlog.New(
			stdoutlog.WithPrettyPrint(),
		)
	}

	switch p.config.Logs.Protocol {
	case ProtocolHTTP:
		return p.createOTLPHTTPLogExporter()
	case ProtocolGRPC:
		return p.createOTLPGRPCLogExporter()
	default:
		return nil, fmt.Errorf("log protocol %q: %w", p.config.Logs.Protocol, ErrInvalidProtocol)
	}
}

// createOTLPHTTPLogExporter creates an OTLP HTTP log exporter.
func (p *provider) createOTLPHTTPLogExporter() (sdklog.Exporter, error) {
	opts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(stripScheme(p.config.Logs.Endpoint)),
	}

	if p.config.Logs.Compression == CompressionGzip {
		opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
	} else {
		opts = append(opts, otlploghttp.WithCompression(otlploghttp.NoCompression))
	}

	if p.config.Logs.Insecure != nil && *p.config.Logs.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}

	if len(p.config.Logs.Headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(p.config.Logs.Headers))
	}

	return otlploghttp.New(context.Background(), opts...)
}

// createOTLPGRPCLogExporter creates an OTLP gRPC log exporter.
func (p *provider) createOTLPGRPCLogExporter() (sdklog.Exporter, error) {
	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(p.config.Logs.Endpoint),
	}

	if p.config.Logs.Compression == CompressionGzip {
		opts = append(opts, otlploggrpc.WithCompressor("gzip"))
	}

	if p.config.Logs.Insecure != nil && *p.config.Logs.Insecure {
		opts = append(opts, otlploggrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	if len(p.config.Logs.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(p.config.Logs.Headers))
	}

	return otlploggrpc.New(context.Background(), opts...)
}

// createDualModeProcessor builds the processor pair that separates action
// logs from trace logs before export.
func (p *provider) createDualModeProcessor(baseExporter sdklog.Exporter) (sdklog.Processor, error) {
	actionResource, err := p.createLogResource(logTypeAction)
	if err != nil {
		return nil, fmt.Errorf("failed to create action log resource: %w", err)
	}

	traceResource, err := p.createLogResource(logTypeTrace)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace log resource: %w", err)
	}

	actionProcessor := p.createBatchProcessor(baseExporter, actionResource)
	traceProcessor := p.createBatchProcessor(baseExporter, traceResource)

	return NewDualModeLogProcessor(actionProcessor, traceProcessor, *p.config.Logs.Sample.Rate), nil
}

// createLogResource merges the base service resource with a log.type attribute.
// The LoggerProvider carries a single resource for all processors, so the
// per-type attribute is injected at export time instead.
func (p *provider) createLogResource(logType string) (*resource.Resource, error) {
	baseRes, err := p.createResource()
	if err != nil {
		return nil, err
	}

	typeRes, err := resource.Merge(
		baseRes,
		resource.NewWithAttributes(
			baseRes.SchemaURL(),
			attribute.String("log.type", logType),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	return typeRes, nil
}

// createBatchProcessor wraps the exporter with resource attribute injection
// and batches exports with the configured limits.
func (p *provider) createBatchProcessor(baseExporter sdklog.Exporter, res *resource.Resource) sdklog.Processor {
	enriched := newResourceAttributeExporter(baseExporter, res)

	return sdklog.NewBatchProcessor(
		enriched,
		sdklog.WithExportTimeout(p.config.Logs.Export.Timeout),
		sdklog.WithExportInterval(p.config.Logs.Batch.Timeout),
		sdklog.WithMaxQueueSize(p.config.Logs.Max.Queue.Size),
		sdklog.WithExportMaxBatchSize(p.config.Logs.Max.Batch.Size),
	)
}
