package observability

import (
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that writes telemetry to stdout.
	// Intended for local development without a collector.
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf (default port 4318).
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC (default port 4317).
	ProtocolGRPC = "grpc"

	// CompressionGzip specifies gzip compression for OTLP export.
	CompressionGzip = "gzip"

	// CompressionNone specifies no compression for OTLP export.
	CompressionNone = "none"

	// TemporalityDelta reports the change in value since the last export.
	TemporalityDelta = "delta"

	// TemporalityCumulative reports the total value since the start of measurement.
	// This is the OTel SDK default.
	TemporalityCumulative = "cumulative"

	// HistogramAggregationExponential selects base-2 exponential bucket histograms.
	// Covers a wide value range with lower memory overhead than fixed buckets.
	HistogramAggregationExponential = "exponential"

	// HistogramAggregationExplicit selects fixed bucket boundaries.
	// This is the OTel SDK default.
	HistogramAggregationExplicit = "explicit"

	// EnvironmentDevelopment is the default environment name for development mode.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to the provided bool value.
// Helpful when optional boolean configuration fields are used.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
// Helpful when optional float64 configuration fields are used.
func Float64Ptr(v float64) *float64 {
	return &v
}

// cloneHeaderMap creates a deep copy of a header map to avoid aliasing.
// Returns nil if the input is nil.
func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}

// Config defines the configuration for observability features.
// It unmarshals from the "observability" section of the application config.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns a no-op provider.
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Service contains service identification metadata.
	Service ServiceConfig `koanf:"service" json:"service" yaml:"service" mapstructure:"service"`

	// Environment indicates the deployment environment (e.g. production, staging, development).
	Environment string `koanf:"environment" json:"environment" yaml:"environment" mapstructure:"environment"`

	// Trace contains tracing-specific configuration.
	Trace TraceConfig `koanf:"trace" json:"trace" yaml:"trace" mapstructure:"trace"`

	// Metrics contains metrics-specific configuration.
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics" mapstructure:"metrics"`

	// Logs contains log export configuration.
	Logs LogsConfig `koanf:"logs" json:"logs" yaml:"logs" mapstructure:"logs"`
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	// Name identifies the service in traces, metrics, and logs.
	// Required when observability is enabled.
	Name string `koanf:"name" json:"name" yaml:"name" mapstructure:"name"`

	// Version specifies the version of the service.
	Version string `koanf:"version" json:"version" yaml:"version" mapstructure:"version"`
}

// TraceConfig defines configuration for distributed tracing.
type TraceConfig struct {
	// Enabled controls whether tracing is active.
	// nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Endpoint specifies where to send trace data.
	// The special value "stdout" writes spans to the console.
	// HTTP endpoints include the scheme (e.g. "http://localhost:4318"),
	// gRPC endpoints use host:port (e.g. "localhost:4317").
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Protocol specifies the OTLP protocol: "http" or "grpc".
	// Only used when Endpoint is not "stdout".
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol"`

	// Insecure disables TLS for OTLP connections.
	Insecure bool `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`

	// Headers allows custom headers for OTLP exporters, e.g. authentication tokens.
	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`

	// Compression specifies the compression algorithm for OTLP export: "gzip" or "none".
	Compression string `koanf:"compression" json:"compression" yaml:"compression" mapstructure:"compression"`

	// Sample contains sampling configuration.
	Sample SampleConfig `koanf:"sample" json:"sample" yaml:"sample" mapstructure:"sample"`

	// Batch contains batch processing configuration.
	Batch BatchConfig `koanf:"batch" json:"batch" yaml:"batch" mapstructure:"batch"`

	// Export contains export timeout configuration.
	Export ExportConfig `koanf:"export" json:"export" yaml:"export" mapstructure:"export"`

	// Max contains queue and batch size limits.
	Max MaxConfig `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
}

// SampleConfig defines a sampling rate.
type SampleConfig struct {
	// Rate controls what fraction to collect (0.0 to 1.0).
	// nil = apply default, explicit value = use that value (including 0.0).
	Rate *float64 `koanf:"rate" json:"rate" yaml:"rate" mapstructure:"rate"`
}

// BatchConfig defines batch processing settings.
type BatchConfig struct {
	// Timeout specifies how long to wait before sending a partial batch.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// Size limits the number of records per export batch.
	Size int `koanf:"size" json:"size" yaml:"size" mapstructure:"size"`
}

// ExportConfig defines export timeout settings.
type ExportConfig struct {
	// Timeout specifies the maximum time to wait for an export.
	// Prevents slow backends from blocking the application.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// MaxConfig defines queue and batch size limits.
type MaxConfig struct {
	Queue QueueConfig    `koanf:"queue" json:"queue" yaml:"queue" mapstructure:"queue"`
	Batch MaxBatchConfig `koanf:"batch" json:"batch" yaml:"batch" mapstructure:"batch"`
}

// QueueConfig defines the export queue size limit.
type QueueConfig struct {
	// Size limits the number of records buffered for export.
	Size int `koanf:"size" json:"size" yaml:"size" mapstructure:"size"`
}

// MaxBatchConfig defines the export batch size limit.
type MaxBatchConfig struct {
	Size int `koanf:"size" json:"size" yaml:"size" mapstructure:"size"`
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Endpoint specifies where to send metric data.
	// The special value "stdout" writes metrics to the console.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Protocol specifies the OTLP protocol: "http" or "grpc".
	// If empty, metrics inherit the trace protocol.
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol"`

	// Insecure disables TLS for OTLP connections.
	// Falls back to the trace setting when unset.
	Insecure *bool `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`

	// Headers allows custom headers for OTLP exporters.
	// If nil, metrics inherit trace headers.
	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`

	// Compression specifies the compression algorithm for OTLP export: "gzip" or "none".
	Compression string `koanf:"compression" json:"compression" yaml:"compression" mapstructure:"compression"`

	// Temporality specifies the aggregation temporality: "delta" or "cumulative".
	Temporality string `koanf:"temporality" json:"temporality" yaml:"temporality" mapstructure:"temporality"`

	// HistogramAggregation specifies the histogram aggregation method:
	// "exponential" or "explicit".
	HistogramAggregation string `koanf:"histogram" json:"histogram" yaml:"histogram" mapstructure:"histogram"`

	// Interval specifies how often to export metrics.
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" mapstructure:"interval"`

	// Export contains export timeout configuration.
	Export ExportConfig `koanf:"export" json:"export" yaml:"export" mapstructure:"export"`
}

// LogsConfig defines configuration for log export via OTLP.
//
// Console output is unaffected by this section: the application logger always
// writes to stdout, and OTLP export is layered on top of it.
type LogsConfig struct {
	// Enabled controls whether OTLP log export is active.
	// nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Endpoint specifies where to send log data.
	// The special value "stdout" writes log records to the console.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Protocol specifies the OTLP protocol: "http" or "grpc".
	// If empty, logs inherit the trace protocol.
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol"`

	// Insecure disables TLS for OTLP connections.
	// Falls back to the trace setting when unset.
	Insecure *bool `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`

	// Headers allows custom headers for OTLP exporters.
	// If nil, logs inherit trace headers.
	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`

	// Compression specifies the compression algorithm for OTLP export: "gzip" or "none".
	Compression string `koanf:"compression" json:"compression" yaml:"compression" mapstructure:"compression"`

	// Batch contains batch processing configuration.
	Batch BatchConfig `koanf:"batch" json:"batch" yaml:"batch" mapstructure:"batch"`

	// Export contains export timeout configuration.
	Export ExportConfig `koanf:"export" json:"export" yaml:"export" mapstructure:"export"`

	// Max contains queue and batch size limits.
	Max MaxConfig `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`

	// Slow defines the latency threshold for marking requests as slow.
	// Requests exceeding the threshold are logged with a WARN result code
	// in action logs. System-wide, no per-route overrides.
	Slow SlowConfig `koanf:"slow" json:"slow" yaml:"slow" mapstructure:"slow"`

	// Sample controls what fraction of INFO/DEBUG trace logs to export.
	// ERROR/WARN logs and action logs are always exported.
	// Sampling is deterministic per trace, so all logs in a trace are
	// sampled together. nil = apply default (0.0, drop INFO/DEBUG).
	Sample SampleConfig `koanf:"sample" json:"sample" yaml:"sample" mapstructure:"sample"`
}

// SlowConfig defines the slow request threshold.
type SlowConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// TraceEnabled reports whether span export should be initialized.
func (c *Config) TraceEnabled() bool {
	return c.Enabled && c.Trace.Enabled != nil && *c.Trace.Enabled
}

// MetricsEnabled reports whether metric export should be initialized.
func (c *Config) MetricsEnabled() bool {
	return c.Enabled && c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// LogsEnabled reports whether OTLP log export should be initialized.
func (c *Config) LogsEnabled() bool {
	return c.Enabled && c.Logs.Enabled != nil && *c.Logs.Enabled
}

// ApplyDefaults sets default values for any config fields that are not specified.
// Called after unmarshaling so every field has a sensible value.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	c.applyTraceDefaults()
	c.applyMetricsDefaults()
	c.applyLogsDefaults()
}

// developmentLike reports whether telemetry for the endpoint should use the
// fast development timings rather than the batched production ones.
func (c *Config) developmentLike(endpoint string) bool {
	return c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout
}

// defaultBatchTimeout picks the batch flush interval for an endpoint.
// Development flushes every 500ms for near-instant visibility, production
// batches for 5s for efficiency.
func (c *Config) defaultBatchTimeout(endpoint string) time.Duration {
	if c.developmentLike(endpoint) {
		return 500 * time.Millisecond
	}
	return 5 * time.Second
}

// defaultExportTimeout picks the export timeout for an endpoint.
// Development fails fast at 10s, production allows 60s for real-world
// network conditions and TLS handshakes.
func (c *Config) defaultExportTimeout(endpoint string) time.Duration {
	if c.developmentLike(endpoint) {
		return 10 * time.Second
	}
	return 60 * time.Second
}

func (c *Config) applyTraceDefaults() {
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}

	// Only set when nil (unset). An explicit false is preserved.
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}

	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}

	// The stdout endpoint never negotiates TLS.
	if c.Trace.Endpoint == EndpointStdout {
		c.Trace.Insecure = true
	}

	if c.Trace.Compression == "" {
		c.Trace.Compression = CompressionGzip
	}

	// Only set when nil. An explicit 0.0 is respected (and warned about in
	// NewProvider, since it drops every span).
	if c.Trace.Sample.Rate == nil {
		c.Trace.Sample.Rate = Float64Ptr(1.0)
	}

	if c.Trace.Batch.Timeout == 0 {
		c.Trace.Batch.Timeout = c.defaultBatchTimeout(c.Trace.Endpoint)
	}
	if c.Trace.Batch.Size == 0 {
		c.Trace.Batch.Size = 512
	}
	if c.Trace.Export.Timeout == 0 {
		c.Trace.Export.Timeout = c.defaultExportTimeout(c.Trace.Endpoint)
	}
	if c.Trace.Max.Queue.Size == 0 {
		c.Trace.Max.Queue.Size = 2048
	}
	if c.Trace.Max.Batch.Size == 0 {
		c.Trace.Max.Batch.Size = 512
	}
}

func (c *Config) applyMetricsDefaults() {
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = EndpointStdout
	}

	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}

	// Transport settings inherit from the trace configuration so a single
	// collector endpoint only has to be described once.
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = ProtocolHTTP
	}
	if c.Metrics.Insecure == nil {
		c.Metrics.Insecure = BoolPtr(c.Trace.Insecure)
	}
	if c.Metrics.Headers == nil && c.Trace.Headers != nil {
		c.Metrics.Headers = cloneHeaderMap(c.Trace.Headers)
	}

	if c.Metrics.Compression == "" {
		c.Metrics.Compression = CompressionGzip
	}
	if c.Metrics.Temporality == "" {
		c.Metrics.Temporality = TemporalityCumulative
	}
	if c.Metrics.HistogramAggregation == "" {
		c.Metrics.HistogramAggregation = HistogramAggregationExplicit
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
	if c.Metrics.Export.Timeout == 0 {
		c.Metrics.Export.Timeout = c.defaultExportTimeout(c.Metrics.Endpoint)
	}
}

func (c *Config) applyLogsDefaults() {
	if c.Logs.Endpoint == "" {
		c.Logs.Endpoint = EndpointStdout
	}

	if c.Enabled && c.Logs.Enabled == nil {
		c.Logs.Enabled = BoolPtr(true)
	}

	// Transport settings inherit from the trace configuration, same as metrics.
	if c.Logs.Protocol == "" {
		c.Logs.Protocol = c.Trace.Protocol
	}
	if c.Logs.Protocol == "" {
		c.Logs.Protocol = ProtocolHTTP
	}
	if c.Logs.Insecure == nil {
		c.Logs.Insecure = BoolPtr(c.Trace.Insecure)
	}
	if c.Logs.Headers == nil && c.Trace.Headers != nil {
		c.Logs.Headers = cloneHeaderMap(c.Trace.Headers)
	}

	if c.Logs.Compression == "" {
		c.Logs.Compression = CompressionGzip
	}

	if c.Logs.Slow.Threshold == 0 {
		c.Logs.Slow.Threshold = 1 * time.Second
	}

	// Only set when nil. Default drops INFO/DEBUG trace logs entirely,
	// action logs are unaffected.
	if c.Logs.Sample.Rate == nil {
		c.Logs.Sample.Rate = Float64Ptr(0.0)
	}

	if c.Logs.Batch.Timeout == 0 {
		c.Logs.Batch.Timeout = c.defaultBatchTimeout(c.Logs.Endpoint)
	}
	if c.Logs.Batch.Size == 0 {
		c.Logs.Batch.Size = 512
	}
	if c.Logs.Export.Timeout == 0 {
		c.Logs.Export.Timeout = c.defaultExportTimeout(c.Logs.Endpoint)
	}
	if c.Logs.Max.Queue.Size == 0 {
		c.Logs.Max.Queue.Size = 2048
	}
	if c.Logs.Max.Batch.Size == 0 {
		c.Logs.Max.Batch.Size = 512
	}
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	if !c.Enabled {
		return nil
	}

	if c.Service.Name == "" {
		return ErrMissingServiceName
	}

	if err := c.validateTraceConfig(); err != nil {
		return err
	}

	if err := c.validateMetricsConfig(); err != nil {
		return err
	}

	return c.validateLogsConfig()
}

// validateEndpointFormat checks that the endpoint format matches the protocol.
// gRPC endpoints use "host:port" without a scheme, HTTP endpoints include one.
func validateEndpointFormat(endpoint, protocol string) error {
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}

	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")

	if protocol == ProtocolGRPC && hasScheme {
		return ErrInvalidEndpointFormat
	}

	if protocol == ProtocolHTTP && !hasScheme {
		return ErrInvalidEndpointFormat
	}

	return nil
}

func validateCompression(compression string) error {
	if compression == "" {
		return nil
	}

	if compression != CompressionGzip && compression != CompressionNone {
		return ErrInvalidCompression
	}

	return nil
}

func validateTemporality(temporality string) error {
	if temporality == "" {
		return nil
	}

	if temporality != TemporalityDelta && temporality != TemporalityCumulative {
		return ErrInvalidTemporality
	}

	return nil
}

func validateHistogramAggregation(aggregation string) error {
	if aggregation == "" {
		return nil
	}

	if aggregation != HistogramAggregationExponential && aggregation != HistogramAggregationExplicit {
		return ErrInvalidHistogramAggregation
	}

	return nil
}

func validateSampleRate(rate *float64, invalid error) error {
	if rate == nil {
		return nil
	}
	if *rate < 0.0 || *rate > 1.0 {
		return invalid
	}
	return nil
}

func (c *Config) validateTraceConfig() error {
	if err := validateSampleRate(c.Trace.Sample.Rate, ErrInvalidSampleRate); err != nil {
		return err
	}

	if err := validateCompression(c.Trace.Compression); err != nil {
		return err
	}

	if c.Trace.Endpoint == EndpointStdout || c.Trace.Endpoint == "" {
		return nil
	}

	protocol := c.Trace.Protocol
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	if protocol != ProtocolHTTP && protocol != ProtocolGRPC {
		return ErrInvalidProtocol
	}

	return validateEndpointFormat(c.Trace.Endpoint, protocol)
}

func (c *Config) validateMetricsConfig() error {
	// Only validate when explicitly enabled, nil counts as disabled here.
	if c.Metrics.Enabled == nil || !*c.Metrics.Enabled {
		return nil
	}

	if err := validateCompression(c.Metrics.Compression); err != nil {
		return err
	}

	if err := validateTemporality(c.Metrics.Temporality); err != nil {
		return err
	}

	if err := validateHistogramAggregation(c.Metrics.HistogramAggregation); err != nil {
		return err
	}

	if c.Metrics.Endpoint == EndpointStdout || c.Metrics.Endpoint == "" {
		return nil
	}

	protocol := c.Metrics.Protocol
	if protocol == "" {
		protocol = c.Trace.Protocol
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	if protocol != ProtocolHTTP && protocol != ProtocolGRPC {
		return ErrInvalidProtocol
	}

	return validateEndpointFormat(c.Metrics.Endpoint, protocol)
}

func (c *Config) validateLogsConfig() error {
	// Only validate when explicitly enabled, nil counts as disabled here.
	if c.Logs.Enabled == nil || !*c.Logs.Enabled {
		return nil
	}

	if err := validateSampleRate(c.Logs.Sample.Rate, ErrInvalidLogSampleRate); err != nil {
		return err
	}

	if err := validateCompression(c.Logs.Compression); err != nil {
		return err
	}

	if c.Logs.Endpoint == EndpointStdout || c.Logs.Endpoint == "" {
		return nil
	}

	protocol := c.Logs.Protocol
	if protocol == "" {
		protocol = c.Trace.Protocol
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	if protocol != ProtocolHTTP && protocol != ProtocolGRPC {
		return ErrInvalidProtocol
	}

	return validateEndpointFormat(c.Logs.Endpoint, protocol)
}
