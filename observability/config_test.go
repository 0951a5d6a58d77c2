package observability

import (
	"testing"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testServiceName  = "test-service"
	testHTTPEndpoint = "http://localhost:4318"
	testGRPCEndpoint = "localhost:4317"
	testAuthHeader   = "Authorization"
	testAuthToken    = "Bearer test-token"
)

func TestConfigValidateNilConfig(t *testing.T) {
	var nilConfig *Config
	err := nilConfig.Validate()
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name: "valid config",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Sample: SampleConfig{Rate: Float64Ptr(0.5)},
				},
			},
		},
		{
			name:   "disabled config skips validation",
			config: Config{Enabled: false},
		},
		{
			name: "missing service name",
			config: Config{
				Enabled: true,
			},
			wantErr: ErrMissingServiceName,
		},
		{
			name: "negative sample rate",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Sample: SampleConfig{Rate: Float64Ptr(-0.1)},
				},
			},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name: "sample rate above one",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Sample: SampleConfig{Rate: Float64Ptr(1.1)},
				},
			},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name: "sample rate boundaries are valid",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Sample: SampleConfig{Rate: Float64Ptr(0.0)},
				},
			},
		},
		{
			name: "invalid trace protocol",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Endpoint: testHTTPEndpoint,
					Protocol: "tcp",
				},
			},
			wantErr: ErrInvalidProtocol,
		},
		{
			name: "grpc endpoint must not carry a scheme",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Endpoint: testHTTPEndpoint,
					Protocol: ProtocolGRPC,
				},
			},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "http endpoint must carry a scheme",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Endpoint: testGRPCEndpoint,
					Protocol: ProtocolHTTP,
				},
			},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "invalid trace compression",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Compression: "brotli",
				},
			},
			wantErr: ErrInvalidCompression,
		},
		{
			name: "stdout endpoint skips protocol checks",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Endpoint: EndpointStdout,
					Protocol: "tcp",
				},
			},
		},
		{
			name: "invalid metrics temporality",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Metrics: MetricsConfig{
					Enabled:     BoolPtr(true),
					Temporality: "sliding",
				},
			},
			wantErr: ErrInvalidTemporality,
		},
		{
			name: "invalid metrics histogram aggregation",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Metrics: MetricsConfig{
					Enabled:              BoolPtr(true),
					HistogramAggregation: "linear",
				},
			},
			wantErr: ErrInvalidHistogramAggregation,
		},
		{
			name: "disabled metrics skip validation",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Metrics: MetricsConfig{
					Enabled:     BoolPtr(false),
					Temporality: "sliding",
				},
			},
		},
		{
			name: "invalid logs sample rate",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Logs: LogsConfig{
					Enabled: BoolPtr(true),
					Sample:  SampleConfig{Rate: Float64Ptr(2.0)},
				},
			},
			wantErr: ErrInvalidLogSampleRate,
		},
		{
			name: "invalid logs protocol",
			config: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Logs: LogsConfig{
					Enabled:  BoolPtr(true),
					Endpoint: testHTTPEndpoint,
					Protocol: "tcp",
				},
			},
			wantErr: ErrInvalidProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigApplyDefaultsDevelopment(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName},
	}

	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)

	// Trace defaults
	require.NotNil(t, cfg.Trace.Enabled)
	assert.True(t, *cfg.Trace.Enabled)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	assert.True(t, cfg.Trace.Insecure, "stdout endpoint never negotiates TLS")
	assert.Equal(t, CompressionGzip, cfg.Trace.Compression)
	require.NotNil(t, cfg.Trace.Sample.Rate)
	assert.InDelta(t, 1.0, *cfg.Trace.Sample.Rate, 0.001)
	assert.Equal(t, 500*time.Millisecond, cfg.Trace.Batch.Timeout)
	assert.Equal(t, 512, cfg.Trace.Batch.Size)
	assert.Equal(t, 10*time.Second, cfg.Trace.Export.Timeout)
	assert.Equal(t, 2048, cfg.Trace.Max.Queue.Size)
	assert.Equal(t, 512, cfg.Trace.Max.Batch.Size)

	// Metrics defaults
	require.NotNil(t, cfg.Metrics.Enabled)
	assert.True(t, *cfg.Metrics.Enabled)
	assert.Equal(t, EndpointStdout, cfg.Metrics.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Metrics.Protocol)
	assert.Equal(t, CompressionGzip, cfg.Metrics.Compression)
	assert.Equal(t, TemporalityCumulative, cfg.Metrics.Temporality)
	assert.Equal(t, HistogramAggregationExplicit, cfg.Metrics.HistogramAggregation)
	assert.Equal(t, 10*time.Second, cfg.Metrics.Interval)
	assert.Equal(t, 10*time.Second, cfg.Metrics.Export.Timeout)

	// Logs defaults
	require.NotNil(t, cfg.Logs.Enabled)
	assert.True(t, *cfg.Logs.Enabled)
	assert.Equal(t, EndpointStdout, cfg.Logs.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Logs.Protocol)
	assert.Equal(t, CompressionGzip, cfg.Logs.Compression)
	assert.Equal(t, 1*time.Second, cfg.Logs.Slow.Threshold)
	require.NotNil(t, cfg.Logs.Sample.Rate)
	assert.InDelta(t, 0.0, *cfg.Logs.Sample.Rate, 0.001)
	assert.Equal(t, 500*time.Millisecond, cfg.Logs.Batch.Timeout)
	assert.Equal(t, 512, cfg.Logs.Batch.Size)
	assert.Equal(t, 10*time.Second, cfg.Logs.Export.Timeout)
	assert.Equal(t, 2048, cfg.Logs.Max.Queue.Size)
	assert.Equal(t, 512, cfg.Logs.Max.Batch.Size)
}

func TestConfigApplyDefaultsProductionTimings(t *testing.T) {
	cfg := Config{
		Enabled:     true,
		Service:     ServiceConfig{Name: testServiceName},
		Environment: "production",
		Trace:       TraceConfig{Endpoint: testHTTPEndpoint},
		Metrics:     MetricsConfig{Endpoint: testHTTPEndpoint},
		Logs:        LogsConfig{Endpoint: testHTTPEndpoint},
	}

	cfg.ApplyDefaults()

	assert.Equal(t, 5*time.Second, cfg.Trace.Batch.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Trace.Export.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Metrics.Export.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Logs.Batch.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Logs.Export.Timeout)
}

func TestConfigApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName, Version: "2.1.0"},
		Trace: TraceConfig{
			Enabled: BoolPtr(false),
			Sample:  SampleConfig{Rate: Float64Ptr(0.0)},
		},
		Metrics: MetricsConfig{
			Enabled:     BoolPtr(false),
			Temporality: TemporalityDelta,
		},
		Logs: LogsConfig{
			Enabled: BoolPtr(false),
			Sample:  SampleConfig{Rate: Float64Ptr(0.25)},
		},
	}

	cfg.ApplyDefaults()

	assert.Equal(t, "2.1.0", cfg.Service.Version)
	assert.False(t, *cfg.Trace.Enabled, "explicit false is preserved")
	assert.InDelta(t, 0.0, *cfg.Trace.Sample.Rate, 0.001, "explicit 0.0 is preserved")
	assert.False(t, *cfg.Metrics.Enabled)
	assert.Equal(t, TemporalityDelta, cfg.Metrics.Temporality)
	assert.False(t, *cfg.Logs.Enabled)
	assert.InDelta(t, 0.25, *cfg.Logs.Sample.Rate, 0.001)
}

func TestConfigApplyDefaultsInheritsTransport(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName},
		Trace: TraceConfig{
			Endpoint: testGRPCEndpoint,
			Protocol: ProtocolGRPC,
			Insecure: true,
			Headers:  map[string]string{testAuthHeader: testAuthToken},
		},
	}

	cfg.ApplyDefaults()

	assert.Equal(t, ProtocolGRPC, cfg.Metrics.Protocol)
	require.NotNil(t, cfg.Metrics.Insecure)
	assert.True(t, *cfg.Metrics.Insecure)
	assert.Equal(t, testAuthToken, cfg.Metrics.Headers[testAuthHeader])

	assert.Equal(t, ProtocolGRPC, cfg.Logs.Protocol)
	require.NotNil(t, cfg.Logs.Insecure)
	assert.True(t, *cfg.Logs.Insecure)
	assert.Equal(t, testAuthToken, cfg.Logs.Headers[testAuthHeader])

	// Inherited header maps are clones, not aliases.
	cfg.Logs.Headers["X-Extra"] = "logs-only"
	assert.NotContains(t, cfg.Trace.Headers, "X-Extra")
	assert.NotContains(t, cfg.Metrics.Headers, "X-Extra")
}

func TestConfigUnmarshalFromYAML(t *testing.T) {
	yamlContent := `
enabled: true
service:
  name: "test-service"
  version: "1.0.0"
environment: "staging"
trace:
  enabled: true
  endpoint: "http://collector:4318"
  protocol: "http"
  insecure: true
  compression: "none"
  sample:
    rate: 0.3
  batch:
    timeout: 2s
    size: 128
  export:
    timeout: 25s
  max:
    queue:
      size: 1024
    batch:
      size: 256
metrics:
  enabled: true
  endpoint: "stdout"
  temporality: "delta"
  histogram: "exponential"
  interval: 15s
  export:
    timeout: 20s
logs:
  enabled: true
  endpoint: "collector:4317"
  protocol: "grpc"
  slow:
    threshold: 750ms
  sample:
    rate: 0.1
`

	k := koanf.New(".")
	err := k.Load(rawbytes.Provider([]byte(yamlContent)), yaml.Parser())
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, k.Unmarshal("", &cfg))

	assert.True(t, cfg.Enabled)
	assert.Equal(t, testServiceName, cfg.Service.Name)
	assert.Equal(t, "1.0.0", cfg.Service.Version)
	assert.Equal(t, "staging", cfg.Environment)

	require.NotNil(t, cfg.Trace.Enabled)
	assert.True(t, *cfg.Trace.Enabled)
	assert.Equal(t, "http://collector:4318", cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	assert.True(t, cfg.Trace.Insecure)
	assert.Equal(t, CompressionNone, cfg.Trace.Compression)
	require.NotNil(t, cfg.Trace.Sample.Rate)
	assert.InDelta(t, 0.3, *cfg.Trace.Sample.Rate, 0.001)
	assert.Equal(t, 2*time.Second, cfg.Trace.Batch.Timeout)
	assert.Equal(t, 128, cfg.Trace.Batch.Size)
	assert.Equal(t, 25*time.Second, cfg.Trace.Export.Timeout)
	assert.Equal(t, 1024, cfg.Trace.Max.Queue.Size)
	assert.Equal(t, 256, cfg.Trace.Max.Batch.Size)

	assert.Equal(t, TemporalityDelta, cfg.Metrics.Temporality)
	assert.Equal(t, HistogramAggregationExponential, cfg.Metrics.HistogramAggregation)
	assert.Equal(t, 15*time.Second, cfg.Metrics.Interval)
	assert.Equal(t, 20*time.Second, cfg.Metrics.Export.Timeout)

	assert.Equal(t, "collector:4317", cfg.Logs.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Logs.Protocol)
	assert.Equal(t, 750*time.Millisecond, cfg.Logs.Slow.Threshold)
	require.NotNil(t, cfg.Logs.Sample.Rate)
	assert.InDelta(t, 0.1, *cfg.Logs.Sample.Rate, 0.001)
}

func TestConfigEnabledHelpers(t *testing.T) {
	cfg := Config{
		Enabled: false,
		Trace:   TraceConfig{Enabled: BoolPtr(true)},
		Metrics: MetricsConfig{Enabled: BoolPtr(true)},
		Logs:    LogsConfig{Enabled: BoolPtr(true)},
	}

	assert.False(t, cfg.TraceEnabled(), "master switch off disables all signals")
	assert.False(t, cfg.MetricsEnabled())
	assert.False(t, cfg.LogsEnabled())

	cfg.Enabled = true
	assert.True(t, cfg.TraceEnabled())
	assert.True(t, cfg.MetricsEnabled())
	assert.True(t, cfg.LogsEnabled())

	cfg.Logs.Enabled = nil
	assert.False(t, cfg.LogsEnabled(), "nil means not yet defaulted, treated as disabled")
}
