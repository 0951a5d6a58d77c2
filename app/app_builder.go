package app

import (
	"fmt"
	"io"

	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
	"github.com/taskhub/taskhub/observability"
)

// Builder orchestrates the step-by-step construction of an App instance
// using a fluent interface pattern. Each step is responsible for a single
// aspect of initialization, making the process clear and testable.
type Builder struct {
	// Configuration
	cfg  *config.Config
	opts *Options

	// Core components
	observability observability.Provider
	logger        logger.Logger
	bootstrap     *appBootstrap
	bundle        *dependencyBundle
	app           *App

	// State tracking
	err error
}

// NewAppBuilder creates a new app builder instance.
func NewAppBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the configuration and options for the app.
func (b *Builder) WithConfig(cfg *config.Config, opts *Options) *Builder {
	if b.err != nil {
		return b
	}

	if cfg == nil {
		b.err = fmt.Errorf("configuration is required")
		return b
	}

	b.cfg = cfg
	b.opts = opts
	return b
}

// CreateObservability builds the telemetry provider from the observability
// config section. A missing or disabled section yields a no-op provider, so
// later steps never branch on nil.
func (b *Builder) CreateObservability() *Builder {
	if b.err != nil {
		return b
	}

	if b.cfg == nil {
		b.err = fmt.Errorf("configuration required before creating observability provider")
		return b
	}

	obsCfg := &observability.Config{}
	if err := b.cfg.Unmarshal("observability", obsCfg); err != nil {
		b.err = fmt.Errorf("failed to read observability config: %w", err)
		return b
	}

	provider, err := NewFactoryResolver(b.opts).ObservabilityFactory()(obsCfg)
	if err != nil {
		b.err = fmt.Errorf("failed to initialize observability: %w", err)
		return b
	}

	b.observability = provider
	return b
}

// CreateLogger creates and configures the application logger. When log export
// is enabled the zerolog output is bridged into the observability provider.
func (b *Builder) CreateLogger() *Builder {
	if b.err != nil {
		return b
	}

	if b.cfg == nil {
		b.err = fmt.Errorf("configuration required before creating logger")
		return b
	}

	var extra io.Writer
	if b.observability != nil {
		if bridge := logger.NewOTelBridge(b.observability.LoggerProvider()); bridge != nil {
			extra = bridge
		}
	}

	b.logger = logger.NewWithOptions(b.cfg.Log.Level, b.cfg.Log.Pretty, nil, extra)
	b.logger.Info().
		Str("app", b.cfg.App.Name).
		Str("env", b.cfg.App.Env).
		Str("version", b.cfg.App.Version).
		Msg("Starting application")

	return b
}

// CreateBootstrap creates the bootstrap helper for dependency resolution.
func (b *Builder) CreateBootstrap() *Builder {
	if b.err != nil {
		return b
	}

	if b.logger == nil {
		b.err = fmt.Errorf("logger required before creating bootstrap")
		return b
	}

	b.bootstrap = newAppBootstrap(b.cfg, b.logger, b.opts)
	return b
}

// ResolveDependencies creates and configures all application dependencies.
func (b *Builder) ResolveDependencies() *Builder {
	if b.err != nil {
		return b
	}

	if b.bootstrap == nil {
		b.err = fmt.Errorf("bootstrap required before resolving dependencies")
		return b
	}

	bundle, err := b.bootstrap.dependencies()
	if err != nil {
		b.err = err
		return b
	}

	b.bundle = bundle
	return b
}

// CreateApp creates the core App instance with basic configuration.
func (b *Builder) CreateApp() *Builder {
	if b.err != nil {
		return b
	}

	if b.bundle == nil {
		b.err = fmt.Errorf("dependencies required before creating app")
		return b
	}

	signalHandler, timeoutProvider, srv := b.bootstrap.coreComponents()

	b.app = &App{
		cfg:             b.cfg,
		server:          srv,
		logger:          b.logger,
		db:              b.bundle.db,
		cache:           b.bundle.cache,
		deps:            b.bundle.deps,
		observability:   b.observability,
		signalHandler:   signalHandler,
		timeoutProvider: timeoutProvider,
	}

	return b
}

// InitializeRegistry creates and configures the module registry.
func (b *Builder) InitializeRegistry() *Builder {
	if b.err != nil {
		return b
	}

	if b.app == nil {
		b.err = fmt.Errorf("app instance required before initializing registry")
		return b
	}

	b.app.registry = NewModuleRegistry(b.bundle.deps)
	return b
}

// RegisterPoolMetrics registers the connection pool gauges for the database.
// The returned cleanup is invoked during shutdown before the pool closes.
func (b *Builder) RegisterPoolMetrics() *Builder {
	if b.err != nil {
		return b
	}

	if b.app == nil {
		b.err = fmt.Errorf("app instance required before registering pool metrics")
		return b
	}

	if b.app.db != nil {
		b.app.poolMetricsCleanup = database.RegisterConnectionPoolMetrics(b.app.db, b.cfg.Database.Type)
	}

	return b
}

// CreateHealthProbes creates the readiness probes for the connected resources.
func (b *Builder) CreateHealthProbes() *Builder {
	if b.err != nil {
		return b
	}

	if b.app == nil {
		b.err = fmt.Errorf("app instance required before creating health probes")
		return b
	}

	b.app.healthProbes = createHealthProbes(
		b.app.db,
		b.app.cache,
		config.IsCacheConfigured(&b.cfg.Cache),
		b.logger,
	)

	return b
}

// RegisterClosers registers all components that need cleanup on shutdown.
// Closers run in registration order: the cache releases its connections
// before the database pool goes away.
func (b *Builder) RegisterClosers() *Builder {
	if b.err != nil {
		return b
	}

	if b.app == nil {
		b.err = fmt.Errorf("app instance required before registering closers")
		return b
	}

	b.app.registerCloser("cache service", b.app.cache)
	b.app.registerCloser("database connection", b.app.db)
	return b
}

// RegisterReadyHandler registers the health check handler with the server.
func (b *Builder) RegisterReadyHandler() *Builder {
	if b.err != nil {
		return b
	}

	if b.app == nil {
		b.err = fmt.Errorf("app instance required before registering ready handler")
		return b
	}

	b.app.server.RegisterReadyHandler(b.app.readyCheck)
	return b
}

// Build returns the completed App instance, logger, or any error encountered
// during building. The logger is always returned, even on error, to enable
// proper error logging.
func (b *Builder) Build() (*App, logger.Logger, error) {
	log := b.logger
	if log == nil {
		// Fallback to a bootstrap logger if no logger was created
		log = createBootstrapLogger()
	}

	if b.err != nil {
		return nil, log, b.err
	}

	if b.app == nil {
		return nil, log, fmt.Errorf("app building incomplete")
	}

	return b.app, log, nil
}

// GetError returns any error encountered during the building process.
func (b *Builder) GetError() error {
	return b.err
}

// createBootstrapLogger returns a minimal logger for reporting failures that
// occur before the configured logger exists.
func createBootstrapLogger() logger.Logger {
	return logger.New("info", false)
}
