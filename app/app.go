// Package app provides the application framework for the TaskHub service.
// It handles application lifecycle, module registration, and the wiring of
// configuration, logging, database, cache, and HTTP server components.
package app

import (
	"fmt"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
	"github.com/taskhub/taskhub/observability"
)

// App represents the main application instance.
// It manages the lifecycle and coordination of all application components.
type App struct {
	cfg           *config.Config
	server        ServerRunner
	logger        logger.Logger
	registry      *ModuleRegistry
	deps          *ModuleDeps
	db            database.Interface
	cache         cache.Service
	observability observability.Provider

	signalHandler   SignalHandler
	timeoutProvider TimeoutProvider

	healthProbes       []HealthProbe
	closers            []namedCloser
	poolMetricsCleanup func()
}

// namedCloser holds a resource with its name for cleanup tracking.
type namedCloser struct {
	name   string
	closer interface{ Close() error }
}

// New creates a new application instance with all necessary dependencies.
// It loads configuration and initializes logging, telemetry, database, cache,
// and the HTTP server.
func New() (*App, error) {
	return NewWithOptions(nil)
}

// NewWithOptions creates an application instance with optional dependency
// overrides. A nil options value selects all production defaults.
func NewWithOptions(opts *Options) (*App, error) {
	loader := config.Load
	if opts != nil && opts.ConfigLoader != nil {
		loader = opts.ConfigLoader
	}

	cfg, err := loader()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(cfg, opts)
}

// NewWithConfig creates an application instance from an already-loaded
// configuration.
func NewWithConfig(cfg *config.Config, opts *Options) (*App, error) {
	app, log, err := NewAppBuilder().
		WithConfig(cfg, opts).
		CreateObservability().
		CreateLogger().
		CreateBootstrap().
		ResolveDependencies().
		CreateApp().
		InitializeRegistry().
		RegisterPoolMetrics().
		CreateHealthProbes().
		RegisterClosers().
		RegisterReadyHandler().
		Build()
	if err != nil {
		log.Error().Err(err).Msg("Application initialization failed")
		return nil, err
	}

	return app, nil
}

// RegisterModule registers a new module with the application.
// It adds the module to the registry for initialization and route
// registration.
func (a *App) RegisterModule(module Module) error {
	return a.registry.Register(module)
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}

// registerCloser tracks a resource for cleanup during shutdown. Nil closers
// are ignored so optional resources can be registered unconditionally.
func (a *App) registerCloser(name string, closer interface{ Close() error }) {
	if closer == nil {
		return
	}
	a.closers = append(a.closers, namedCloser{name: name, closer: closer})
}
