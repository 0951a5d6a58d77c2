package app

import (
	"fmt"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
)

// appBootstrap handles the initialization sequence for creating an App
// instance. It encapsulates the step-by-step process of setting up all
// dependencies.
type appBootstrap struct {
	cfg  *config.Config
	log  logger.Logger
	opts *Options
}

// dependencyBundle holds the created resources and the module dependencies
// assembled from them.
type dependencyBundle struct {
	deps  *ModuleDeps
	db    database.Interface
	cache cache.Service
}

// newAppBootstrap creates a new bootstrap helper with the provided
// configuration.
func newAppBootstrap(cfg *config.Config, log logger.Logger, opts *Options) *appBootstrap {
	return &appBootstrap{cfg: cfg, log: log, opts: opts}
}

// coreComponents resolves and creates the core application components.
// Returns the signal handler, timeout provider, and server runner instances.
func (b *appBootstrap) coreComponents() (SignalHandler, TimeoutProvider, ServerRunner) {
	signalHandler, timeoutProvider := resolveSignalAndTimeout(b.opts)
	return signalHandler, timeoutProvider, resolveServer(b.cfg, b.log, b.opts)
}

// dependencies connects the database and cache and assembles the ModuleDeps
// every module receives. The database is required when configured; the cache
// factory never fails on an unreachable backend, only on bad configuration.
func (b *appBootstrap) dependencies() (*dependencyBundle, error) {
	resolver := NewFactoryResolver(b.opts)

	if resolver.HasCustomFactories() {
		b.log.Debug().Msg("Using custom resource factories")
	}

	var db database.Interface
	if config.IsDatabaseConfigured(&b.cfg.Database) {
		conn, err := resolver.DatabaseConnector()(&b.cfg.Database, b.log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db = conn
	} else {
		b.log.Warn().Msg("No database configured, data modules will fail to initialize")
	}

	cacheSvc, err := resolver.CacheFactory()(b.cfg, b.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache service: %w", err)
	}

	deps := &ModuleDeps{
		DB:     db,
		Cache:  cacheSvc,
		Keys:   cache.NewKeyBuilder(b.cfg.Cache.Namespace),
		Logger: b.log,
		Config: b.cfg,
	}

	return &dependencyBundle{
		deps:  deps,
		db:    db,
		cache: cacheSvc,
	}, nil
}
