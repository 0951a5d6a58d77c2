package app

import (
	"context"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/cache/redis"
	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
	"github.com/taskhub/taskhub/observability"
	"github.com/taskhub/taskhub/server"
)

// FactoryResolver encapsulates the logic for resolving factory functions
// from Options, providing default implementations when not specified.
type FactoryResolver struct {
	opts *Options
}

// NewFactoryResolver creates a new factory resolver with the given options.
func NewFactoryResolver(opts *Options) *FactoryResolver {
	return &FactoryResolver{
		opts: opts,
	}
}

// DatabaseConnector returns the appropriate database connector function.
// If no custom connector is provided in options, returns the default
// implementation.
func (f *FactoryResolver) DatabaseConnector() DatabaseConnector {
	if f.opts != nil && f.opts.DatabaseConnector != nil {
		return f.opts.DatabaseConnector
	}
	return database.NewConnection
}

// CacheFactory returns the appropriate cache factory function.
// If no custom factory is provided in options, returns the default
// redis-or-null selection.
func (f *FactoryResolver) CacheFactory() CacheFactory {
	if f.opts != nil && f.opts.CacheFactory != nil {
		return f.opts.CacheFactory
	}
	return buildCacheService
}

// ObservabilityFactory returns the appropriate telemetry provider factory.
func (f *FactoryResolver) ObservabilityFactory() ObservabilityFactory {
	if f.opts != nil && f.opts.ObservabilityFactory != nil {
		return f.opts.ObservabilityFactory
	}
	return observability.NewProvider
}

// HasCustomFactories returns true if any custom factories are provided in
// options. This can be useful for logging or debugging purposes.
func (f *FactoryResolver) HasCustomFactories() bool {
	if f.opts == nil {
		return false
	}

	return f.opts.DatabaseConnector != nil ||
		f.opts.CacheFactory != nil ||
		f.opts.ObservabilityFactory != nil
}

// resolveSignalAndTimeout returns the signal handler and timeout provider,
// defaulting to the OS-backed implementations.
func resolveSignalAndTimeout(opts *Options) (SignalHandler, TimeoutProvider) {
	var signalHandler SignalHandler = OSSignalHandler{}
	var timeoutProvider TimeoutProvider = StandardTimeoutProvider{}

	if opts != nil && opts.SignalHandler != nil {
		signalHandler = opts.SignalHandler
	}
	if opts != nil && opts.TimeoutProvider != nil {
		timeoutProvider = opts.TimeoutProvider
	}

	return signalHandler, timeoutProvider
}

// resolveServer returns the HTTP server, constructing the real one unless an
// override is provided.
func resolveServer(cfg *config.Config, log logger.Logger, opts *Options) ServerRunner {
	if opts != nil && opts.Server != nil {
		return opts.Server
	}
	return server.New(cfg, log)
}

// buildCacheService is the default cache factory: a Redis-backed service when
// the cache section is configured, the null service otherwise.
//
// Selection is driven by configuration alone. An unreachable backend does not
// fail startup: the store connects lazily, the startup ping below degrades the
// service immediately and loudly, and the readiness probe's Ping restores it
// once the backend comes back.
func buildCacheService(cfg *config.Config, log logger.Logger) (cache.Service, error) {
	if !config.IsCacheConfigured(&cfg.Cache) {
		log.Info().Msg("Cache not configured, using null cache service")
		return cache.NewNullService(), nil
	}

	serviceCfg := &cache.Config{}
	if err := cfg.InjectInto(serviceCfg); err != nil {
		return nil, err
	}

	redisCfg := &redis.Config{}
	if err := cfg.InjectInto(redisCfg); err != nil {
		return nil, err
	}

	store, err := redis.NewLazyClient(redisCfg, log)
	if err != nil {
		return nil, err
	}

	svc, err := cache.NewService(store, serviceCfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisCfg.DialTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		log.Error().Err(err).
			Str("host", redisCfg.Host).
			Int("port", redisCfg.Port).
			Msg("Cache backend unreachable at startup, starting degraded")
	} else {
		log.Info().
			Str("host", redisCfg.Host).
			Int("port", redisCfg.Port).
			Str("namespace", serviceCfg.Namespace).
			Msg("Cache service connected")
	}

	return svc, nil
}
