package app

import (
	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
	"github.com/taskhub/taskhub/observability"
)

// DatabaseConnector creates a database connection from configuration.
type DatabaseConnector func(*config.DatabaseConfig, logger.Logger) (database.Interface, error)

// CacheFactory creates the cache service from configuration. Implementations
// must return a usable Service even when no backend is configured (the null
// service), never nil.
type CacheFactory func(*config.Config, logger.Logger) (cache.Service, error)

// ObservabilityFactory creates the telemetry provider from configuration.
type ObservabilityFactory func(*observability.Config) (observability.Provider, error)

// Options contains optional dependencies for creating an App instance.
// Zero-value fields select the production defaults; tests override the
// pieces they need.
type Options struct {
	SignalHandler        SignalHandler
	TimeoutProvider      TimeoutProvider
	Server               ServerRunner
	ConfigLoader         func() (*config.Config, error)
	DatabaseConnector    DatabaseConnector
	CacheFactory         CacheFactory
	ObservabilityFactory ObservabilityFactory
}
