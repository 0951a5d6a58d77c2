package app

import (
	"reflect"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
	"github.com/taskhub/taskhub/server"
)

// Module defines the interface that all application modules must implement.
// It provides hooks for initialization, route registration, and cleanup.
type Module interface {
	Name() string
	Init(deps *ModuleDeps) error
	RegisterRoutes(hr *server.HandlerRegistry, r server.RouteRegistrar)
	Shutdown() error
}

// ModuleDeps contains the dependencies that are injected into each module.
// One instance is built during app construction and shared by every module;
// modules must not mutate it.
type ModuleDeps struct {
	// DB is the relational connection. Nil when no database is configured,
	// which only data-less utility modules should accept.
	DB database.Interface

	// Cache is the cache service. It is never nil: deployments without a
	// cache backend receive the null implementation, so modules call it
	// unconditionally.
	Cache cache.Service

	// Keys builds the cache keys and invalidation patterns shared by all
	// repositories, so every module agrees on the key layout.
	Keys *cache.KeyBuilder

	Logger logger.Logger
	Config *config.Config
}

// getModulePackage extracts the package path from a module instance.
func getModulePackage(module Module) string {
	moduleType := reflect.TypeOf(module)
	if moduleType == nil {
		return ""
	}
	if moduleType.Kind() == reflect.Ptr {
		moduleType = moduleType.Elem()
	}
	return moduleType.PkgPath()
}
