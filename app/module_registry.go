package app

import (
	"errors"
	"fmt"

	"github.com/taskhub/taskhub/logger"
	"github.com/taskhub/taskhub/server"
)

// ModuleRegistry manages the registration and lifecycle of application
// modules. It handles module initialization, route registration, and shutdown.
type ModuleRegistry struct {
	modules []Module
	deps    *ModuleDeps
	logger  logger.Logger
}

// NewModuleRegistry creates a new module registry with the given dependencies.
// It initializes an empty registry ready to accept module registrations.
func NewModuleRegistry(deps *ModuleDeps) *ModuleRegistry {
	return &ModuleRegistry{
		modules: make([]Module, 0),
		deps:    deps,
		logger:  deps.Logger,
	}
}

// Register adds a module to the registry and initializes it.
// It calls the module's Init method with the injected dependencies.
func (r *ModuleRegistry) Register(module Module) error {
	moduleName := module.Name()

	r.logger.Info().
		Str("module", moduleName).
		Str("package", getModulePackage(module)).
		Msg("Registering module")

	if err := module.Init(r.deps); err != nil {
		return fmt.Errorf("failed to initialize module %s: %w", moduleName, err)
	}

	r.modules = append(r.modules, module)
	return nil
}

// RegisterRoutes calls RegisterRoutes on all registered modules.
// It should be called after all modules have been registered.
func (r *ModuleRegistry) RegisterRoutes(registrar server.RouteRegistrar) *server.HandlerRegistry {
	handlerRegistry := server.NewHandlerRegistry(r.deps.Config)

	for _, module := range r.modules {
		r.logger.Info().
			Str("module", module.Name()).
			Msg("Registering module routes")

		module.RegisterRoutes(handlerRegistry, registrar)
	}

	r.logger.Info().
		Int("modules", len(r.modules)).
		Int("routes", handlerRegistry.Routes().Count()).
		Msg("Module routes registered")

	return handlerRegistry
}

// Shutdown gracefully shuts down all registered modules and returns the
// aggregated errors. A failing module does not stop the remaining ones.
func (r *ModuleRegistry) Shutdown() error {
	var errs []error

	for _, module := range r.modules {
		r.logger.Info().
			Str("module", module.Name()).
			Msg("Shutting down module")

		if err := module.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", module.Name(), err))
			r.logger.Error().
				Err(err).
				Str("module", module.Name()).
				Msg("Failed to shutdown module")
		}
	}

	return errors.Join(errs...)
}

// Count returns the number of registered modules.
func (r *ModuleRegistry) Count() int {
	return len(r.modules)
}
