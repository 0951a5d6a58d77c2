package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
)

const serverErrorMsg = "server: %w"

// defaultShutdownTimeout bounds graceful shutdown when the configured value
// is missing or invalid.
const defaultShutdownTimeout = 10 * time.Second

// shutdownHardTimeoutSlack is added on top of the graceful timeout before the
// process is forcibly terminated.
const shutdownHardTimeoutSlack = 5 * time.Second

// prepareRuntime registers the module routes on the server before it starts
// accepting traffic.
func (a *App) prepareRuntime() error {
	a.registry.RegisterRoutes(a.server.ModuleGroup())
	return nil
}

// serve starts the HTTP server in a goroutine and returns an error channel
func (a *App) serve() <-chan error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Msg("Server goroutine starting")
		err := a.server.Start()
		a.logger.Info().Err(err).Msg("Server goroutine terminating")

		// Send the error (could be nil if graceful shutdown, or actual error)
		select {
		case errCh <- err:
		default:
			// Channel might be closed already during shutdown
		}
		close(errCh)
	}()

	return errCh
}

// waitForShutdownOrServerError waits for either a shutdown signal or server error
func (a *App) waitForShutdownOrServerError(serverErrCh <-chan error) (bool, error) {
	quit := make(chan os.Signal, 1)
	a.signalHandler.Notify(quit, os.Interrupt, syscall.SIGTERM)
	a.logger.Info().Msg("Signal handler registered, waiting for shutdown signal or server error")

	// Ensure we clean up signal registration regardless of how we exit
	defer func() {
		signal.Stop(quit)
		close(quit)
	}()

	// Wait directly on the signal channel instead of spawning another goroutine
	select {
	case <-quit:
		a.logger.Info().Msg("Shutdown requested via signal")
		return true, nil
	case err, ok := <-serverErrCh:
		a.logger.Info().Err(err).Msgf("Server error channel event (channel_open=%t)", ok)
		if !ok {
			return false, nil
		}
		return false, err
	}
}

// drainServerError drains any remaining error from the server error channel
func (a *App) drainServerError(ch <-chan error) error {
	if ch == nil {
		return nil
	}

	// Set a timeout to prevent hanging indefinitely
	timeout := time.After(3 * time.Second)

	if a.logger != nil {
		a.logger.Debug().Msg("Draining server error channel")
	}

	select {
	case err, ok := <-ch:
		if !ok {
			if a.logger != nil {
				a.logger.Debug().Msg("Server error channel closed normally")
			}
			return nil
		}
		if a.logger != nil {
			a.logger.Debug().Err(err).Msg("Server error channel returned error")
		}
		return err
	case <-timeout:
		if a.logger != nil {
			a.logger.Warn().Msg("Timeout waiting for server goroutine to complete - this may indicate a shutdown issue")
		}
		return fmt.Errorf("server goroutine failed to complete within timeout")
	}
}

// shutdownTimeout returns the configured graceful shutdown window.
func (a *App) shutdownTimeout() time.Duration {
	if t := a.cfg.Server.Timeout.Shutdown; t > 0 {
		return t
	}
	return defaultShutdownTimeout
}

// Run starts the application and blocks until a shutdown signal is received.
// It handles graceful shutdown with a timeout.
func (a *App) Run() error {
	if err := a.prepareRuntime(); err != nil {
		return err
	}

	serverErrCh := a.serve()

	shutdownRequested, serverErr := a.waitForShutdownOrServerError(serverErrCh)

	if shutdownRequested {
		a.logger.Info().Msg("Shutdown signal received")
	}

	if serverErr != nil && !errors.Is(serverErr, http.ErrServerClosed) {
		a.logger.Error().Err(serverErr).Msg("Server stopped unexpectedly")
	}

	gracefulTimeout := a.shutdownTimeout()
	ctx, cancel := a.timeoutProvider.WithTimeout(context.Background(), gracefulTimeout)

	a.logger.Info().Dur("timeout", gracefulTimeout).Msg("Shutting down application")

	// Run shutdown in a goroutine to allow for hard timeout
	shutdownComplete := make(chan error, 1)
	go func() {
		shutdownComplete <- a.Shutdown(ctx)
		close(shutdownComplete)
	}()

	// Wait for shutdown with hard timeout
	var shutdownErr error
	select {
	case shutdownErr = <-shutdownComplete:
		a.logger.Info().Msg("Graceful shutdown completed")
		cancel()
	case <-time.After(gracefulTimeout + shutdownHardTimeoutSlack):
		a.logger.Error().Msg("Shutdown timed out, forcing exit")
		// Force dump goroutines before exit
		a.dumpGoroutinesIfNeeded()
		cancel()
		os.Exit(1)
	}

	var errs []error

	if shutdownRequested {
		a.logger.Info().Msg("Waiting for server goroutine to complete")
		if err := a.drainServerError(serverErrCh); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf(serverErrorMsg, err))
		} else {
			a.logger.Info().Msg("Server goroutine completed successfully")
		}
	} else if serverErr != nil && !errors.Is(serverErr, http.ErrServerClosed) {
		errs = append(errs, fmt.Errorf(serverErrorMsg, serverErr))
	}

	if shutdownErr != nil {
		errs = append(errs, shutdownErr)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// shutdownResource safely shuts down a resource and handles error logging
func (a *App) shutdownResource(closer namedCloser, errs *[]error) {
	if err := closer.closer.Close(); err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", closer.name, err))
		a.logger.Error().Err(err).Msgf("Failed to close %s", closer.name)
		return
	}

	name := strings.TrimSpace(closer.name)
	if name == "" {
		a.logger.Info().Msg("Resource closed successfully")
		return
	}

	// Capitalize the first letter of the name for logging
	capitalizedName := strings.ToUpper(closer.name[:1]) + closer.name[1:]
	a.logger.Info().Msgf("%s closed successfully", capitalizedName)
}

// shutdownObservability flushes buffered telemetry and stops the exporters.
// Flush failures are logged only; losing the final spans must not mark an
// otherwise clean shutdown as failed.
func (a *App) shutdownObservability(ctx context.Context, errs *[]error) {
	if a.observability == nil {
		return
	}

	if err := a.observability.ForceFlush(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to flush telemetry")
	}
	if err := a.observability.Shutdown(ctx); err != nil {
		*errs = append(*errs, fmt.Errorf("observability: %w", err))
		a.logger.Error().Err(err).Msg("Failed to shutdown observability")
	}
}

// Shutdown gracefully shuts down the application with the given context.
// The HTTP server drains first so in-flight requests still have a live
// database and cache underneath them, then modules, then the data layer,
// and observability last so the shutdown itself is still traced.
// Returns an aggregated error if any components fail to shut down.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	shutdownStart := time.Now()

	if a.server != nil {
		serverStart := time.Now()
		a.logger.Info().Msg("Shutting down HTTP server")
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf(serverErrorMsg, err))
			a.logger.Error().Err(err).Msg("Failed to shutdown server")
		} else {
			a.logger.Info().Dur("duration", time.Since(serverStart)).Msg("HTTP server shutdown completed")
		}
	}

	moduleStart := time.Now()
	a.logger.Info().Msg("Shutting down modules")
	if err := a.registry.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("modules: %w", err))
		a.logger.Error().Err(err).Msg("Failed to shutdown modules")
	} else {
		a.logger.Info().Dur("duration", time.Since(moduleStart)).Msg("Modules shutdown completed")
	}

	if a.poolMetricsCleanup != nil {
		a.poolMetricsCleanup()
		a.poolMetricsCleanup = nil
	}

	// Close remaining resources
	closerStart := time.Now()
	a.logger.Info().Msgf("Closing %d remaining resources", len(a.closers))
	for _, closer := range a.closers {
		a.shutdownResource(closer, &errs)
	}
	a.logger.Info().Dur("duration", time.Since(closerStart)).Msg("Resource closing completed")

	a.shutdownObservability(ctx, &errs)

	a.logger.Info().Dur("duration", time.Since(shutdownStart)).Msg("Application shutdown complete")

	// Debug: Dump remaining goroutines if any are still running
	a.dumpGoroutinesIfNeeded()

	// Return aggregated errors if any occurred
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// readyCheck handles the readiness endpoint. The database probe gates
// readiness; a degraded cache is reported but the service stays ready
// because repositories fall back to the database.
func (a *App) readyCheck(c echo.Context) error {
	ctx := c.Request().Context()

	componentStatus := runHealthProbes(ctx, a.healthProbes)

	for _, result := range componentStatus {
		if result.Err != nil && result.Critical {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":    "not ready",
				result.Name: result.Status,
				"error":     result.Err.Error(),
			})
		}
	}

	dbStatus := componentStatus["database"]
	if dbStatus.Status == "" {
		dbStatus.Status = disabledStatus
	}
	dbStats := dbStatus.Details
	if dbStats == nil {
		dbStats = map[string]any{}
	}

	cacheStatus := componentStatus["cache"]
	if cacheStatus.Status == "" {
		cacheStatus.Status = disabledStatus
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ready",
		"time":     time.Now().Unix(),
		"database": dbStatus.Status,
		"db_stats": dbStats,
		"cache":    cacheStatus.Status,
		"app": map[string]any{
			"name":        a.cfg.App.Name,
			"environment": a.cfg.App.Env,
			"version":     a.cfg.App.Version,
		},
	})
}

// dumpGoroutinesIfNeeded dumps goroutine stacks if there are more than expected running
func (a *App) dumpGoroutinesIfNeeded() {
	// Count current goroutines
	numGoroutines := runtime.NumGoroutine()

	// In a clean shutdown, we expect only 1-2 goroutines (main + maybe GC)
	// If more than 3 are running, something is likely leaked
	if numGoroutines > 3 {
		a.logger.Warn().
			Int("goroutine_count", numGoroutines).
			Msg("Unexpected goroutines still running after shutdown")

		// Create a buffer to capture the goroutine dump
		var buf strings.Builder
		buf.WriteString(fmt.Sprintf("=== Goroutine Dump (%d total) ===\n", numGoroutines))

		// Write goroutine profiles to the buffer
		if err := pprof.Lookup("goroutine").WriteTo(&buf, 1); err != nil {
			a.logger.Error().Err(err).Msg("Failed to dump goroutines")
			return
		}

		// Log the dump (split by lines to avoid truncation)
		lines := strings.Split(buf.String(), "\n")
		for i, line := range lines {
			if i == 0 {
				a.logger.Info().Str("dump_line", line).Msg("Goroutine dump header")
			} else if strings.TrimSpace(line) != "" {
				a.logger.Debug().Str("dump_line", line).Msg("Goroutine dump")
			}
		}
	} else {
		a.logger.Info().
			Int("goroutine_count", numGoroutines).
			Msg("Clean shutdown - expected number of goroutines")
	}
}
