package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/logger"
	"github.com/taskhub/taskhub/server/internal/tracking"
)

// SetupMiddlewares configures and registers all HTTP middlewares for the Echo server.
// It sets up tracing, CORS, logging, recovery, security headers, rate limiting, and
// other essential middleware. healthPath and readyPath are the full probe paths
// (base path included) so tracing, metrics, and request logs can skip them.
func SetupMiddlewares(e *echo.Echo, log logger.Logger, cfg *config.Config, healthPath, readyPath string) {
	// Request ID
	e.Use(middleware.RequestID())

	// OpenTelemetry server spans; must run before TraceContext so the request
	// context already carries the active span
	e.Use(OTelTracing(cfg.App.Name, healthPath, readyPath))

	// Inject trace context into request context for lower layers
	e.Use(TraceContext())

	// Operation tracker - initialize DB and cache operation tracking for each request
	e.Use(PerformanceStats())

	// CORS
	e.Use(CORS(cfg))

	// Logger middleware with zerolog
	e.Use(Logger(log, healthPath, readyPath))

	// Recovery
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().
				Err(err).
				Str("request_id", safeGetRequestID(c)).
				Bytes("stack", stack).
				Msg("Panic recovered")
			return err
		},
	}))

	// Security headers
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            3600,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	// Body limit
	e.Use(middleware.BodyLimit("10M"))

	// Timeout (context deadline, not Echo's writer-swapping variant)
	e.Use(Timeout(cfg.Server.Timeout.Middleware))

	// Gzip
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))

	// Rate limit
	e.Use(RateLimit(cfg.App.Rate.Limit, cfg.App.Rate.Burst))

	// Timing
	e.Use(Timing())

	// HTTP server metrics; probes are skipped to match tracing
	e.Use(tracking.HTTPMetrics(tracking.HTTPMetricsConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			return path == healthPath || path == readyPath
		},
	}))
}
