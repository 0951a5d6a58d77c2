package server

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// OTelTracing returns the otelecho instrumentation middleware. It creates a
// server span per request named "METHOD /route", records HTTP semantic
// convention attributes, and joins inbound W3C trace context through the
// globally registered propagator. Health and readiness probes are skipped to
// keep the trace backend free of probe noise.
func OTelTracing(serviceName, healthPath, readyPath string) echo.MiddlewareFunc {
	return otelecho.Middleware(serviceName, otelecho.WithSkipper(func(c echo.Context) bool {
		path := c.Path()
		if path == "" {
			path = c.Request().URL.Path
		}
		return path == healthPath || path == readyPath
	}))
}
