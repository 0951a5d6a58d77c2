package server

import (
	"github.com/labstack/echo/v4"

	"github.com/taskhub/taskhub/trace"
)

// TraceContext injects the resolved trace ID and W3C trace context headers
// from the Echo request/response into the request context, so that lower
// layers (repositories, cache, loggers) can reference them without depending
// on Echo.
func TraceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			traceID := getTraceID(c)

			// Attach trace ID to request context
			ctx := trace.WithTraceID(req.Context(), traceID)

			// Propagate W3C trace headers if present on inbound request
			if tp := req.Header.Get(trace.HeaderTraceParent); tp != "" {
				ctx = trace.WithTraceParent(ctx, tp)
			}
			if ts := req.Header.Get(trace.HeaderTraceState); ts != "" {
				ctx = trace.WithTraceState(ctx, ts)
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
