package server

import (
	"github.com/labstack/echo/v4"

	"github.com/taskhub/taskhub/logger"
)

// PerformanceStats returns middleware that initializes operation tracking for
// each request. It installs the database operation counter, accumulated
// database time, and cache hit/miss counters on the request context so the
// database and cache layers can increment them and the request logger can
// report them.
func PerformanceStats() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logger.WithRequestTrackers(c.Request().Context())
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
