package server

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Timing returns a middleware that adds response time headers to HTTP responses.
// It measures request processing time and adds an X-Response-Time header.
// The header is set from a Before hook so it lands before the response is
// committed; headers written after the first body byte are discarded.
func Timing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// SAFETY: Check if response is still valid (may be nil after timeout)
			if resp := c.Response(); resp != nil {
				resp.Before(func() {
					resp.Header().Set(HeaderXResponseTime, time.Since(start).String())
				})
			}

			return next(c)
		}
	}
}
