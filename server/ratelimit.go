package server

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	// BurstMultiplier sizes the default burst when the configuration leaves it unset.
	BurstMultiplier = 2

	// RateLimitCleanup is how long an idle visitor entry survives in the store.
	RateLimitCleanup = time.Minute * 3
)

// RateLimit returns a rate limiting middleware allowing requestsPerSecond
// sustained requests per client IP with the given burst. A non-positive
// requestsPerSecond disables rate limiting; a non-positive burst defaults to
// requestsPerSecond * BurstMultiplier.
//
// Both the deny and error paths return IAPIError values so the centralized
// error handler renders the standard response envelope.
func RateLimit(requestsPerSecond, burst int) echo.MiddlewareFunc {
	if requestsPerSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	if burst <= 0 {
		burst = requestsPerSecond * BurstMultiplier
	}

	config := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(requestsPerSecond),
				Burst:     burst,
				ExpiresIn: RateLimitCleanup,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, _ error) error {
			return NewTooManyRequestsError("Rate limit exceeded")
		},
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			return NewTooManyRequestsError("Too many requests")
		},
	}

	return middleware.RateLimiterWithConfig(config)
}
