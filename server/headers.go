package server

// HTTP Header Constants
//
// These constants define standard HTTP header names used across the server
// package. Headers already provided by Echo (echo.HeaderContentType,
// echo.HeaderAuthorization, echo.HeaderXRequestID, etc.) should be used
// directly from the echo package.
const (
	// HeaderXResponseTime is used to report request processing duration.
	// Set by the timing middleware on all responses.
	HeaderXResponseTime = "X-Response-Time"

	// HeaderXRealIP contains the client's real IP address when behind a proxy.
	// Used by rate limiting.
	HeaderXRealIP = "X-Real-IP"

	// HeaderXForwardedFor contains a comma-separated list of IPs from proxies.
	// The first entry is typically the original client IP.
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderXForwardedProto carries the original request scheme when the
	// server sits behind a TLS-terminating proxy.
	HeaderXForwardedProto = "X-Forwarded-Proto"

	// HeaderXCache reports whether a read was served from cache. Handlers set
	// it to CacheHit or CacheMiss on cacheable endpoints.
	HeaderXCache = "X-Cache"
)

// HeaderXCache values.
const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)
