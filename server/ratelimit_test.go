package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/config"
)

// newRateLimitServer wires the rate limiter together with the centralized
// error handler so denied requests render the standard envelope.
func newRateLimitServer(t *testing.T, requestsPerSecond, burst int) *echo.Echo {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{
			Env: config.EnvDevelopment,
		},
	}

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		customErrorHandler(err, c, cfg)
	}
	e.Use(RateLimit(requestsPerSecond, burst))
	e.GET("/test", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond int
		burst             int
		requests          int
		expectedOK        int
		expectedDenied    int
	}{
		{
			name:              "requests_within_limit",
			requestsPerSecond: 2,
			burst:             0, // Defaults to requestsPerSecond * BurstMultiplier
			requests:          3,
			expectedOK:        3,
			expectedDenied:    0,
		},
		{
			name:              "requests_exceed_burst",
			requestsPerSecond: 2,
			burst:             0,
			requests:          6,
			expectedOK:        4,
			expectedDenied:    2,
		},
		{
			name:              "explicit_burst_honored",
			requestsPerSecond: 1,
			burst:             5,
			requests:          6,
			expectedOK:        5,
			expectedDenied:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newRateLimitServer(t, tt.requestsPerSecond, tt.burst)

			okCount := 0
			deniedCount := 0
			for i := 0; i < tt.requests; i++ {
				req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
				req.Header.Set(echo.HeaderXRealIP, "192.168.1.50")
				rec := httptest.NewRecorder()

				e.ServeHTTP(rec, req)

				switch rec.Code {
				case http.StatusOK:
					okCount++
				case http.StatusTooManyRequests:
					deniedCount++
				default:
					t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
				}
			}

			assert.Equal(t, tt.expectedOK, okCount, "allowed request count")
			assert.Equal(t, tt.expectedDenied, deniedCount, "denied request count")
		})
	}
}

func TestRateLimitUsesDefaultBurstMultiplier(t *testing.T) {
	// Rate 1 with unset burst allows BurstMultiplier requests up front
	e := newRateLimitServer(t, 1, 0)

	for i := 0; i < BurstMultiplier; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set(echo.HeaderXRealIP, "192.168.1.60")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(echo.HeaderXRealIP, "192.168.1.60")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOO_MANY_REQUESTS")
	assert.Contains(t, rec.Body.String(), "Too many requests")
}

func TestRateLimitIPExtraction(t *testing.T) {
	tests := []struct {
		name    string
		firstIP func(req *http.Request)
		otherIP func(req *http.Request)
	}{
		{
			name: "x_real_ip_header",
			firstIP: func(req *http.Request) {
				req.Header.Set(echo.HeaderXRealIP, "203.0.113.10")
			},
			otherIP: func(req *http.Request) {
				req.Header.Set(echo.HeaderXRealIP, "203.0.113.20")
			},
		},
		{
			name: "x_forwarded_for_header",
			firstIP: func(req *http.Request) {
				req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.10, 10.0.0.1")
			},
			otherIP: func(req *http.Request) {
				req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.20, 10.0.0.1")
			},
		},
		{
			name: "remote_addr_fallback",
			firstIP: func(req *http.Request) {
				req.RemoteAddr = "10.1.1.10:40001"
			},
			otherIP: func(req *http.Request) {
				req.RemoteAddr = "10.1.1.20:40002"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newRateLimitServer(t, 1, 1)

			// Exhaust the first client's budget
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			tt.firstIP(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			tt.firstIP(req)
			rec = httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			require.Equal(t, http.StatusTooManyRequests, rec.Code)

			// A different client keeps its own bucket
			req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			tt.otherIP(req)
			rec = httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, "different client should not share the exhausted bucket")
		})
	}
}

func TestRateLimitRecoversAfterWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rate limit recovery test in short mode")
	}

	e := newRateLimitServer(t, 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(echo.HeaderXRealIP, "192.168.1.70")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(echo.HeaderXRealIP, "192.168.1.70")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// One token refills after a second at rate 1
	time.Sleep(1100 * time.Millisecond)

	req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(echo.HeaderXRealIP, "192.168.1.70")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "budget should recover after the refill window")
}

func TestRateLimitDisabledForNonPositiveRate(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond int
	}{
		{name: "zero_rate", requestsPerSecond: 0},
		{name: "negative_rate", requestsPerSecond: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newRateLimitServer(t, tt.requestsPerSecond, 0)

			for i := 0; i < 50; i++ {
				req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
				req.Header.Set(echo.HeaderXRealIP, "192.168.1.80")
				rec := httptest.NewRecorder()

				e.ServeHTTP(rec, req)
				require.Equal(t, http.StatusOK, rec.Code, "request %d should pass with limiting disabled", i+1)
			}
		})
	}
}
