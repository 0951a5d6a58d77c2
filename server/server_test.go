package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/logger"
)

func newTestServerConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:    "taskhub-test",
			Version: "0.0.1",
			Env:     config.EnvDevelopment,
			Debug:   true,
			Rate:    config.RateConfig{Limit: 100, Burst: 200},
		},
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeout: config.TimeoutConfig{
				Read:       DefaultReadTimeout,
				Write:      DefaultWriteTimeout,
				Idle:       DefaultIdleTimeout,
				Middleware: DefaultMiddlewareTimeout,
				Shutdown:   DefaultShutdownTimeout,
			},
			Path: config.PathConfig{
				Health: "/health",
				Ready:  "/ready",
			},
		},
	}
}

func TestNewServerRegistersProbeEndpoints(t *testing.T) {
	cfg := newTestServerConfig()
	log := logger.New("disabled", false)

	s := New(cfg, log)
	require.NotNil(t, s)
	require.NotNil(t, s.Echo())

	// health probe
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	// default readiness probe
	req = httptest.NewRequest(http.MethodGet, "/ready", http.NoBody)
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var ready map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "ready", ready["status"])
}

func TestNewServerAppliesBasePathToProbes(t *testing.T) {
	cfg := newTestServerConfig()
	cfg.Server.Path.Base = "/api/v1"
	log := logger.New("disabled", false)

	s := New(cfg, log)

	assert.Equal(t, "/api/v1/health", s.HealthPath())
	assert.Equal(t, "/api/v1/ready", s.ReadyPath())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// bare path must not resolve
	req = httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterReadyHandlerSwapsProbe(t *testing.T) {
	cfg := newTestServerConfig()
	log := logger.New("disabled", false)

	s := New(cfg, log)
	s.RegisterReadyHandler(func(c echo.Context) error {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
}

func TestModuleGroupRegistersUnderBasePath(t *testing.T) {
	cfg := newTestServerConfig()
	cfg.Server.Path.Base = "/api/v1"
	log := logger.New("disabled", false)

	s := New(cfg, log)
	group := s.ModuleGroup()

	group.Add(http.MethodGet, "/tasks", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
	})
	assert.Equal(t, "/api/v1/tasks", group.FullPath("/tasks"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModuleGroupWithoutBasePath(t *testing.T) {
	cfg := newTestServerConfig()
	log := logger.New("disabled", false)

	s := New(cfg, log)
	group := s.ModuleGroup()

	group.Add(http.MethodGet, "/tasks", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
	})
	assert.Equal(t, "/tasks", group.FullPath("/tasks"))

	req := httptest.NewRequest(http.MethodGet, "/tasks", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNormalizeBasePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"root", "/", "/"},
		{"no_leading_slash", "api", "/api"},
		{"trailing_slash", "/api/", "/api"},
		{"nested", "/api/v1", "/api/v1"},
		{"nested_trailing", "/api/v1/", "/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeBasePath(tt.input))
		})
	}
}

func TestNormalizeRoutePath(t *testing.T) {
	assert.Equal(t, "/health", normalizeRoutePath("", "/health"))
	assert.Equal(t, "/live", normalizeRoutePath("live", "/health"))
	assert.Equal(t, "/live", normalizeRoutePath("/live", "/health"))
}

func TestBuildFullPath(t *testing.T) {
	s := &Server{basePath: "/api/v1"}
	assert.Equal(t, "/api/v1/health", s.buildFullPath("/health"))
	assert.Equal(t, "/api/v1", s.buildFullPath("/"))

	s = &Server{basePath: ""}
	assert.Equal(t, "/health", s.buildFullPath("/health"))
}

func TestCustomErrorHandlerAPIError(t *testing.T) {
	cfg := newTestServerConfig()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	customErrorHandler(NewConflictError("email already registered"), c, cfg)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	assert.Equal(t, "email already registered", resp.Error.Message)
}

func TestCustomErrorHandlerDeadlineExceeded(t *testing.T) {
	cfg := newTestServerConfig()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	customErrorHandler(context.DeadlineExceeded, c, cfg)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	assert.Equal(t, "Request timed out", resp.Error.Message)
}

func TestCustomErrorHandlerEchoHTTPError(t *testing.T) {
	cfg := newTestServerConfig()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	customErrorHandler(echo.NewHTTPError(http.StatusNotFound, "missing"), c, cfg)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "missing", resp.Error.Message)
}

func TestCustomErrorHandlerHidesInternalDetailInProduction(t *testing.T) {
	cfg := newTestServerConfig()
	cfg.App.Env = config.EnvProduction
	cfg.App.Debug = false

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	customErrorHandler(errors.New("db password rejected"), c, cfg)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, "An error occurred while processing your request", resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
}

func TestCustomErrorHandlerIncludesRawErrorInDevelopment(t *testing.T) {
	cfg := newTestServerConfig()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	customErrorHandler(errors.New("boom"), c, cfg)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.NotNil(t, resp.Error.Details)
	assert.Equal(t, "boom", resp.Error.Details["error"])
}

func TestStatusToErrorCode(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "BAD_REQUEST"},
		{http.StatusUnauthorized, "UNAUTHORIZED"},
		{http.StatusForbidden, "FORBIDDEN"},
		{http.StatusNotFound, "NOT_FOUND"},
		{http.StatusConflict, "CONFLICT"},
		{http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
		{http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{http.StatusInternalServerError, "INTERNAL_ERROR"},
		{http.StatusTeapot, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusToErrorCode(tt.status))
	}
}

func TestServerShutdown(t *testing.T) {
	cfg := newTestServerConfig()
	log := logger.New("disabled", false)

	s := New(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), TestMediumTimeout)
	defer cancel()

	// Shutdown on a never-started server returns promptly without error
	require.NoError(t, s.Shutdown(ctx))
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	cfg := newTestServerConfig()
	log := logger.New("disabled", false)

	s := New(cfg, log)

	req := httptest.NewRequest(http.MethodGet, "/nope", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.NotEmpty(t, resp.Meta["traceId"])
	assert.NotEmpty(t, resp.Meta["timestamp"])
}
