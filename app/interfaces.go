package app

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskhub/taskhub/server"
)

// SignalHandler interface allows for injectable signal handling for testing.
type SignalHandler interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
}

// TimeoutProvider interface allows for injectable timeout creation for testing.
type TimeoutProvider interface {
	WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc)
}

// ServerRunner abstracts the HTTP server to allow injecting test-friendly
// implementations.
type ServerRunner interface {
	Start() error
	Shutdown(ctx context.Context) error
	ModuleGroup() server.RouteRegistrar
	RegisterReadyHandler(handler echo.HandlerFunc)
}

// OSSignalHandler registers with the operating system's signal delivery.
type OSSignalHandler struct{}

// Notify relays the given signals to c.
func (OSSignalHandler) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

// StandardTimeoutProvider creates real deadline contexts.
type StandardTimeoutProvider struct{}

// WithTimeout returns a context that is cancelled after timeout.
func (StandardTimeoutProvider) WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
