package observability

import (
	"context"
	"fmt"
	"time"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Shutdown gracefully shuts down an observability provider with a timeout.
// A nil provider or non-positive timeout falls back to safe behavior, so it
// can be called unconditionally from application teardown.
func Shutdown(provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}

	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability shutdown failed: %w", err)
	}

	return nil
}

// MustShutdown is like Shutdown but panics on error.
// Useful in defer statements where error handling is not possible.
func MustShutdown(provider Provider, timeout time.Duration) {
	if err := Shutdown(provider, timeout); err != nil {
		panic(err)
	}
}
