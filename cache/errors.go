package cache

import (
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for common cache operations.
// Use errors.Is() to check for these specific error conditions.
var (
	// ErrNotFound is returned when a cache key doesn't exist or has expired.
	// This is not a fatal error - callers handle cache misses gracefully.
	ErrNotFound = errors.New("cache: key not found")

	// ErrClosed is returned when attempting to use a closed cache connection.
	ErrClosed = errors.New("cache: connection closed")

	// ErrUnavailable is returned while the service is degraded and
	// short-circuiting operations without touching the backend.
	ErrUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidTTL is returned when a TTL value is zero or negative.
	ErrInvalidTTL = errors.New("cache: invalid TTL")

	// ErrDisabled is returned by the null service's Ping to signal that no
	// backend is configured.
	ErrDisabled = errors.New("cache: disabled")
)

// ConfigError represents a configuration error during cache initialization.
// These errors are fail-fast and abort application startup.
type ConfigError struct {
	Field   string // Configuration field that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache configuration error: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("cache configuration error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// ConnectionError represents a cache connectivity failure: the backend could
// not be reached at all. The service reacts by flipping to degraded.
type ConnectionError struct {
	Op      string // Operation that failed (e.g., "dial", "ping", "scan")
	Address string // Cache server address
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cache connection error: %s failed for %s: %v", e.Op, e.Address, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new connection error.
func NewConnectionError(op, address string, err error) *ConnectionError {
	return &ConnectionError{
		Op:      op,
		Address: address,
		Err:     err,
	}
}

// OperationError represents a failure of an individual cache operation against
// a reachable backend. The service treats these as misses, not outages.
type OperationError struct {
	Op  string // Operation that failed (e.g., "get", "set", "delete")
	Key string // Cache key involved in the operation
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("cache operation error: %s failed for key %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError creates a new operation error.
func NewOperationError(op, key string, err error) *OperationError {
	return &OperationError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// IsConnectivity classifies an error as a connectivity failure, the loud class
// that degrades the service: connection errors, use of a closed client, the
// degraded short-circuit itself, and raw network errors that escaped wrapping.
// Everything else (operation errors, decode failures, timeouts on a live
// connection) is operational and stays silent.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, ErrUnavailable) {
		return true
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
