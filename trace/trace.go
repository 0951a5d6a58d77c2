package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// contextKey keeps trace values from colliding with other packages' context keys.
type contextKey string

const (
	// traceIDKey is the context key for request trace IDs
	traceIDKey contextKey = "trace_id"
	// traceParentKey is the context key for W3C traceparent header values
	traceParentKey contextKey = "traceparent"
	// traceStateKey is the context key for W3C tracestate header values
	traceStateKey contextKey = "tracestate"

	// HeaderXRequestID is the header carrying the per-request correlation ID
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
	// HeaderTraceState is the W3C tracestate header name
	HeaderTraceState = "tracestate"
)

// WithTraceID stores a request trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// IDFromContext returns the trace ID stored in ctx, if any.
func IDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceIDKey)
}

// EnsureTraceID returns the trace ID from ctx, generating a fresh UUID when
// the context carries none.
func EnsureTraceID(ctx context.Context) string {
	if id, ok := IDFromContext(ctx); ok {
		return id
	}
	return uuid.New().String()
}

// WithTraceParent stores a W3C traceparent value in the context.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns the traceparent stored in ctx, if any.
func ParentFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceParentKey)
}

// WithTraceState stores a W3C tracestate value in the context.
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return context.WithValue(ctx, traceStateKey, traceState)
}

// StateFromContext returns the tracestate stored in ctx, if any.
func StateFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceStateKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// GenerateTraceParent creates a W3C traceparent header value with random
// trace and span IDs and the sampled flag set.
// Format: version(2)-trace-id(32)-span-id(16)-flags(2), e.g. "00-<32>-<16>-01".
func GenerateTraceParent() string {
	traceID := randomID(16)
	spanID := randomID(8)
	return fmt.Sprintf("00-%s-%s-01", hex.EncodeToString(traceID), hex.EncodeToString(spanID))
}

// randomID returns n random bytes that are never all zero; the W3C spec
// treats all-zero trace and span IDs as invalid.
func randomID(n int) []byte {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		for i := range b {
			b[i] = 0
		}
	}
	if allZero(b) {
		b[n-1] = 0x01
	}
	return b
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
