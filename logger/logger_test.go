package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogger builds a logger whose JSON output is captured in the returned buffer.
func captureLogger(t *testing.T, level string) (*ZeroLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return NewWithOptions(level, false, nil, buf), buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		pretty bool
	}{
		{name: "InfoLevel", level: "info", pretty: false},
		{name: "DebugLevel", level: "debug", pretty: false},
		{name: "PrettyOutput", level: "warn", pretty: true},
		{name: "UnknownLevelFallsBackToInfo", level: "verbose", pretty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.level, tt.pretty)
			require.NotNil(t, l)
			assert.NotNil(t, l.zlog)
			assert.NotNil(t, l.filter)
		})
	}
}

func TestLogEventFields(t *testing.T) {
	l, buf := captureLogger(t, "debug")

	l.Info().
		Str("entity", "task").
		Int("count", 3).
		Int64("total", 42).
		Bool("cache_hit", true).
		Msg("listed tasks")

	entry := lastEntry(t, buf)
	assert.Equal(t, "listed tasks", entry["message"])
	assert.Equal(t, "task", entry["entity"])
	assert.Equal(t, float64(3), entry["count"])
	assert.Equal(t, float64(42), entry["total"])
	assert.Equal(t, true, entry["cache_hit"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogEventMasksSensitiveStrings(t *testing.T) {
	l, buf := captureLogger(t, "debug")

	l.Info().
		Str("password", "hunter2").
		Str("email", "user@example.com").
		Msg("login attempt")

	entry := lastEntry(t, buf)
	assert.Equal(t, DefaultMaskValue, entry["password"])
	assert.Equal(t, "user@example.com", entry["email"])
}

func TestWithFieldsMasksSensitiveValues(t *testing.T) {
	l, buf := captureLogger(t, "debug")

	l.WithFields(map[string]any{
		"api_key": "abc123",
		"user_id": "u-1",
	}).Info().Msg("request")

	entry := lastEntry(t, buf)
	assert.Equal(t, DefaultMaskValue, entry["api_key"])
	assert.Equal(t, "u-1", entry["user_id"])
}

func TestLevelFiltering(t *testing.T) {
	l, buf := captureLogger(t, "warn")

	l.Debug().Msg("invisible")
	l.Info().Msg("invisible too")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("visible")
	entry := lastEntry(t, buf)
	assert.Equal(t, "visible", entry["message"])
}

func TestSeverityHookFiresOnWarnAndError(t *testing.T) {
	l, _ := captureLogger(t, "debug")

	var mu sync.Mutex
	var seen []zerolog.Level
	ctx := WithSeverityHook(context.Background(), func(level zerolog.Level) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, level)
	})

	bound := l.WithContext(ctx)
	bound.Info().Msg("fine")
	bound.Warn().Msg("suspicious")
	bound.Error().Msg("broken")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, zerolog.WarnLevel, seen[0])
	assert.Equal(t, zerolog.ErrorLevel, seen[1])
}

func TestWithContextNonContextValue(t *testing.T) {
	l, _ := captureLogger(t, "info")

	assert.Same(t, Logger(l), l.WithContext("not a context"))
	assert.Same(t, Logger(l), l.WithContext(nil))
}
