package logger

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRequestTrackers(t *testing.T) {
	ctx := WithRequestTrackers(context.Background())

	IncrementDBCounter(ctx)
	IncrementDBCounter(ctx)
	AddDBElapsed(ctx, 1500)
	IncrementCacheHit(ctx)
	IncrementCacheMiss(ctx)
	IncrementCacheMiss(ctx)

	assert.Equal(t, int64(2), GetDBCounter(ctx))
	assert.Equal(t, int64(1500), GetDBElapsed(ctx))
	assert.Equal(t, int64(1), GetCacheHits(ctx))
	assert.Equal(t, int64(2), GetCacheMisses(ctx))
}

func TestTrackersWithoutInstallation(t *testing.T) {
	ctx := context.Background()

	// No-ops when the trackers were never installed
	IncrementDBCounter(ctx)
	AddDBElapsed(ctx, 99)
	IncrementCacheHit(ctx)
	IncrementCacheMiss(ctx)

	assert.Zero(t, GetDBCounter(ctx))
	assert.Zero(t, GetDBElapsed(ctx))
	assert.Zero(t, GetCacheHits(ctx))
	assert.Zero(t, GetCacheMisses(ctx))
}

func TestSeverityHookContextRoundTrip(t *testing.T) {
	assert.Nil(t, severityHookFromContext(context.Background()))

	called := false
	ctx := WithSeverityHook(context.Background(), func(_ zerolog.Level) { called = true })

	hook := severityHookFromContext(ctx)
	assert.NotNil(t, hook)
	hook(0)
	assert.True(t, called)
}
