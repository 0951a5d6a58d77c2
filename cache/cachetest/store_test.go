package cachetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/cache"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
	assert.Equal(t, time.Minute, store.TTL("k"))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreExpiration(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestStoreInvalidTTL(t *testing.T) {
	store := NewStore()

	assert.ErrorIs(t, store.Set(context.Background(), "k", []byte("v"), 0), cache.ErrInvalidTTL)
}

func TestStoreDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Minute))

	deleted, err := store.Delete(ctx, "a", "b", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Zero(t, store.Len())
}

func TestStoreScanPaging(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	keys := []string{
		"ns:user:1:tasks:item:1",
		"ns:user:1:tasks:item:2",
		"ns:user:1:tasks:item:3",
		"ns:user:2:tasks:item:1",
	}
	for _, k := range keys {
		require.NoError(t, store.Set(ctx, k, []byte("x"), time.Minute))
	}

	page1, cursor, err := store.Scan(ctx, 0, "ns:user:1:tasks:*", 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)
	assert.NotZero(t, cursor)

	page2, cursor, err := store.Scan(ctx, cursor, "ns:user:1:tasks:*", 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1)
	assert.Zero(t, cursor)

	assert.ElementsMatch(t, keys[:3], append(page1, page2...))
}

func TestStoreFailureInjection(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	store.WithGetFailure(boom).WithPingFailure(boom)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Ping(ctx), boom)

	store.ClearFailures()
	assert.NoError(t, store.Ping(ctx))
}

func TestStoreClosed(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Close())
	assert.True(t, store.IsClosed())
	assert.ErrorIs(t, store.Close(), cache.ErrClosed)

	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, cache.ErrClosed)
}

func TestStoreOperationCount(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), time.Minute)
	_, _ = store.Get(ctx, "k")
	_, _ = store.Get(ctx, "k")

	assert.Equal(t, int64(1), store.OperationCount("Set"))
	assert.Equal(t, int64(2), store.OperationCount("Get"))
	assert.Zero(t, store.OperationCount("Delete"))
}
