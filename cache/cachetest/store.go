// Package cachetest provides an in-memory cache.Store for unit tests.
//
// The fake is thread-safe, honors TTLs, supports glob patterns in Scan and
// can be configured to fail individual operations, which makes degradation
// paths testable without a Redis server.
package cachetest

import (
	"context"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskhub/taskhub/cache"
)

// Store is an in-memory implementation of cache.Store.
//
// Example usage:
//
//	store := cachetest.NewStore()
//	store.Set(ctx, "key", []byte("value"), time.Minute)
//	data, err := store.Get(ctx, "key")
type Store struct {
	mu     sync.Mutex
	data   map[string]*entry
	closed atomic.Bool

	// Scan sessions. A snapshot taken at cursor zero keeps paging stable
	// while the caller deletes the keys it is handed.
	scanSessions map[uint64][]string
	scanNextID   uint64

	// Configurable behavior
	delay       time.Duration
	getError    error
	setError    error
	deleteError error
	existsError error
	scanError   error
	pingError   error
	closeError  error

	// Operation tracking
	getCalls    atomic.Int64
	setCalls    atomic.Int64
	deleteCalls atomic.Int64
	existsCalls atomic.Int64
	scanCalls   atomic.Int64
	pingCalls   atomic.Int64
	closeCalls  atomic.Int64
}

var _ cache.Store = (*Store)(nil)

type entry struct {
	value     []byte
	ttl       time.Duration
	expiresAt time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data:         make(map[string]*entry),
		scanSessions: make(map[uint64][]string),
	}
}

// Configuration methods (fluent API)

// WithDelay configures a delay for all operations.
// Useful for testing context cancellation.
func (s *Store) WithDelay(delay time.Duration) *Store {
	s.delay = delay
	return s
}

// WithGetFailure configures Get operations to return an error.
func (s *Store) WithGetFailure(err error) *Store {
	s.getError = err
	return s
}

// WithSetFailure configures Set operations to return an error.
func (s *Store) WithSetFailure(err error) *Store {
	s.setError = err
	return s
}

// WithDeleteFailure configures Delete operations to return an error.
func (s *Store) WithDeleteFailure(err error) *Store {
	s.deleteError = err
	return s
}

// WithExistsFailure configures Exists operations to return an error.
func (s *Store) WithExistsFailure(err error) *Store {
	s.existsError = err
	return s
}

// WithScanFailure configures Scan operations to return an error.
func (s *Store) WithScanFailure(err error) *Store {
	s.scanError = err
	return s
}

// WithPingFailure configures Ping operations to return an error.
func (s *Store) WithPingFailure(err error) *Store {
	s.pingError = err
	return s
}

// WithCloseFailure configures Close operations to return an error.
func (s *Store) WithCloseFailure(err error) *Store {
	s.closeError = err
	return s
}

// ClearFailures removes all configured operation failures. Used to simulate
// a backend coming back after an outage.
func (s *Store) ClearFailures() *Store {
	s.getError = nil
	s.setError = nil
	s.deleteError = nil
	s.existsError = nil
	s.scanError = nil
	s.pingError = nil
	s.closeError = nil
	return s
}

// cache.Store implementation

// Get retrieves a value. Expired entries behave like missing ones.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.getCalls.Add(1)

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, cache.ErrClosed
	}
	if s.getError != nil {
		return nil, s.getError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil, cache.ErrNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value. The TTL must be positive.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.setCalls.Add(1)

	if err := s.wait(ctx); err != nil {
		return err
	}
	if s.closed.Load() {
		return cache.ErrClosed
	}
	if s.setError != nil {
		return s.setError
	}
	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = &entry{
		value:     stored,
		ttl:       ttl,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes keys and reports how many were present.
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	s.deleteCalls.Add(1)

	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, cache.ErrClosed
	}
	if s.deleteError != nil {
		return 0, s.deleteError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if _, ok := s.lookup(key); ok {
			delete(s.data, key)
			deleted++
		}
	}
	return deleted, nil
}

// Exists reports whether a live entry is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.existsCalls.Add(1)

	if err := s.wait(ctx); err != nil {
		return false, err
	}
	if s.closed.Load() {
		return false, cache.ErrClosed
	}
	if s.existsError != nil {
		return false, s.existsError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lookup(key)
	return ok, nil
}

// Scan pages through keys matching pattern in sorted order. A cursor of zero
// starts a fresh iteration over a snapshot of the current matches, so keys may
// be deleted between pages without disturbing the traversal. The returned
// cursor is zero once the snapshot is exhausted.
func (s *Store) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	s.scanCalls.Add(1)

	if err := s.wait(ctx); err != nil {
		return nil, 0, err
	}
	if s.closed.Load() {
		return nil, 0, cache.ErrClosed
	}
	if s.scanError != nil {
		return nil, 0, s.scanError
	}
	if count <= 0 {
		count = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var remaining []string
	if cursor == 0 {
		for key := range s.data {
			if _, ok := s.lookup(key); !ok {
				continue
			}
			if matched, _ := path.Match(pattern, key); matched {
				remaining = append(remaining, key)
			}
		}
		sort.Strings(remaining)
	} else {
		var ok bool
		remaining, ok = s.scanSessions[cursor]
		if !ok {
			return nil, 0, nil
		}
		delete(s.scanSessions, cursor)
	}

	if int64(len(remaining)) <= count {
		return remaining, 0, nil
	}

	s.scanNextID++
	next := s.scanNextID
	s.scanSessions[next] = remaining[count:]
	return remaining[:count], next, nil
}

// Ping reports the configured connectivity state.
func (s *Store) Ping(ctx context.Context) error {
	s.pingCalls.Add(1)

	if err := s.wait(ctx); err != nil {
		return err
	}
	if s.closed.Load() {
		return cache.ErrClosed
	}
	return s.pingError
}

// Close marks the store closed. Closing twice returns cache.ErrClosed.
func (s *Store) Close() error {
	s.closeCalls.Add(1)

	if s.closeError != nil {
		return s.closeError
	}
	if !s.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	return nil
}

// Inspection helpers

// Keys returns the live keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if _, ok := s.lookup(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	return len(s.Keys())
}

// TTL returns the TTL an entry was stored with, or zero when missing.
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lookup(key); ok {
		return e.ttl
	}
	return 0
}

// OperationCount returns how many times the named operation ran.
// Supported operations: "Get", "Set", "Delete", "Exists", "Scan", "Ping", "Close".
func (s *Store) OperationCount(operation string) int64 {
	switch operation {
	case "Get":
		return s.getCalls.Load()
	case "Set":
		return s.setCalls.Load()
	case "Delete":
		return s.deleteCalls.Load()
	case "Exists":
		return s.existsCalls.Load()
	case "Scan":
		return s.scanCalls.Load()
	case "Ping":
		return s.pingCalls.Load()
	case "Close":
		return s.closeCalls.Load()
	default:
		return 0
	}
}

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool {
	return s.closed.Load()
}

// lookup fetches a live entry, removing it when expired. Callers hold mu.
func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

func (s *Store) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
