package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/taskhub/taskhub/cache/internal/tracking"
	"github.com/taskhub/taskhub/logger"
)

// storeService implements Service over any Store.
//
// Error policy is asymmetric. Connectivity failures are loud: the service
// flips to degraded, logs the transition once at ERROR, and short-circuits
// every subsequent call so a dead backend costs nothing per request.
// Operational failures are silent: the individual call behaves as a miss or
// no-op and logs at WARN, because a reachable-but-unhappy backend must never
// break a read path that the database can serve.
//
// There is no background reconnection loop. Ping bypasses the short-circuit
// and restores health on success; the readiness probe is the sanctioned
// recovery path.
type storeService struct {
	store   Store
	cfg     Config
	log     logger.Logger
	healthy atomic.Bool
}

// NewService creates the cache service used by repositories. A nil cfg
// selects defaults. The service starts healthy; the first failed call
// degrades it.
func NewService(store Store, cfg *Config, log logger.Logger) (Service, error) {
	if store == nil {
		return nil, NewConfigError("cache.store", "store is required", nil)
	}
	if log == nil {
		return nil, NewConfigError("cache.logger", "logger is required", nil)
	}

	effective := DefaultConfig()
	if cfg != nil {
		effective = *cfg
	}
	if err := effective.Validate(); err != nil {
		return nil, err
	}

	s := &storeService{
		store: store,
		cfg:   effective,
		log:   log,
	}
	s.healthy.Store(true)
	return s, nil
}

// DefaultConfig returns the stock cache settings.
func DefaultConfig() Config {
	return Config{
		Namespace:    DefaultNamespace,
		TTLShort:     defaultTTLShort,
		TTLMedium:    defaultTTLMedium,
		TTLLong:      defaultTTLLong,
		ScanPageSize: defaultScanPageSize,
	}
}

// Read returns the payload for key. Degraded state, absent keys, and backend
// errors all surface as a miss.
func (s *storeService) Read(ctx context.Context, key string) ([]byte, bool) {
	if !s.healthy.Load() {
		logger.IncrementCacheMiss(ctx)
		return nil, false
	}

	data, err := s.store.Get(ctx, key)
	if err != nil {
		logger.IncrementCacheMiss(ctx)
		if errors.Is(err, ErrNotFound) {
			return nil, false
		}
		s.observeError(ctx, "get", key, err)
		return nil, false
	}

	s.restore(ctx)
	logger.IncrementCacheHit(ctx)
	return data, true
}

// Write stores payload under the tier's TTL. Failures are absorbed.
func (s *storeService) Write(ctx context.Context, key string, payload []byte, tier TTLTier) bool {
	if !s.healthy.Load() {
		return false
	}

	if err := s.store.Set(ctx, key, payload, s.cfg.TTL(tier)); err != nil {
		s.observeError(ctx, "set", key, err)
		return false
	}

	s.restore(ctx)
	return true
}

// Remove deletes exact keys, returning how many were removed.
func (s *storeService) Remove(ctx context.Context, keys ...string) int64 {
	if len(keys) == 0 || !s.healthy.Load() {
		return 0
	}

	removed, err := s.store.Delete(ctx, keys...)
	if err != nil {
		s.observeError(ctx, "delete", strings.Join(keys, ","), err)
		return removed
	}

	s.restore(ctx)
	return removed
}

// InvalidatePattern walks the backend's scan cursor with bounded pages,
// deleting each page of matches as it is found. The loop never accumulates
// the full match set in memory. Zero matches is a success; an interrupted
// traversal reports Success=false with the partial delete count.
func (s *storeService) InvalidatePattern(ctx context.Context, pattern string) InvalidationResult {
	result := InvalidationResult{Pattern: pattern}

	if !s.healthy.Load() {
		s.log.WithContext(ctx).Warn().
			Str("pattern", pattern).
			Msg("Cache degraded, invalidation skipped")
		return result
	}

	var cursor uint64
	for {
		keys, next, err := s.store.Scan(ctx, cursor, pattern, s.cfg.ScanPageSize)
		if err != nil {
			s.observeError(ctx, "scan", pattern, err)
			tracking.RecordInvalidation(ctx, pattern, result.Deleted, false)
			return result
		}

		if len(keys) > 0 {
			removed, err := s.store.Delete(ctx, keys...)
			result.Deleted += removed
			if err != nil {
				s.observeError(ctx, "delete", pattern, err)
				tracking.RecordInvalidation(ctx, pattern, result.Deleted, false)
				return result
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	result.Success = true
	s.restore(ctx)
	tracking.RecordInvalidation(ctx, pattern, result.Deleted, true)
	s.log.WithContext(ctx).Debug().
		Str("pattern", pattern).
		Int64("deleted", result.Deleted).
		Msg("Cache invalidation complete")
	return result
}

// InvalidateMultiple invalidates each pattern in order. A failed pattern does
// not stop the remaining ones.
func (s *storeService) InvalidateMultiple(ctx context.Context, patterns []string) []InvalidationResult {
	results := make([]InvalidationResult, 0, len(patterns))
	for _, pattern := range patterns {
		results = append(results, s.InvalidatePattern(ctx, pattern))
	}
	return results
}

// Healthy reports whether calls are currently reaching the backend.
func (s *storeService) Healthy() bool {
	return s.healthy.Load()
}

// Ping checks the backend directly, bypassing the degraded short-circuit, and
// restores health on success.
func (s *storeService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		s.observeError(ctx, "ping", "", err)
		return err
	}
	s.restore(ctx)
	return nil
}

// Close releases the backend connection.
func (s *storeService) Close() error {
	err := s.store.Close()
	if err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

// observeError applies the asymmetric error policy to a failed store call.
func (s *storeService) observeError(ctx context.Context, op, key string, err error) {
	if IsConnectivity(err) {
		if s.healthy.CompareAndSwap(true, false) {
			s.log.Error().Err(err).
				Str("op", op).
				Msg("Cache backend unreachable, entering degraded mode")
		}
		return
	}

	s.log.WithContext(ctx).Warn().Err(err).
		Str("op", op).
		Str("key", key).
		Msg("Cache operation failed")
}

// restore flips a degraded service back to healthy after a successful call.
func (s *storeService) restore(_ context.Context) {
	if s.healthy.CompareAndSwap(false, true) {
		s.log.Info().Msg("Cache backend recovered, leaving degraded mode")
	}
}
