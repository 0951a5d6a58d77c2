package cache

import "context"

// NullService is the null-object Service selected at startup when caching is
// disabled or no backend is configured. Every read misses and every write is
// a successful no-op, so repositories run the exact same code path with and
// without a cache.
type NullService struct{}

var _ Service = (*NullService)(nil)

// NewNullService returns the shared no-op cache service.
func NewNullService() *NullService {
	return &NullService{}
}

// Read always misses.
func (*NullService) Read(_ context.Context, _ string) ([]byte, bool) {
	return nil, false
}

// Write drops the payload.
func (*NullService) Write(_ context.Context, _ string, _ []byte, _ TTLTier) bool {
	return false
}

// Remove removes nothing.
func (*NullService) Remove(_ context.Context, _ ...string) int64 {
	return 0
}

// InvalidatePattern succeeds without deleting anything; with no backend there
// is nothing stale to remove.
func (*NullService) InvalidatePattern(_ context.Context, pattern string) InvalidationResult {
	return InvalidationResult{Pattern: pattern, Success: true}
}

// InvalidateMultiple succeeds for every pattern.
func (s *NullService) InvalidateMultiple(ctx context.Context, patterns []string) []InvalidationResult {
	results := make([]InvalidationResult, 0, len(patterns))
	for _, pattern := range patterns {
		results = append(results, s.InvalidatePattern(ctx, pattern))
	}
	return results
}

// Healthy is always false: there is no backend to be healthy.
func (*NullService) Healthy() bool {
	return false
}

// Ping reports that caching is disabled.
func (*NullService) Ping(_ context.Context) error {
	return ErrDisabled
}

// Close is a no-op.
func (*NullService) Close() error {
	return nil
}
