package cache

import "time"

// Default TTL tier durations. Lists and aggregates churn with every write, so
// they expire quickly; items are stabler; user profiles rarely change.
const (
	defaultTTLShort  = 1 * time.Minute
	defaultTTLMedium = 5 * time.Minute
	defaultTTLLong   = 1 * time.Hour
)

// defaultScanPageSize bounds one page of a pattern-invalidation scan.
const defaultScanPageSize = 100
