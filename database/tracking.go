package database

import (
	"github.com/taskhub/taskhub/database/internal/tracking"
)

// Re-export the internal tracking implementation as the public API
type (
	TrackedConnection  = tracking.Connection
	TrackingContext    = tracking.Context
	TrackedStatement   = tracking.Statement
	TrackedTransaction = tracking.Transaction
)

// Re-export internal functions as public API
var (
	NewTrackedConnection          = tracking.NewConnection
	TrackDBOperation              = tracking.TrackDBOperation
	NewTrackingSettings           = tracking.NewSettings
	RegisterConnectionPoolMetrics = tracking.RegisterConnectionPoolMetrics
)

// Re-export internal constants
const (
	DefaultSlowQueryThreshold = tracking.DefaultSlowQueryThreshold
	DefaultMaxQueryLength     = tracking.DefaultMaxQueryLength
)
