package tracking

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database/types"
	"github.com/taskhub/taskhub/logger"
)

// Connection wraps types.Interface to provide per-operation performance
// tracking. It delegates every call to the wrapped connection while recording
// durations, slow queries, errors, spans, and metrics.
type Connection struct {
	conn     types.Interface
	logger   logger.Logger
	vendor   string
	settings Settings

	// Server connection metadata for OTel span attributes
	serverAddress string
	serverPort    int
	namespace     string
}

// NewConnection returns a types.Interface that wraps conn and records
// per-operation metrics and logs. The vendor identifier comes from
// conn.DatabaseType(); tracking settings and server metadata for span
// attributes are derived from cfg when provided.
func NewConnection(conn types.Interface, log logger.Logger, cfg *config.DatabaseConfig) types.Interface {
	tracked := &Connection{
		conn:     conn,
		logger:   log,
		vendor:   conn.DatabaseType(),
		settings: NewSettings(cfg),
	}
	if cfg != nil {
		tracked.serverAddress = cfg.Host
		tracked.serverPort = cfg.Port
		tracked.namespace = cfg.Database
	}
	return tracked
}

// Query executes a query with performance tracking
func (tc *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := tc.conn.Query(ctx, query, args...)

	tc.trackOperation(ctx, query, args, start, 0, err)
	return rows, err
}

// QueryRow executes a single row query with performance tracking. The
// tracking callback fires once the returned row is scanned, so the recorded
// outcome includes scan errors such as sql.ErrNoRows.
func (tc *Connection) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	start := time.Now()
	row := tc.conn.QueryRow(ctx, query, args...)

	return wrapRow(row, func(err error) {
		tc.trackOperation(ctx, query, args, start, 0, err)
	})
}

// Exec executes a query without returning rows with performance tracking
func (tc *Connection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := tc.conn.Exec(ctx, query, args...)

	tc.trackOperation(ctx, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// Prepare prepares a statement with performance tracking
func (tc *Connection) Prepare(ctx context.Context, query string) (types.Statement, error) {
	start := time.Now()
	stmt, err := tc.conn.Prepare(ctx, query)

	tc.trackOperation(ctx, "PREPARE: "+query, nil, start, 0, err)

	if err != nil {
		return nil, err
	}

	return NewStatement(stmt, tc.logger, tc.vendor, query, tc.settings), nil
}

// Begin starts a transaction with performance tracking
func (tc *Connection) Begin(ctx context.Context) (types.Tx, error) {
	start := time.Now()
	tx, err := tc.conn.Begin(ctx)
	tc.trackOperation(ctx, "BEGIN", nil, start, 0, err)
	if err != nil {
		return nil, err
	}

	return NewTransaction(tx, tc.logger, tc.vendor, tc.settings), nil
}

// BeginTx starts a transaction with options and performance tracking
func (tc *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (types.Tx, error) {
	start := time.Now()
	tx, err := tc.conn.BeginTx(ctx, opts)
	tc.trackOperation(ctx, "BEGIN_TX", nil, start, 0, err)
	if err != nil {
		return nil, err
	}

	return NewTransaction(tx, tc.logger, tc.vendor, tc.settings), nil
}

// Health checks database connection health (no tracking needed)
func (tc *Connection) Health(ctx context.Context) error {
	return tc.conn.Health(ctx)
}

// Stats returns database connection statistics (no tracking needed)
func (tc *Connection) Stats() (map[string]any, error) {
	return tc.conn.Stats()
}

// Close closes the database connection (no tracking needed)
func (tc *Connection) Close() error {
	return tc.conn.Close()
}

// DatabaseType returns the database type (no tracking needed)
func (tc *Connection) DatabaseType() string {
	return tc.conn.DatabaseType()
}

// trackOperation tracks database operation performance
func (tc *Connection) trackOperation(ctx context.Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	trackingCtx := &Context{
		Logger:        tc.logger,
		Vendor:        tc.vendor,
		Settings:      tc.settings,
		ServerAddress: tc.serverAddress,
		ServerPort:    tc.serverPort,
		Namespace:     tc.namespace,
	}
	TrackDBOperation(ctx, trackingCtx, query, args, start, rowsAffected, err)
}
