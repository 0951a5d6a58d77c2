package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/configurations"

	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database/types"
	"github.com/taskhub/taskhub/logger"
)

// Connection implements types.Interface for Oracle.
type Connection struct {
	db     *sql.DB
	config *config.DatabaseConfig
	logger logger.Logger
}

var _ types.Interface = (*Connection)(nil)

var (
	openOracleDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("oracle", dsn)
	}
	// openOracleDBWithDialer wires a custom dialer through go-ora's
	// connector. It returns nil when the connector type assertion fails,
	// which signals the caller to fall back to the plain open path.
	openOracleDBWithDialer = func(dsn string, dialer configurations.DialerContext) *sql.DB {
		connector := go_ora.NewConnector(dsn)
		oracleConnector, ok := connector.(*go_ora.OracleConnector)
		if !ok {
			return nil
		}
		oracleConnector.Dialer(dialer)
		return sql.OpenDB(oracleConnector)
	}
	pingOracleDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// resolveServiceName returns the service name for go_ora.BuildUrl.
// A configured SID suppresses the database-name fallback because the SID
// rides in the URL options instead.
func resolveServiceName(cfg *config.DatabaseConfig) string {
	if cfg.Oracle.Service.Name != "" {
		return cfg.Oracle.Service.Name
	}
	if cfg.Oracle.Service.SID != "" {
		return ""
	}
	return cfg.Database
}

// buildURLOptions returns the go_ora URL options for the configured
// connection identifiers.
func buildURLOptions(cfg *config.DatabaseConfig) map[string]string {
	opts := map[string]string{}
	if cfg.Oracle.Service.SID != "" {
		opts["SID"] = cfg.Oracle.Service.SID
	}
	return opts
}

func buildDSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	return go_ora.BuildUrl(cfg.Host, cfg.Port, resolveServiceName(cfg), cfg.Username, cfg.Password, buildURLOptions(cfg))
}

// openDB opens the Oracle pool, preferring the keep-alive dialer path
// when enabled and falling back to the plain open when the connector
// does not accept a custom dialer.
func openDB(cfg *config.DatabaseConfig, dsn string, log logger.Logger) (*sql.DB, error) {
	if cfg.Pool.KeepAlive.Enabled {
		dialer := newKeepAliveDialer(cfg.Pool.KeepAlive.Interval, log)
		if db := openOracleDBWithDialer(dsn, dialer); db != nil {
			return db, nil
		}
		log.Warn().Msg("Oracle connector does not accept a custom dialer, continuing without TCP keep-alive")
	}
	return openOracleDB(dsn)
}

func logConnectionSuccess(cfg *config.DatabaseConfig, log logger.Logger) {
	ev := log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port)

	switch {
	case cfg.Oracle.Service.Name != "":
		ev = ev.Str("service_name", cfg.Oracle.Service.Name)
	case cfg.Oracle.Service.SID != "":
		ev = ev.Str("sid", cfg.Oracle.Service.SID)
	default:
		ev = ev.Str("database", cfg.Database)
	}

	ev.Msg("Connected to Oracle database")
}

// NewConnection creates a new Oracle connection.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (types.Interface, error) {
	db, err := openDB(cfg, buildDSN(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("failed to open Oracle connection: %w", err)
	}

	db.SetMaxOpenConns(int(cfg.Pool.Max.Connections))
	db.SetMaxIdleConns(int(cfg.Pool.Idle.Connections))
	db.SetConnMaxLifetime(cfg.Pool.Lifetime.Max)
	db.SetConnMaxIdleTime(cfg.Pool.Idle.Time)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pingOracleDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close Oracle database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping Oracle database: %w", err)
	}

	logConnectionSuccess(cfg, log)

	return &Connection{
		db:     db,
		config: cfg,
		logger: log,
	}, nil
}

// Statement wraps sql.Stmt to implement types.Statement.
type Statement struct {
	stmt *sql.Stmt
}

// Query executes a prepared query with arguments
func (s *Statement) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	return s.stmt.QueryContext(ctx, args...)
}

// QueryRow executes a prepared query that returns a single row
func (s *Statement) QueryRow(ctx context.Context, args ...any) types.Row {
	return types.NewRowFromSQL(s.stmt.QueryRowContext(ctx, args...))
}

// Exec executes a prepared statement with arguments
func (s *Statement) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	return s.stmt.ExecContext(ctx, args...)
}

// Close closes the prepared statement
func (s *Statement) Close() error {
	return s.stmt.Close()
}

// Transaction wraps sql.Tx to implement types.Tx.
type Transaction struct {
	tx *sql.Tx
}

// Query executes a query within the transaction
func (t *Transaction) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row within the transaction
func (t *Transaction) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(t.tx.QueryRowContext(ctx, query, args...))
}

// Exec executes a query without returning rows within the transaction
func (t *Transaction) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// Prepare creates a prepared statement within the transaction
func (t *Transaction) Prepare(ctx context.Context, query string) (types.Statement, error) {
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Statement{stmt: stmt}, nil
}

// Commit commits the transaction
func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// Query executes a query that returns rows
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row
func (c *Connection) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(c.db.QueryRowContext(ctx, query, args...))
}

// Exec executes a query without returning any rows
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// Prepare creates a prepared statement for later queries or executions
func (c *Connection) Prepare(ctx context.Context, query string) (types.Statement, error) {
	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Statement{stmt: stmt}, nil
}

// Begin starts a transaction
func (c *Connection) Begin(ctx context.Context) (types.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

// BeginTx starts a transaction with options
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (types.Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

// Health checks database connectivity
func (c *Connection) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return c.db.PingContext(ctx)
}

// Stats returns database connection statistics
func (c *Connection) Stats() (map[string]any, error) {
	stats := c.db.Stats()
	result := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_idle_time_closed": stats.MaxIdleTimeClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}

	if c.config != nil {
		result["max_idle_connections"] = c.config.Pool.Idle.Connections
	}

	return result, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	c.logger.Info().Msg("Closing Oracle database connection")
	return c.db.Close()
}

// DatabaseType returns the database type
func (c *Connection) DatabaseType() string {
	return types.Oracle
}
