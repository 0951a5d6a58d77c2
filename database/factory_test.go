package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database/types"
	"github.com/taskhub/taskhub/logger"
)

const (
	errUnsupportedDatabaseType = "unsupported database type"
)

func TestValidateDatabaseTypeSuccess(t *testing.T) {
	tests := []struct {
		name   string
		dbType string
	}{
		{
			name:   "postgresql",
			dbType: "postgresql",
		},
		{
			name:   "oracle",
			dbType: "oracle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseType(tt.dbType)
			assert.NoError(t, err)
		})
	}
}

func TestValidateDatabaseTypeFailure(t *testing.T) {
	tests := []struct {
		name          string
		dbType        string
		expectedError string
	}{
		{
			name:          "unsupported_mysql",
			dbType:        "mysql",
			expectedError: errUnsupportedDatabaseType + ": mysql",
		},
		{
			name:          "unsupported_sqlite",
			dbType:        "sqlite",
			expectedError: errUnsupportedDatabaseType + ": sqlite",
		},
		{
			name:          "empty_string",
			dbType:        "",
			expectedError: errUnsupportedDatabaseType + ":",
		},
		{
			name:          "case_sensitive",
			dbType:        "PostgreSQL",
			expectedError: errUnsupportedDatabaseType + ": PostgreSQL",
		},
		{
			name:          "with_whitespace",
			dbType:        " postgresql ",
			expectedError: errUnsupportedDatabaseType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseType(tt.dbType)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestGetSupportedDatabaseTypes(t *testing.T) {
	supported := GetSupportedDatabaseTypes()

	assert.Len(t, supported, 2)
	assert.Contains(t, supported, "postgresql")
	assert.Contains(t, supported, "oracle")
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "postgresql", PostgreSQL)
	assert.Equal(t, "oracle", Oracle)
}

func TestNewConnectionUnsupportedType(t *testing.T) {
	log := newTestLogger()
	cfg := &config.DatabaseConfig{
		Type:     "unsupported",
		Host:     "localhost",
		Port:     5432,
		Database: "taskhub",
		Username: "taskhub",
	}

	conn, err := NewConnection(cfg, log)
	assert.Error(t, err)
	assert.Nil(t, conn)
	assert.Contains(t, err.Error(), errUnsupportedDatabaseType+": unsupported")
}

func TestNewConnectionPostgreSQLUnreachableHost(t *testing.T) {
	log := newTestLogger()

	// The invalid TLD guarantees DNS resolution fails during the startup ping.
	cfg := &config.DatabaseConfig{
		Type:     "postgresql",
		Host:     "db.invalid",
		Port:     5432,
		Database: "taskhub",
		Username: "taskhub",
	}

	conn, err := NewConnection(cfg, log)
	assert.Error(t, err)
	assert.Nil(t, conn)
}

func TestNewConnectionOracleUnreachableHost(t *testing.T) {
	log := newTestLogger()

	cfg := &config.DatabaseConfig{
		Type:     "oracle",
		Host:     "db.invalid",
		Port:     1521,
		Database: "taskhub",
		Username: "taskhub",
	}
	cfg.Oracle.Service.Name = "TASKHUB"

	conn, err := NewConnection(cfg, log)
	assert.Error(t, err)
	assert.Nil(t, conn)
}

// Test that the factory wraps connections with tracking using sqlmock
func TestNewTrackedConnectionWrapsConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	simpleConn := &simpleConnection{db: db}
	log := newTestLogger()

	tracked := NewTrackedConnection(simpleConn, log, &config.DatabaseConfig{})

	require.NotNil(t, tracked)
	assert.IsType(t, &TrackedConnection{}, tracked)
	assert.Equal(t, "postgresql", tracked.DatabaseType())

	require.NoError(t, mock.ExpectationsWereMet())
}

// Test that verifies the factory integration with tracking using sqlmock
func TestFactoryIntegrationWithTracking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := newTestLogger()
	ctx := logger.WithRequestTrackers(context.Background())

	rows := sqlmock.NewRows([]string{"result"}).AddRow(1)
	mock.ExpectQuery("SELECT 1").WillReturnRows(rows)

	simpleConn := &simpleConnection{db: db}
	tracked := NewTrackedConnection(simpleConn, log, &config.DatabaseConfig{})

	initialCounter := logger.GetDBCounter(ctx)

	dbRows, err := tracked.Query(ctx, "SELECT 1")
	require.NoError(t, err)
	defer dbRows.Close()

	finalCounter := logger.GetDBCounter(ctx)
	assert.Equal(t, initialCounter+1, finalCounter)

	elapsed := logger.GetDBElapsed(ctx)
	assert.Greater(t, elapsed, int64(0))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnectionNilConfig(t *testing.T) {
	log := newTestLogger()

	defer func() {
		if r := recover(); r != nil {
			// A panic on nil config is acceptable; it must not corrupt state.
			t.Logf("NewConnection panicked with nil config: %v", r)
		}
	}()

	conn, err := NewConnection(nil, log)
	if err != nil {
		assert.Error(t, err)
		assert.Nil(t, conn)
	}
}

// Simple connection implementation for testing with sqlmock
type simpleConnection struct {
	db *sql.DB
}

func (c *simpleConnection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *simpleConnection) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(c.db.QueryRowContext(ctx, query, args...))
}

func (c *simpleConnection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *simpleConnection) Prepare(ctx context.Context, query string) (Statement, error) {
	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &simpleStatement{stmt: stmt}, nil
}

func (c *simpleConnection) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &simpleTransaction{tx: tx}, nil
}

func (c *simpleConnection) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &simpleTransaction{tx: tx}, nil
}

func (c *simpleConnection) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *simpleConnection) Stats() (map[string]any, error) {
	stats := c.db.Stats()
	return map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
	}, nil
}

func (c *simpleConnection) Close() error {
	return c.db.Close()
}

func (c *simpleConnection) DatabaseType() string {
	return "postgresql"
}

type simpleStatement struct {
	stmt *sql.Stmt
}

func (s *simpleStatement) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	return s.stmt.QueryContext(ctx, args...)
}

func (s *simpleStatement) QueryRow(ctx context.Context, args ...any) types.Row {
	return types.NewRowFromSQL(s.stmt.QueryRowContext(ctx, args...))
}

func (s *simpleStatement) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	return s.stmt.ExecContext(ctx, args...)
}

func (s *simpleStatement) Close() error {
	return s.stmt.Close()
}

type simpleTransaction struct {
	tx *sql.Tx
}

func (t *simpleTransaction) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *simpleTransaction) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(t.tx.QueryRowContext(ctx, query, args...))
}

func (t *simpleTransaction) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *simpleTransaction) Prepare(ctx context.Context, query string) (Statement, error) {
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &simpleStatement{stmt: stmt}, nil
}

func (t *simpleTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *simpleTransaction) Rollback() error {
	return t.tx.Rollback()
}
