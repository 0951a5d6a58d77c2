package oracle

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sijms/go-ora/v2/configurations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/logger"
)

const oraclePingErrorMsg = "failed to ping Oracle database"

func newDisabledTestLogger() logger.Logger {
	return logger.New("disabled", true)
}

// setupMockConnection creates a mock database connection for testing.
func setupMockConnection(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Connection) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	c := &Connection{db: db, logger: newDisabledTestLogger()}
	return db, mock, c
}

func standardPoolConfig() config.PoolConfig {
	return config.PoolConfig{
		Max:      config.PoolMaxConfig{Connections: 5},
		Idle:     config.PoolIdleConfig{Connections: 2, Time: 4 * time.Minute},
		Lifetime: config.LifetimeConfig{Max: 30 * time.Minute},
	}
}

// stubOpenFuncs replaces the package-level open and ping seams for the
// duration of the test.
func stubOpenFuncs(t *testing.T, open func(string) (*sql.DB, error), openWithDialer func(string, configurations.DialerContext) *sql.DB, ping func(context.Context, *sql.DB) error) {
	t.Helper()

	originalOpen := openOracleDB
	originalOpenWithDialer := openOracleDBWithDialer
	originalPing := pingOracleDB

	if open != nil {
		openOracleDB = open
	}
	if openWithDialer != nil {
		openOracleDBWithDialer = openWithDialer
	}
	if ping != nil {
		pingOracleDB = ping
	}

	t.Cleanup(func() {
		openOracleDB = originalOpen
		openOracleDBWithDialer = originalOpenWithDialer
		pingOracleDB = originalPing
	})
}

func TestResolveServiceName(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.DatabaseConfig
		expected string
	}{
		{
			name: "service_name_takes_priority",
			cfg: &config.DatabaseConfig{
				Oracle:   config.OracleConfig{Service: config.ServiceConfig{Name: "XEPDB1", SID: "XE"}},
				Database: "testdb",
			},
			expected: "XEPDB1",
		},
		{
			name: "database_fallback_when_no_service_or_sid",
			cfg: &config.DatabaseConfig{
				Oracle:   config.OracleConfig{},
				Database: "testdb",
			},
			expected: "testdb",
		},
		{
			name: "empty_when_sid_set_without_service_name",
			cfg: &config.DatabaseConfig{
				Oracle:   config.OracleConfig{Service: config.ServiceConfig{SID: "XE"}},
				Database: "testdb",
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveServiceName(tt.cfg))
		})
	}
}

func TestBuildURLOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.DatabaseConfig
		expected map[string]string
	}{
		{
			name:     "with_sid",
			cfg:      &config.DatabaseConfig{Oracle: config.OracleConfig{Service: config.ServiceConfig{SID: "XE"}}},
			expected: map[string]string{"SID": "XE"},
		},
		{
			name:     "without_sid",
			cfg:      &config.DatabaseConfig{Oracle: config.OracleConfig{}},
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildURLOptions(tt.cfg))
		})
	}
}

func TestBuildDSN(t *testing.T) {
	t.Run("ConnectionStringPassthrough", func(t *testing.T) {
		cfg := &config.DatabaseConfig{ConnectionString: "oracle://u:p@h:1521/svc"}
		assert.Equal(t, "oracle://u:p@h:1521/svc", buildDSN(cfg))
	})

	t.Run("ServiceName", func(t *testing.T) {
		cfg := &config.DatabaseConfig{
			Host:     "localhost",
			Port:     1521,
			Username: "taskhub",
			Password: "secret",
			Oracle:   config.OracleConfig{Service: config.ServiceConfig{Name: "XEPDB1"}},
		}
		dsn := buildDSN(cfg)
		assert.Contains(t, dsn, "localhost:1521")
		assert.Contains(t, dsn, "XEPDB1")
	})

	t.Run("SID", func(t *testing.T) {
		cfg := &config.DatabaseConfig{
			Host:     "localhost",
			Port:     1521,
			Username: "taskhub",
			Password: "secret",
			Oracle:   config.OracleConfig{Service: config.ServiceConfig{SID: "XE"}},
		}
		assert.Contains(t, buildDSN(cfg), "SID=XE")
	})
}

func TestNewConnectionWithKeepAliveEnabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })

	var usedDialerPath bool
	var capturedDialer configurations.DialerContext

	stubOpenFuncs(t,
		func(string) (*sql.DB, error) { return db, nil },
		func(_ string, dialer configurations.DialerContext) *sql.DB {
			usedDialerPath = true
			capturedDialer = dialer
			return db
		},
		func(context.Context, *sql.DB) error { return nil },
	)

	cfg := &config.DatabaseConfig{
		Host:     "localhost",
		Port:     1521,
		Username: "taskhub",
		Password: "secret",
		Oracle:   config.OracleConfig{Service: config.ServiceConfig{Name: "XEPDB1"}},
		Pool:     standardPoolConfig(),
	}
	cfg.Pool.KeepAlive = config.PoolKeepAliveConfig{Enabled: true, Interval: 60 * time.Second}

	conn, err := NewConnection(cfg, newDisabledTestLogger())
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.True(t, usedDialerPath, "should use openOracleDBWithDialer when keep-alive is enabled")
	require.NotNil(t, capturedDialer)

	kaDialer, ok := capturedDialer.(*keepAliveDialer)
	require.True(t, ok, "dialer should be a keepAliveDialer")
	assert.Equal(t, 60*time.Second, kaDialer.interval)

	mock.ExpectClose()
	require.NoError(t, conn.Close())
}

func TestNewConnectionWithKeepAliveFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })

	var usedFallbackPath bool

	stubOpenFuncs(t,
		func(string) (*sql.DB, error) {
			usedFallbackPath = true
			return db, nil
		},
		func(string, configurations.DialerContext) *sql.DB { return nil },
		func(context.Context, *sql.DB) error { return nil },
	)

	cfg := &config.DatabaseConfig{
		Host:     "localhost",
		Port:     1521,
		Username: "taskhub",
		Password: "secret",
		Oracle:   config.OracleConfig{Service: config.ServiceConfig{Name: "XEPDB1"}},
		Pool:     standardPoolConfig(),
	}
	cfg.Pool.KeepAlive = config.PoolKeepAliveConfig{Enabled: true, Interval: 60 * time.Second}

	conn, err := NewConnection(cfg, newDisabledTestLogger())
	require.NoError(t, err, "should succeed with fallback")
	require.NotNil(t, conn)

	assert.True(t, usedFallbackPath, "should fall back to openOracleDB when the dialer path returns nil")

	mock.ExpectClose()
	require.NoError(t, conn.Close())
}

func TestNewConnectionWithKeepAliveDisabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })

	var usedDialerPath bool
	var usedRegularPath bool

	stubOpenFuncs(t,
		func(string) (*sql.DB, error) {
			usedRegularPath = true
			return db, nil
		},
		func(string, configurations.DialerContext) *sql.DB {
			usedDialerPath = true
			return db
		},
		func(context.Context, *sql.DB) error { return nil },
	)

	cfg := &config.DatabaseConfig{
		Host:     "localhost",
		Port:     1521,
		Username: "taskhub",
		Password: "secret",
		Oracle:   config.OracleConfig{Service: config.ServiceConfig{Name: "XEPDB1"}},
		Pool:     standardPoolConfig(),
	}

	conn, err := NewConnection(cfg, newDisabledTestLogger())
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.False(t, usedDialerPath, "should NOT use openOracleDBWithDialer when keep-alive is disabled")
	assert.True(t, usedRegularPath)

	mock.ExpectClose()
	require.NoError(t, conn.Close())
}

func TestNewConnectionLogsIdentifierVariants(t *testing.T) {
	variants := []struct {
		name string
		cfg  config.OracleConfig
		db   string
	}{
		{name: "SID", cfg: config.OracleConfig{Service: config.ServiceConfig{SID: "XE"}}},
		{name: "DatabaseFallback", db: "testdb"},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })

			stubOpenFuncs(t,
				func(string) (*sql.DB, error) { return db, nil },
				nil,
				func(context.Context, *sql.DB) error { return nil },
			)

			cfg := &config.DatabaseConfig{
				Host:     "localhost",
				Port:     1521,
				Username: "taskhub",
				Password: "secret",
				Database: v.db,
				Oracle:   v.cfg,
				Pool:     standardPoolConfig(),
			}

			conn, err := NewConnection(cfg, newDisabledTestLogger())
			require.NoError(t, err)
			require.NotNil(t, conn)

			mock.ExpectClose()
			require.NoError(t, conn.Close())
		})
	}
}

func TestNewConnectionPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = mock.ExpectationsWereMet() }()

	stubOpenFuncs(t,
		func(string) (*sql.DB, error) { return db, nil },
		nil,
		func(context.Context, *sql.DB) error { return errors.New("connection refused") },
	)

	cfg := &config.DatabaseConfig{
		Host:     "localhost",
		Port:     1521,
		Username: "taskhub",
		Password: "secret",
		Oracle:   config.OracleConfig{Service: config.ServiceConfig{Name: "XEPDB1"}},
	}

	mock.ExpectClose()

	conn, err := NewConnection(cfg, newDisabledTestLogger())
	assert.Error(t, err)
	assert.Nil(t, conn)
	assert.Contains(t, err.Error(), oraclePingErrorMsg)
}

func TestConnectionBasicMethodsWithSQLMock(t *testing.T) {
	db, mock, c := setupMockConnection(t)
	defer db.Close()

	ctx := context.Background()

	// Health
	mock.ExpectPing()
	require.NoError(t, c.Health(ctx))

	// Exec
	mock.ExpectExec("INSERT INTO tasks").WithArgs("a").WillReturnResult(sqlmock.NewResult(1, 1))
	_, err := c.Exec(ctx, "INSERT INTO tasks(title) VALUES (:1)", "a")
	require.NoError(t, err)

	// Query
	rows := sqlmock.NewRows([]string{"id"}).AddRow(1)
	mock.ExpectQuery("SELECT id FROM tasks").WillReturnRows(rows)
	rs, err := c.Query(ctx, "SELECT id FROM tasks")
	require.NoError(t, err)
	assert.True(t, rs.Next())
	require.NoError(t, rs.Close())

	// QueryRow scans through the Row adapter
	rows = sqlmock.NewRows([]string{"nextval"}).AddRow(int64(1001))
	mock.ExpectQuery("SELECT TASKS_SEQ.NEXTVAL FROM DUAL").WillReturnRows(rows)
	var nextID int64
	require.NoError(t, c.QueryRow(ctx, "SELECT TASKS_SEQ.NEXTVAL FROM DUAL").Scan(&nextID))
	assert.Equal(t, int64(1001), nextID)

	// Prepare + Statement Exec
	mock.ExpectPrepare("UPDATE tasks SET title").ExpectExec().WithArgs("b", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	st, err := c.Prepare(ctx, "UPDATE tasks SET title = :1 WHERE id = :2")
	require.NoError(t, err)
	_, err = st.Exec(ctx, "b", 1)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Begin + Tx methods
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM tasks").WithArgs(1).WillReturnResult(driver.RowsAffected(1))
	mock.ExpectCommit()
	tx, err := c.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "DELETE FROM tasks WHERE id = :1", 1)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// BeginTx + rollback
	mock.ExpectBegin()
	mock.ExpectRollback()
	tx2, err := c.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback())

	// Close
	mock.ExpectClose()
	require.NoError(t, c.Close())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOracleTransactionQueryPrepareExec(t *testing.T) {
	db, mock, c := setupMockConnection(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT title FROM tasks").
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("review board"))
	mock.ExpectPrepare("INSERT INTO tasks").ExpectExec().WithArgs("c").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	tx, err := c.Begin(ctx)
	require.NoError(t, err)

	var title string
	require.NoError(t, tx.QueryRow(ctx, "SELECT title FROM tasks WHERE id = :1", 1).Scan(&title))
	assert.Equal(t, "review board", title)

	st, err := tx.Prepare(ctx, "INSERT INTO tasks(title) VALUES (:1)")
	require.NoError(t, err)
	_, err = st.Exec(ctx, "c")
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOracleTransactionPrepareError(t *testing.T) {
	db, mock, c := setupMockConnection(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO tasks").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	tx, err := c.Begin(ctx)
	require.NoError(t, err)

	st, err := tx.Prepare(ctx, "INSERT INTO tasks(title) VALUES (:1)")
	assert.Error(t, err)
	assert.Nil(t, st)

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t.Run("WithConfig", func(t *testing.T) {
		c := &Connection{
			db:     db,
			logger: newDisabledTestLogger(),
			config: &config.DatabaseConfig{Pool: standardPoolConfig()},
		}

		stats, err := c.Stats()
		require.NoError(t, err)
		assert.Contains(t, stats, "max_open_connections")
		assert.Contains(t, stats, "in_use")
		assert.Equal(t, int32(2), stats["max_idle_connections"])
	})

	t.Run("NilConfig", func(t *testing.T) {
		c := &Connection{db: db, logger: newDisabledTestLogger()}

		stats, err := c.Stats()
		require.NoError(t, err)
		assert.NotNil(t, stats)
		assert.NotContains(t, stats, "max_idle_connections")
	})
}

func TestConnectionMetadata(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	c := &Connection{db: db, logger: newDisabledTestLogger()}

	assert.Equal(t, "oracle", c.DatabaseType())
	assert.NoError(t, c.Close())
}

func TestKeepAliveDialerInit(t *testing.T) {
	dialer := newKeepAliveDialer(60*time.Second, newDisabledTestLogger())

	assert.Equal(t, 60*time.Second, dialer.interval)
	assert.NotNil(t, dialer.log)
}

func TestKeepAliveDialerDialContextWithListener(t *testing.T) {
	dialer := newKeepAliveDialer(60*time.Second, newDisabledTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	conn, err := dialer.DialContext(ctx, "tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	tcpConn, ok := conn.(*net.TCPConn)
	assert.True(t, ok, "should return *net.TCPConn")
	assert.NotNil(t, tcpConn)
}

func TestKeepAliveDialerDialContextError(t *testing.T) {
	dialer := newKeepAliveDialer(60*time.Second, newDisabledTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", "127.0.0.1:59999")
	assert.Error(t, err)
	assert.Nil(t, conn)
}
