//go:build integration

package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/testing/containers"
)

// setupOracleContainer starts an Oracle testcontainer and opens a
// connection against it. Both are cleaned up when the test finishes.
// Oracle Free takes a while to boot, so the overall timeout is generous.
func setupOracleContainer(t *testing.T) (*Connection, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	t.Cleanup(cancel)

	oraContainer := containers.MustStartOracleContainer(ctx, t, nil).WithCleanup(t)

	cfg := oraContainer.DatabaseConfig()
	cfg.Pool.Max.Connections = 10
	cfg.Pool.Idle.Connections = 2
	cfg.Pool.Idle.Time = 30 * time.Minute

	conn, err := NewConnection(cfg, newDisabledTestLogger())
	require.NoError(t, err, "Failed to create Oracle connection")

	t.Cleanup(func() {
		if conn != nil {
			_ = conn.Close()
		}
	})

	require.NoError(t, conn.Health(ctx), "Failed to ping Oracle")

	return conn.(*Connection), ctx
}

func TestOracleConnectionHealthIntegration(t *testing.T) {
	conn, ctx := setupOracleContainer(t)

	assert.NoError(t, conn.Health(ctx), "Health check should succeed")
	assert.Equal(t, "oracle", conn.DatabaseType())
}

func TestOracleConnectionStatsIntegration(t *testing.T) {
	conn, _ := setupOracleContainer(t)

	stats, err := conn.Stats()
	assert.NoError(t, err, "Stats retrieval should succeed")
	assert.Contains(t, stats, "max_open_connections")
	assert.Contains(t, stats, "in_use")
	assert.Contains(t, stats, "idle")
	assert.Equal(t, 10, stats["max_open_connections"])
}

func TestOracleConnectionQueryOperationsIntegration(t *testing.T) {
	conn, ctx := setupOracleContainer(t)

	_, err := conn.Exec(ctx, `CREATE TABLE tasks_it (
		id NUMBER GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY,
		title VARCHAR2(200),
		priority NUMBER
	)`)
	require.NoError(t, err, "Should create test table")

	_, err = conn.Exec(ctx, "INSERT INTO tasks_it (title, priority) VALUES (:1, :2)", "write release notes", 1)
	require.NoError(t, err, "Should insert test data")
	_, err = conn.Exec(ctx, "INSERT INTO tasks_it (title, priority) VALUES (:1, :2)", "review launch checklist", 2)
	require.NoError(t, err, "Should insert test data")

	rows, err := conn.Query(ctx, "SELECT title, priority FROM tasks_it ORDER BY id")
	require.NoError(t, err, "Query should succeed")
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		var priority int
		require.NoError(t, rows.Scan(&title, &priority))
		titles = append(titles, title)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"write release notes", "review launch checklist"}, titles)

	row := conn.QueryRow(ctx, "SELECT title FROM tasks_it WHERE priority = :1", 2)
	var title string
	require.NoError(t, row.Scan(&title))
	assert.Equal(t, "review launch checklist", title)
}

func TestOracleConnectionTransactionsIntegration(t *testing.T) {
	conn, ctx := setupOracleContainer(t)

	_, err := conn.Exec(ctx, `CREATE TABLE tx_it (
		id NUMBER GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY,
		value NUMBER
	)`)
	require.NoError(t, err, "Should create test table")

	// Committed data should be visible.
	tx, err := conn.Begin(ctx)
	require.NoError(t, err, "Begin transaction should succeed")
	_, err = tx.Exec(ctx, "INSERT INTO tx_it (value) VALUES (:1)", 42)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	row := conn.QueryRow(ctx, "SELECT COUNT(*) FROM tx_it")
	var count int
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)

	// Rolled back data should not be.
	tx, err = conn.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "INSERT INTO tx_it (value) VALUES (:1)", 99)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	row = conn.QueryRow(ctx, "SELECT COUNT(*) FROM tx_it")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count, "Rolled back insert should not be visible")
}
