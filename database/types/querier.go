package types

import (
	"context"
	"database/sql"
)

// Querier defines the core query execution operations that cover most
// database usage. It focuses solely on query execution, separate from
// transaction management and health checks, which keeps test doubles
// small: a mock only needs 4 methods instead of the full Interface.
//
// The database.Interface type embeds Querier, so any Interface value
// satisfies it. Repositories that never open transactions should accept
// a Querier so they work unchanged inside and outside a transaction
// boundary.
type Querier interface {
	// Query executes a SQL query that returns rows, typically a SELECT statement.
	// The caller is responsible for closing the returned rows.
	//
	// The query should use vendor-specific placeholders:
	//   - PostgreSQL: $1, $2, $3
	//   - Oracle: :1, :2, :3
	//
	// For vendor-agnostic query construction, use the QueryBuilder.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// QueryRow executes a SQL query that is expected to return at most one row.
	// QueryRow always returns a non-nil value. Errors are deferred until Row's
	// Scan method is called.
	QueryRow(ctx context.Context, query string, args ...any) Row

	// Exec executes a SQL statement that doesn't return rows, typically INSERT,
	// UPDATE, or DELETE. The returned sql.Result provides RowsAffected and
	// LastInsertId (if supported by the vendor).
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// DatabaseType returns the vendor identifier for this database connection.
	// Valid values are defined as constants: PostgreSQL, Oracle.
	//
	// This is included in Querier (despite being metadata) because the query
	// builder requires vendor information for placeholder generation and
	// identifier quoting. Including it here prevents forcing all test mocks
	// to implement additional interfaces.
	DatabaseType() string
}
