// Package dbtest adapts a standard *sql.DB to the types.Interface contract so
// repository tests can drive sqlmock through the same surface production code
// uses. The vendor passed to New controls DatabaseType and therefore the SQL
// dialect the query builder renders under test.
package dbtest

import (
	"context"
	"database/sql"

	"github.com/taskhub/taskhub/database/types"
)

// Conn wraps a *sql.DB as a types.Interface with a fixed vendor identifier.
type Conn struct {
	db     *sql.DB
	vendor types.Vendor
}

var _ types.Interface = (*Conn)(nil)

// New wraps db for use wherever a types.Interface is expected.
func New(db *sql.DB, vendor types.Vendor) *Conn {
	return &Conn{db: db, vendor: vendor}
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(c.db.QueryRowContext(ctx, query, args...))
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Conn) Prepare(ctx context.Context, query string) (types.Statement, error) {
	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &statement{stmt: stmt}, nil
}

func (c *Conn) Begin(ctx context.Context) (types.Tx, error) {
	return c.BeginTx(ctx, nil)
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (types.Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &transaction{tx: tx}, nil
}

func (c *Conn) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Conn) Stats() (map[string]any, error) {
	stats := c.db.Stats()
	return map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}, nil
}

func (c *Conn) Close() error {
	return c.db.Close()
}

func (c *Conn) DatabaseType() string {
	return c.vendor
}

type transaction struct {
	tx *sql.Tx
}

func (t *transaction) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *transaction) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(t.tx.QueryRowContext(ctx, query, args...))
}

func (t *transaction) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *transaction) Prepare(ctx context.Context, query string) (types.Statement, error) {
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &statement{stmt: stmt}, nil
}

func (t *transaction) Commit() error {
	return t.tx.Commit()
}

func (t *transaction) Rollback() error {
	return t.tx.Rollback()
}

type statement struct {
	stmt *sql.Stmt
}

func (s *statement) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	return s.stmt.QueryContext(ctx, args...)
}

func (s *statement) QueryRow(ctx context.Context, args ...any) types.Row {
	return types.NewRowFromSQL(s.stmt.QueryRowContext(ctx, args...))
}

func (s *statement) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	return s.stmt.ExecContext(ctx, args...)
}

func (s *statement) Close() error {
	return s.stmt.Close()
}
