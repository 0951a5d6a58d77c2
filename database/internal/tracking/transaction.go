package tracking

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskhub/taskhub/database/types"
	"github.com/taskhub/taskhub/logger"
)

// Transaction wraps types.Tx to track every operation inside a transaction,
// including the COMMIT and ROLLBACK themselves.
type Transaction struct {
	tx       types.Tx
	logger   logger.Logger
	vendor   string
	settings Settings
	tc       *Context // cached context for tracking
}

// NewTransaction wraps tx with a tracking implementation that records
// execution metrics for all operations performed within the transaction.
func NewTransaction(tx types.Tx, log logger.Logger, vendor string, settings Settings) types.Tx {
	t := &Transaction{
		tx:       tx,
		logger:   log,
		vendor:   vendor,
		settings: settings,
	}
	t.tc = &Context{
		Logger:   t.logger,
		Vendor:   t.vendor,
		Settings: t.settings,
	}
	return t
}

// Compile-time check
var _ types.Tx = (*Transaction)(nil)

// Query executes a query within the transaction with tracking
func (tx *Transaction) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := tx.tx.Query(ctx, query, args...)

	tx.trackTx(ctx, query, args, start, 0, err)
	return rows, err
}

// QueryRow executes a single row query within the transaction. Tracking is
// deferred until the returned row is scanned.
func (tx *Transaction) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	start := time.Now()
	row := tx.tx.QueryRow(ctx, query, args...)

	return wrapRow(row, func(err error) {
		tx.trackTx(ctx, query, args, start, 0, err)
	})
}

// Exec executes a query within the transaction without returning rows
func (tx *Transaction) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := tx.tx.Exec(ctx, query, args...)

	tx.trackTx(ctx, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// Prepare prepares a statement within the transaction with tracking
func (tx *Transaction) Prepare(ctx context.Context, query string) (types.Statement, error) {
	start := time.Now()
	stmt, err := tx.tx.Prepare(ctx, query)

	tx.trackTx(ctx, "TX_PREPARE: "+query, nil, start, 0, err)

	if err != nil {
		return nil, err
	}

	return NewStatement(stmt, tx.logger, tx.vendor, query, tx.settings), nil
}

// Commit commits the transaction
func (tx *Transaction) Commit() error {
	start := time.Now()
	err := tx.tx.Commit()

	tx.trackTx(context.Background(), "COMMIT", nil, start, 0, err)
	return err
}

// Rollback rolls back the transaction
func (tx *Transaction) Rollback() error {
	start := time.Now()
	err := tx.tx.Rollback()

	tx.trackTx(context.Background(), "ROLLBACK", nil, start, 0, err)
	return err
}

// trackTx tracks transaction operation performance
func (tx *Transaction) trackTx(ctx context.Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	TrackDBOperation(ctx, tx.tc, query, args, start, rowsAffected, err)
}
