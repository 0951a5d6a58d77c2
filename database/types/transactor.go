package types

import (
	"context"
	"database/sql"
)

// Transactor defines transaction management operations, separate from
// query execution so that read-only components never see Begin.
//
// Typical usage in services that need multiple writes to land atomically:
//
//	tx, err := db.Begin(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // No-op if already committed
//
//	if err := insertTask(ctx, tx, task); err != nil {
//	    return err
//	}
//	if err := insertAssignment(ctx, tx, assignment); err != nil {
//	    return err
//	}
//
//	return tx.Commit()
type Transactor interface {
	// Begin starts a new transaction with the default isolation level.
	// The returned Tx must be committed or rolled back to release resources.
	Begin(ctx context.Context) (Tx, error)

	// BeginTx starts a new transaction with explicit isolation level and
	// read-only settings. Use this when you need precise control over
	// transaction behavior, e.g. a read-only repeatable-read snapshot for
	// reporting queries:
	//
	//	tx, err := db.BeginTx(ctx, &sql.TxOptions{
	//	    Isolation: sql.LevelRepeatableRead,
	//	    ReadOnly:  true,
	//	})
	//
	// Not all vendors support all isolation levels.
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}
