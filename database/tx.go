package database

import (
	"context"
	"fmt"
)

// WithinTx runs fn inside a transaction started on db.
// The transaction is committed when fn returns nil and rolled back when fn
// returns an error or panics (the panic is re-raised after rollback).
// Rollback failures never mask the error returned by fn.
func WithinTx(ctx context.Context, db Interface, fn func(tx Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
