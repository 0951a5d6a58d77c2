package tracking

import (
	"sync"

	"github.com/taskhub/taskhub/database/types"
)

// wrapRow returns a types.Row that invokes finish exactly once when Scan is
// called or Err observes an error. QueryRow defers its real work until Scan,
// so tracking has to be deferred with it to capture the true outcome.
// A nil row or finish function is returned unwrapped.
func wrapRow(row types.Row, finish func(error)) types.Row {
	if row == nil || finish == nil {
		return row
	}
	return &trackedRow{row: row, finish: finish}
}

type trackedRow struct {
	row    types.Row
	finish func(error)
	once   sync.Once
}

func (tr *trackedRow) Scan(dest ...any) error {
	err := tr.row.Scan(dest...)
	tr.done(err)
	return err
}

func (tr *trackedRow) Err() error {
	err := tr.row.Err()
	if err != nil {
		tr.done(err)
	}
	return err
}

func (tr *trackedRow) done(err error) {
	tr.once.Do(func() {
		tr.finish(err)
	})
}
