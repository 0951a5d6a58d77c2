package types

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRowFromSQLNil(t *testing.T) {
	assert.Nil(t, NewRowFromSQL(nil))
}

func TestSQLRowAdapterNilGuards(t *testing.T) {
	var r *sqlRowAdapter

	err := r.Scan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sql.Row is nil")

	require.Error(t, r.Err())

	r = &sqlRowAdapter{}
	require.Error(t, r.Scan())
	require.Error(t, r.Err())
}

func TestSQLRowAdapterScan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM tasks").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	row := NewRowFromSQL(db.QueryRowContext(context.Background(), "SELECT id FROM tasks WHERE id = $1", 42))
	require.NotNil(t, row)

	var id int64
	require.NoError(t, row.Scan(&id))
	assert.Equal(t, int64(42), id)
	assert.NoError(t, row.Err())

	require.NoError(t, mock.ExpectationsWereMet())
}
