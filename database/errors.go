package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sijms/go-ora/v2/network"
)

// uniqueViolationPostgres is SQLSTATE 23505, unique_violation.
const uniqueViolationPostgres = "23505"

// uniqueViolationOracle is ORA-00001, unique constraint violated.
const uniqueViolationOracle = 1

// IsUniqueViolation reports whether err is a unique-constraint violation from
// either supported vendor. Repositories use it to translate duplicate inserts
// into domain conflicts instead of leaking driver errors to handlers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationPostgres
	}

	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return oraErr.ErrCode == uniqueViolationOracle
	}

	return false
}
