package database

import "github.com/taskhub/taskhub/database/types"

// Re-export database vendor identifiers so callers of the database package do
// not need to import types directly; the single source of truth lives in types.
const (
	PostgreSQL = types.PostgreSQL
	Oracle     = types.Oracle
)
