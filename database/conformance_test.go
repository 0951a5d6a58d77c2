package database_test

import (
	dbiface "github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/database/oracle"
	"github.com/taskhub/taskhub/database/postgresql"
)

// Compile-time interface conformance checks. These are not runtime tests,
// but they ensure the concrete connection types continue to satisfy the
// public database.Interface contract.
var (
	_ dbiface.Interface = (*postgresql.Connection)(nil)
	_ dbiface.Interface = (*oracle.Connection)(nil)
)
