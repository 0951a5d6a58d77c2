// Package database provides vendor-neutral access to the relational store:
// driver selection and connection management for PostgreSQL and Oracle, a
// fluent query builder with vendor-aware placeholder and identifier handling,
// and transparent per-operation performance tracking.
package database

import (
	"github.com/taskhub/taskhub/database/types"
)

// Interface defines the common database operations exposed to repositories.
// The concrete interfaces live in the database/types package so driver
// packages can implement them without import cycles.
type Interface = types.Interface

// Statement defines the interface for prepared statements.
type Statement = types.Statement

// Tx defines the interface for database transactions.
type Tx = types.Tx

// Row represents a single result set row.
type Row = types.Row
