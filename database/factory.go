package database

import (
	"fmt"
	"slices"

	"github.com/taskhub/taskhub/config"
	"github.com/taskhub/taskhub/database/oracle"
	"github.com/taskhub/taskhub/database/postgresql"
	"github.com/taskhub/taskhub/logger"
)

// NewConnection creates a database connection according to cfg and returns it
// wrapped with performance tracking. The concrete driver is selected by
// cfg.Type (supported: "postgresql", "oracle"). An unsupported cfg.Type
// returns an error; a driver initialization failure is returned as-is.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (Interface, error) {
	var conn Interface
	var err error

	switch cfg.Type {
	case PostgreSQL:
		conn, err = postgresql.NewConnection(cfg, log)
	case Oracle:
		conn, err = oracle.NewConnection(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: postgresql, oracle)", cfg.Type)
	}

	if err != nil {
		return nil, err
	}

	return NewTrackedConnection(conn, log, cfg), nil
}

// ValidateDatabaseType returns nil if dbType is one of the supported database
// types, or an error naming the invalid value and the supported set.
func ValidateDatabaseType(dbType string) error {
	supportedTypes := []string{PostgreSQL, Oracle}
	if !slices.Contains(supportedTypes, dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, supportedTypes)
	}
	return nil
}

// GetSupportedDatabaseTypes returns a list of supported database types
func GetSupportedDatabaseTypes() []string {
	return []string{PostgreSQL, Oracle}
}
