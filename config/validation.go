package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultMaxQueryLength     = 1000
	defaultMaxConnections     = 25
	defaultIdleConnections    = 2
	defaultKeepAliveInterval  = 30 * time.Second
)

// Database type constants
const (
	PostgreSQL = "postgresql"
	Oracle     = "oracle"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Validate checks the configuration for consistency and applies defaults
// for pool and query settings. It mutates cfg where defaults apply.
func Validate(cfg *Config) error {
	if err := validateApp(&cfg.App); err != nil {
		return fmt.Errorf("app config: %w", err)
	}

	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := validateCache(&cfg.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := validateAuth(&cfg.Auth, cfg.App.Env); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

// validateApp requires Name and Version to be non-empty, Env to be one of
// the known environments, and the rate limiter settings to be positive.
func validateApp(cfg *AppConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if cfg.Version == "" {
		return fmt.Errorf("app version is required")
	}

	validEnvs := []string{EnvDevelopment, EnvStaging, EnvProduction}
	if !slices.Contains(validEnvs, cfg.Env) {
		return fmt.Errorf("invalid environment: %s (must be one of: %s)",
			cfg.Env, strings.Join(validEnvs, ", "))
	}

	if cfg.Rate.Limit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	if cfg.Rate.Burst <= 0 {
		return fmt.Errorf("rate burst must be positive")
	}

	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", cfg.Port)
	}

	if cfg.Timeout.Read <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}

	if cfg.Timeout.Write <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	return nil
}

// IsDatabaseConfigured determines whether the database is intentionally
// configured. With nothing set the application starts without one.
func IsDatabaseConfigured(cfg *DatabaseConfig) bool {
	if cfg.ConnectionString != "" {
		return true
	}
	return cfg.Host != "" || cfg.Type != ""
}

func validateDatabase(cfg *DatabaseConfig) error {
	if !IsDatabaseConfigured(cfg) {
		return nil
	}

	if cfg.ConnectionString != "" {
		return validateDatabaseWithConnectionString(cfg)
	}

	if err := validateDatabaseType(cfg.Type); err != nil {
		return err
	}

	if err := validateDatabaseCoreFields(cfg); err != nil {
		return err
	}

	if err := validateVendorFields(cfg); err != nil {
		return err
	}

	return applyDatabaseDefaults(cfg)
}

// validateDatabaseWithConnectionString covers the connection string path.
// The discrete host and port fields are optional in this mode; an explicit
// Type is still checked against the supported vendors.
func validateDatabaseWithConnectionString(cfg *DatabaseConfig) error {
	if cfg.Type != "" {
		if err := validateDatabaseType(cfg.Type); err != nil {
			return err
		}
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", cfg.Port)
	}

	return applyDatabaseDefaults(cfg)
}

func validateDatabaseType(dbType string) error {
	validTypes := []string{PostgreSQL, Oracle}
	if !slices.Contains(validTypes, dbType) {
		return fmt.Errorf("invalid database type: %s (must be one of: %s)",
			dbType, strings.Join(validTypes, ", "))
	}
	return nil
}

func validateDatabaseCoreFields(cfg *DatabaseConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", cfg.Port)
	}

	if cfg.Username == "" {
		return fmt.Errorf("database username is required")
	}

	return nil
}

// validateVendorFields checks the vendor-specific identification fields.
// PostgreSQL needs a database name. Oracle needs exactly one connection
// identifier: a service name, an SID, or a plain database name.
func validateVendorFields(cfg *DatabaseConfig) error {
	switch cfg.Type {
	case PostgreSQL:
		if cfg.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case Oracle:
		identifiers := 0
		for _, id := range []string{cfg.Database, cfg.Oracle.Service.Name, cfg.Oracle.Service.SID} {
			if id != "" {
				identifiers++
			}
		}
		if identifiers == 0 {
			return fmt.Errorf("oracle connection identifier is required: set database, oracle.service.name, or oracle.service.sid")
		}
		if identifiers > 1 {
			return fmt.Errorf("multiple oracle connection identifiers set: choose one of database, oracle.service.name, or oracle.service.sid")
		}
	}
	return nil
}

// applyDatabaseDefaults fills zero-valued pool and query settings and
// rejects negative ones. Idle time and max lifetime keep database/sql
// semantics where zero means no limit.
func applyDatabaseDefaults(cfg *DatabaseConfig) error {
	if cfg.Pool.Max.Connections == 0 {
		cfg.Pool.Max.Connections = defaultMaxConnections
	} else if cfg.Pool.Max.Connections < 0 {
		return fmt.Errorf("max connections must be positive")
	}

	if cfg.Pool.Idle.Connections == 0 {
		cfg.Pool.Idle.Connections = defaultIdleConnections
	} else if cfg.Pool.Idle.Connections < 0 {
		return fmt.Errorf("idle connections must be positive")
	}

	if cfg.Pool.Idle.Time < 0 {
		return fmt.Errorf("idle time must be zero or positive")
	}

	if cfg.Pool.Lifetime.Max < 0 {
		return fmt.Errorf("max lifetime must be zero or positive")
	}

	if cfg.Pool.KeepAlive.Interval < 0 {
		return fmt.Errorf("keep-alive interval must be zero or positive")
	}
	if cfg.Pool.KeepAlive.Enabled && cfg.Pool.KeepAlive.Interval == 0 {
		cfg.Pool.KeepAlive.Interval = defaultKeepAliveInterval
	}

	if cfg.Query.Slow.Threshold < 0 {
		return fmt.Errorf("slow query threshold must be zero or positive")
	}
	if cfg.Query.Slow.Threshold == 0 {
		cfg.Query.Slow.Threshold = defaultSlowQueryThreshold
	}

	if cfg.Query.Log.MaxLength < 0 {
		return fmt.Errorf("max query length must be zero or positive")
	}
	if cfg.Query.Log.MaxLength == 0 {
		cfg.Query.Log.MaxLength = defaultMaxQueryLength
	}

	return nil
}

// IsCacheConfigured determines whether the cache layer should connect to
// a real backend. Disabled or endpoint-less configurations run with the
// null cache instead.
func IsCacheConfigured(cfg *CacheConfig) bool {
	return cfg.Enabled && cfg.Redis.Host != ""
}

func validateCache(cfg *CacheConfig) error {
	if cfg.TTL.Short <= 0 || cfg.TTL.Medium <= 0 || cfg.TTL.Long <= 0 {
		return fmt.Errorf("cache ttl tiers must be positive")
	}

	if cfg.Scan.PageSize <= 0 {
		return fmt.Errorf("scan page size must be positive")
	}

	if !IsCacheConfigured(cfg) {
		return nil
	}

	if cfg.Redis.Port < 0 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis port: %d", cfg.Redis.Port)
	}

	if cfg.Redis.Database < 0 || cfg.Redis.Database > 15 {
		return fmt.Errorf("invalid redis database: %d (must be 0-15)", cfg.Redis.Database)
	}

	return nil
}

// validateAuth applies the bcrypt cost default and requires a signing
// secret outside development.
func validateAuth(cfg *AuthConfig, env string) error {
	if cfg.Secret == "" && env != EnvDevelopment {
		return NewMissingFieldError("auth.secret", "TASKHUB_AUTH_SECRET", "auth.secret")
	}

	if cfg.BCrypt.Cost == 0 {
		cfg.BCrypt.Cost = bcrypt.DefaultCost
	} else if cfg.BCrypt.Cost < bcrypt.MinCost || cfg.BCrypt.Cost > bcrypt.MaxCost {
		return fmt.Errorf("invalid bcrypt cost: %d (must be %d-%d)",
			cfg.BCrypt.Cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if cfg.Token.TTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}

	return nil
}

// validateLog checks that the level is one the logger understands.
func validateLog(cfg *LogConfig) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	if !slices.Contains(validLevels, cfg.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			cfg.Level, strings.Join(validLevels, ", "))
	}

	return nil
}
