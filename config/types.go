package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the typed view of the application configuration tree.
// It covers the sections the service itself consumes; feature packages
// with their own configuration (observability, for example) unmarshal
// their section from the embedded koanf instance via Unmarshal.
type Config struct {
	App      AppConfig      `koanf:"app" json:"app" yaml:"app" mapstructure:"app"`
	Server   ServerConfig   `koanf:"server" json:"server" yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Cache    CacheConfig    `koanf:"cache" json:"cache" yaml:"cache" mapstructure:"cache"`
	Auth     AuthConfig     `koanf:"auth" json:"auth" yaml:"auth" mapstructure:"auth"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`

	// k holds the underlying koanf instance for flexible access to
	// sections and custom keys outside the typed tree.
	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string     `koanf:"name" json:"name" yaml:"name" mapstructure:"name"`
	Version string     `koanf:"version" json:"version" yaml:"version" mapstructure:"version"`
	Env     string     `koanf:"env" json:"env" yaml:"env" mapstructure:"env"`
	Debug   bool       `koanf:"debug" json:"debug" yaml:"debug" mapstructure:"debug"`
	Rate    RateConfig `koanf:"rate" json:"rate" yaml:"rate" mapstructure:"rate"`
}

// RateConfig holds request rate limiting settings.
type RateConfig struct {
	// Limit is the sustained number of requests per second allowed.
	Limit int `koanf:"limit" json:"limit" yaml:"limit" mapstructure:"limit"`

	// Burst is the number of requests allowed to exceed the limit momentarily.
	Burst int `koanf:"burst" json:"burst" yaml:"burst" mapstructure:"burst"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port    int           `koanf:"port" json:"port" yaml:"port" mapstructure:"port"`
	Timeout TimeoutConfig `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Path    PathConfig    `koanf:"path" json:"path" yaml:"path" mapstructure:"path"`
	CORS    CORSConfig    `koanf:"cors" json:"cors" yaml:"cors" mapstructure:"cors"`
}

// CORSConfig holds cross-origin settings. An empty origin list allows any
// origin, which is only acceptable outside production.
type CORSConfig struct {
	Origins []string `koanf:"origins" json:"origins" yaml:"origins" mapstructure:"origins"`
}

// TimeoutConfig holds the server timeout durations.
type TimeoutConfig struct {
	Read       time.Duration `koanf:"read" json:"read" yaml:"read" mapstructure:"read"`
	Write      time.Duration `koanf:"write" json:"write" yaml:"write" mapstructure:"write"`
	Idle       time.Duration `koanf:"idle" json:"idle" yaml:"idle" mapstructure:"idle"`
	Middleware time.Duration `koanf:"middleware" json:"middleware" yaml:"middleware" mapstructure:"middleware"`
	Shutdown   time.Duration `koanf:"shutdown" json:"shutdown" yaml:"shutdown" mapstructure:"shutdown"`
}

// PathConfig holds URL path settings for the server.
type PathConfig struct {
	Base   string `koanf:"base" json:"base" yaml:"base" mapstructure:"base"`
	Health string `koanf:"health" json:"health" yaml:"health" mapstructure:"health"`
	Ready  string `koanf:"ready" json:"ready" yaml:"ready" mapstructure:"ready"`
}

// DatabaseConfig holds relational database connection settings.
// The database is considered configured only when a host, type, or
// connection string is provided; there are no connection defaults.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" mapstructure:"type"`
	Host     string `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" mapstructure:"port"`
	Database string `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Username string `koanf:"username" json:"username" yaml:"username" mapstructure:"username"`
	Password string `koanf:"password" json:"password" yaml:"password" mapstructure:"password"`

	// ConnectionString, when set, is used verbatim and takes precedence
	// over the discrete host/port/database fields.
	ConnectionString string `koanf:"connectionstring" json:"connectionstring" yaml:"connectionstring" mapstructure:"connectionstring"`

	Pool  PoolConfig  `koanf:"pool" json:"pool" yaml:"pool" mapstructure:"pool"`
	Query QueryConfig `koanf:"query" json:"query" yaml:"query" mapstructure:"query"`
	TLS   TLSConfig   `koanf:"tls" json:"tls" yaml:"tls" mapstructure:"tls"`

	PostgreSQL PostgreSQLConfig `koanf:"postgresql" json:"postgresql" yaml:"postgresql" mapstructure:"postgresql"`
	Oracle     OracleConfig     `koanf:"oracle" json:"oracle" yaml:"oracle" mapstructure:"oracle"`
}

// PoolConfig holds connection pool settings.
// Zero values receive production-safe defaults during validation:
// 25 max connections, 2 idle connections, 5m idle time, 30m max lifetime.
type PoolConfig struct {
	Max       PoolMaxConfig       `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
	Idle      PoolIdleConfig      `koanf:"idle" json:"idle" yaml:"idle" mapstructure:"idle"`
	Lifetime  LifetimeConfig      `koanf:"lifetime" json:"lifetime" yaml:"lifetime" mapstructure:"lifetime"`
	KeepAlive PoolKeepAliveConfig `koanf:"keepalive" json:"keepalive" yaml:"keepalive" mapstructure:"keepalive"`
}

// PoolMaxConfig holds maximum connection settings.
type PoolMaxConfig struct {
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" mapstructure:"connections"`
}

// PoolIdleConfig holds idle connection settings.
type PoolIdleConfig struct {
	// Connections is the minimum number of idle connections kept warm.
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" mapstructure:"connections"`

	// Time is how long an idle connection may remain unused before closing.
	// Keep below NAT/firewall idle timeouts.
	Time time.Duration `koanf:"time" json:"time" yaml:"time" mapstructure:"time"`
}

// LifetimeConfig holds connection lifetime settings.
type LifetimeConfig struct {
	// Max forces periodic connection recycling. 0 disables the limit.
	Max time.Duration `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
}

// PoolKeepAliveConfig holds TCP keep-alive settings for long-lived
// database connections that cross NAT boundaries or stateful firewalls.
type PoolKeepAliveConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" mapstructure:"interval"`
}

// QueryConfig holds query logging and slow query detection settings.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow" mapstructure:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
}

// SlowQueryConfig holds slow query detection settings.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	Enabled   bool          `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// QueryLogConfig holds query logging settings.
type QueryLogConfig struct {
	// Parameters controls whether bind parameters appear in query logs.
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters" mapstructure:"parameters"`

	// MaxLength truncates logged SQL beyond this many characters.
	MaxLength int `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
}

// TLSConfig holds TLS settings for database connections.
type TLSConfig struct {
	// Mode maps to the driver's TLS/SSL mode (for PostgreSQL: disable,
	// require, verify-ca, verify-full).
	Mode string `koanf:"mode" json:"mode" yaml:"mode" mapstructure:"mode"`
}

// PostgreSQLConfig holds PostgreSQL-specific settings.
type PostgreSQLConfig struct {
	Schema string `koanf:"schema" json:"schema" yaml:"schema" mapstructure:"schema"`
}

// OracleConfig holds Oracle-specific settings.
type OracleConfig struct {
	Service ServiceConfig `koanf:"service" json:"service" yaml:"service" mapstructure:"service"`
}

// ServiceConfig holds Oracle service connection settings.
type ServiceConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" mapstructure:"name"`
	SID  string `koanf:"sid" json:"sid" yaml:"sid" mapstructure:"sid"`
}

// CacheConfig holds cache layer settings. When the cache is disabled or
// no Redis host is configured the application runs with a null cache.
type CacheConfig struct {
	Enabled   bool            `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Namespace string          `koanf:"namespace" json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	TTL       CacheTTLConfig  `koanf:"ttl" json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	Scan      CacheScanConfig `koanf:"scan" json:"scan" yaml:"scan" mapstructure:"scan"`
	Redis     RedisConfig     `koanf:"redis" json:"redis" yaml:"redis" mapstructure:"redis"`
}

// CacheTTLConfig holds the expiration tiers for cached entries.
type CacheTTLConfig struct {
	Short  time.Duration `koanf:"short" json:"short" yaml:"short" mapstructure:"short"`
	Medium time.Duration `koanf:"medium" json:"medium" yaml:"medium" mapstructure:"medium"`
	Long   time.Duration `koanf:"long" json:"long" yaml:"long" mapstructure:"long"`
}

// CacheScanConfig holds key scan settings for pattern invalidation.
type CacheScanConfig struct {
	PageSize int64 `koanf:"pagesize" json:"pagesize" yaml:"pagesize" mapstructure:"pagesize"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string             `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port     int                `koanf:"port" json:"port" yaml:"port" mapstructure:"port"`
	Password string             `koanf:"password" json:"password" yaml:"password" mapstructure:"password"`
	Database int                `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Pool     RedisPoolConfig    `koanf:"pool" json:"pool" yaml:"pool" mapstructure:"pool"`
	Timeout  RedisTimeoutConfig `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Retry    RedisRetryConfig   `koanf:"retry" json:"retry" yaml:"retry" mapstructure:"retry"`
}

// RedisPoolConfig holds Redis connection pool settings.
type RedisPoolConfig struct {
	Size int `koanf:"size" json:"size" yaml:"size" mapstructure:"size"`
	Idle int `koanf:"idle" json:"idle" yaml:"idle" mapstructure:"idle"`
}

// RedisTimeoutConfig holds Redis socket timeout settings.
type RedisTimeoutConfig struct {
	Dial  time.Duration `koanf:"dial" json:"dial" yaml:"dial" mapstructure:"dial"`
	Read  time.Duration `koanf:"read" json:"read" yaml:"read" mapstructure:"read"`
	Write time.Duration `koanf:"write" json:"write" yaml:"write" mapstructure:"write"`
}

// RedisRetryConfig holds Redis command retry settings.
type RedisRetryConfig struct {
	Max     int                `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
	Backoff RedisBackoffConfig `koanf:"backoff" json:"backoff" yaml:"backoff" mapstructure:"backoff"`
}

// RedisBackoffConfig holds retry backoff bounds.
type RedisBackoffConfig struct {
	Min time.Duration `koanf:"min" json:"min" yaml:"min" mapstructure:"min"`
	Max time.Duration `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
}

// AuthConfig holds authentication and token settings.
type AuthConfig struct {
	// Secret signs and verifies access tokens. Required in production.
	Secret string `koanf:"secret" json:"-" yaml:"secret" mapstructure:"secret"`

	// Issuer is stamped into the token claims.
	Issuer string `koanf:"issuer" json:"issuer" yaml:"issuer" mapstructure:"issuer"`

	Token  TokenConfig  `koanf:"token" json:"token" yaml:"token" mapstructure:"token"`
	BCrypt BCryptConfig `koanf:"bcrypt" json:"bcrypt" yaml:"bcrypt" mapstructure:"bcrypt"`
}

// TokenConfig holds access token settings.
type TokenConfig struct {
	TTL time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// BCryptConfig holds password hashing settings.
type BCryptConfig struct {
	Cost int `koanf:"cost" json:"cost" yaml:"cost" mapstructure:"cost"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string       `koanf:"level" json:"level" yaml:"level" mapstructure:"level"`
	Pretty bool         `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
	Output OutputConfig `koanf:"output" json:"output" yaml:"output" mapstructure:"output"`
}

// OutputConfig holds log output settings.
type OutputConfig struct {
	Format string `koanf:"format" json:"format" yaml:"format" mapstructure:"format"`
	File   string `koanf:"file" json:"file" yaml:"file" mapstructure:"file"`
}
