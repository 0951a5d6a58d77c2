// Package config loads and validates the layered application configuration.
// Sources are merged in priority order: built-in defaults, config.yaml, an
// environment-specific config.<env>.yaml, and finally TASKHUB_-prefixed
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment variables this service reads.
// TASKHUB_CACHE_REDIS_HOST maps to the key cache.redis.host.
const envPrefix = "TASKHUB_"

// Load builds the configuration from all sources and validates it.
// Later sources win: defaults < config.yaml < config.<env>.yaml < env vars.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadOptionalFile(k, "config.yaml"); err != nil {
		return nil, err
	}

	// The environment-specific overlay is keyed by TASKHUB_APP_ENV when
	// set, otherwise by whatever app.env the earlier layers resolved to.
	env := os.Getenv(envPrefix + "APP_ENV")
	if env == "" {
		env = k.String("app.env")
	}
	if env != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", env)); err != nil {
			return nil, err
		}
	}

	if err := k.Load(envprovider.Provider(envPrefix, ".", func(s string) string {
		// TASKHUB_SERVER_TIMEOUT_READ -> server.timeout.read
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return buildConfig(k)
}

// LoadFromMap builds a configuration from the built-in defaults overlaid
// with the given keys, skipping files and environment variables. Intended
// for tests and embedded setups that need a fully initialized Config.
func LoadFromMap(overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	return buildConfig(k)
}

// buildConfig unmarshals the merged sources into the typed tree, attaches
// the koanf instance for section access, and validates the result.
func buildConfig(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadOptionalFile merges a YAML file into k when the file exists.
// A missing file is not an error; a malformed one is.
func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":       "taskhub",
		"app.version":    "v1.0.0",
		"app.env":        EnvDevelopment,
		"app.debug":      false,
		"app.rate.limit": 100,
		"app.rate.burst": 200,

		"server.host":               "0.0.0.0",
		"server.port":               8080,
		"server.timeout.read":       "15s",
		"server.timeout.write":      "30s",
		"server.timeout.idle":       "60s",
		"server.timeout.middleware": "30s",
		"server.timeout.shutdown":   "10s",
		"server.path.base":          "/api/v1",
		"server.path.health":        "/health",
		"server.path.ready":         "/ready",

		// Database defaults are intentionally not provided. The database
		// is only enabled when explicitly configured.

		"cache.enabled":       true,
		"cache.namespace":     "taskhub",
		"cache.ttl.short":     "1m",
		"cache.ttl.medium":    "5m",
		"cache.ttl.long":      "1h",
		"cache.scan.pagesize": 100,
		// cache.redis.host is intentionally unset; without an endpoint
		// the application falls back to the null cache. The remaining
		// Redis knobs default inside the adapter config.

		"auth.issuer":      "taskhub",
		"auth.token.ttl":   "24h",
		"auth.bcrypt.cost": 10,
		// auth.secret has no default and is required in production.

		"log.level":         "info",
		"log.pretty":        false,
		"log.output.format": "json",
		"log.output.file":   "",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
