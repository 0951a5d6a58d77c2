//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taskhub/taskhub/config"
)

// PostgreSQLContainerConfig holds settings for the PostgreSQL test container.
type PostgreSQLContainerConfig struct {
	// ImageTag selects the PostgreSQL version (default "17-alpine")
	ImageTag string
	// Username for authentication (default "testuser")
	Username string
	// Password for authentication (default "testpass")
	Password string
	// Database name to create (default "testdb")
	Database string
	// StartupTimeout bounds container initialization (default 60s)
	StartupTimeout time.Duration
}

// DefaultPostgreSQLConfig returns the container settings used by most
// integration tests: postgres:17-alpine with testuser/testpass on testdb.
func DefaultPostgreSQLConfig() *PostgreSQLContainerConfig {
	return &PostgreSQLContainerConfig{
		ImageTag:       "17-alpine",
		Username:       "testuser",
		Password:       "testpass",
		Database:       "testdb",
		StartupTimeout: 60 * time.Second,
	}
}

// PostgreSQLContainer wraps a running PostgreSQL test container.
type PostgreSQLContainer struct {
	container *postgres.PostgresContainer
	cfg       *PostgreSQLContainerConfig
	connStr   string
}

// StartPostgreSQLContainer starts a PostgreSQL container with the given
// settings (DefaultPostgreSQLConfig when cfg is nil). The test is skipped
// when Docker is unavailable.
func StartPostgreSQLContainer(ctx context.Context, t *testing.T, cfg *PostgreSQLContainerConfig) (*PostgreSQLContainer, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultPostgreSQLConfig()
	}

	if !isDockerAvailable(ctx) {
		t.Skip(dockerUnavailableMsg)
		return nil, nil
	}

	pgContainer, err := postgres.Run(ctx,
		fmt.Sprintf("postgres:%s", cfg.ImageTag),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			// Postgres restarts once after initdb, so wait for the
			// second readiness line.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}

	return &PostgreSQLContainer{
		container: pgContainer,
		cfg:       cfg,
		connStr:   connStr,
	}, nil
}

// MustStartPostgreSQLContainer starts a PostgreSQL container and fails the
// test on any startup error.
func MustStartPostgreSQLContainer(ctx context.Context, t *testing.T, cfg *PostgreSQLContainerConfig) *PostgreSQLContainer {
	t.Helper()

	container, err := StartPostgreSQLContainer(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	return container
}

// ConnectionString returns the full DSN for the running container.
func (p *PostgreSQLContainer) ConnectionString() string {
	return p.connStr
}

// Host returns the container host.
func (p *PostgreSQLContainer) Host(ctx context.Context) (string, error) {
	if p.container == nil {
		return "", fmt.Errorf("container not initialized")
	}
	return p.container.Host(ctx)
}

// MappedPort returns the host port mapped to PostgreSQL's 5432.
func (p *PostgreSQLContainer) MappedPort(ctx context.Context) (int, error) {
	if p.container == nil {
		return 0, fmt.Errorf("container not initialized")
	}
	mappedPort, err := p.container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return 0, err
	}
	return mappedPort.Int(), nil
}

// DatabaseConfig builds a taskhub database configuration pointing at the
// running container, ready to hand to the connection factory.
func (p *PostgreSQLContainer) DatabaseConfig(ctx context.Context) (*config.DatabaseConfig, error) {
	host, err := p.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := p.MappedPort(ctx)
	if err != nil {
		return nil, err
	}

	dbCfg := &config.DatabaseConfig{
		Type:     "postgresql",
		Host:     host,
		Port:     port,
		Database: p.cfg.Database,
		Username: p.cfg.Username,
		Password: p.cfg.Password,
	}
	dbCfg.TLS.Mode = "disable"
	return dbCfg, nil
}

// Terminate stops and removes the container.
func (p *PostgreSQLContainer) Terminate(ctx context.Context) error {
	if p.container == nil {
		return nil
	}
	return p.container.Terminate(ctx)
}

// WithCleanup registers container termination with the test's cleanup list.
func (p *PostgreSQLContainer) WithCleanup(t *testing.T) *PostgreSQLContainer {
	t.Helper()
	t.Cleanup(func() {
		if err := p.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate PostgreSQL container: %v", err)
		}
	})
	return p
}
