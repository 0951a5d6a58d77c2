//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taskhub/taskhub/config"
)

// OracleContainerConfig holds settings for the Oracle test container.
type OracleContainerConfig struct {
	// ImageTag selects the gvenzl/oracle-free version (default "23-slim")
	ImageTag string
	// Password for SYSTEM, SYS, and the application user (default "testpass")
	Password string
	// Database is the PDB/service name (default "FREEPDB1")
	Database string
	// AppUser is the application user to create (default "testuser")
	AppUser string
	// StartupTimeout bounds container initialization. Oracle needs more
	// headroom than the other engines (default 120s).
	StartupTimeout time.Duration
}

// DefaultOracleConfig returns the container settings used by most
// integration tests: gvenzl/oracle-free:23-slim with the FREEPDB1 service.
func DefaultOracleConfig() *OracleContainerConfig {
	return &OracleContainerConfig{
		ImageTag:       "23-slim",
		Password:       "testpass",
		Database:       "FREEPDB1",
		AppUser:        "testuser",
		StartupTimeout: 120 * time.Second,
	}
}

// OracleContainer wraps a running Oracle test container.
type OracleContainer struct {
	container testcontainers.Container
	cfg       *OracleContainerConfig
	connStr   string
	host      string
	port      int
}

// StartOracleContainer starts an Oracle container with the given settings
// (DefaultOracleConfig when cfg is nil). The test is skipped when Docker is
// unavailable.
func StartOracleContainer(ctx context.Context, t *testing.T, cfg *OracleContainerConfig) (*OracleContainer, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultOracleConfig()
	}

	if !isDockerAvailable(ctx) {
		t.Skip(dockerUnavailableMsg)
		return nil, nil
	}

	req := testcontainers.ContainerRequest{
		Image:        fmt.Sprintf("gvenzl/oracle-free:%s", cfg.ImageTag),
		ExposedPorts: []string{"1521/tcp"},
		Env: map[string]string{
			"ORACLE_PASSWORD":   cfg.Password,
			"APP_USER":          cfg.AppUser,
			"APP_USER_PASSWORD": cfg.Password,
		},
		// The readiness log line can appear before the listener accepts
		// connections, so wait for both.
		WaitingFor: wait.ForAll(
			wait.ForLog("DATABASE IS READY TO USE!"),
			wait.ForListeningPort("1521/tcp"),
		).WithStartupTimeout(cfg.StartupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Oracle container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Oracle container host: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, "1521")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Oracle container port: %w", err)
	}
	port := mappedPort.Int()

	connStr := fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		cfg.AppUser, cfg.Password, host, port, cfg.Database)

	return &OracleContainer{
		container: container,
		cfg:       cfg,
		connStr:   connStr,
		host:      host,
		port:      port,
	}, nil
}

// MustStartOracleContainer starts an Oracle container and fails the test on
// any startup error.
func MustStartOracleContainer(ctx context.Context, t *testing.T, cfg *OracleContainerConfig) *OracleContainer {
	t.Helper()

	container, err := StartOracleContainer(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start Oracle container: %v", err)
	}
	return container
}

// ConnectionString returns the go-ora style URL for the running container.
func (o *OracleContainer) ConnectionString() string {
	return o.connStr
}

// Host returns the container host.
func (o *OracleContainer) Host() string {
	return o.host
}

// Port returns the host port mapped to Oracle's 1521.
func (o *OracleContainer) Port() int {
	return o.port
}

// DatabaseConfig builds a taskhub database configuration pointing at the
// running container, ready to hand to the connection factory.
func (o *OracleContainer) DatabaseConfig() *config.DatabaseConfig {
	dbCfg := &config.DatabaseConfig{
		Type:     "oracle",
		Host:     o.host,
		Port:     o.port,
		Username: o.cfg.AppUser,
		Password: o.cfg.Password,
	}
	dbCfg.Oracle.Service.Name = o.cfg.Database
	return dbCfg
}

// Terminate stops and removes the container.
func (o *OracleContainer) Terminate(ctx context.Context) error {
	if o.container == nil {
		return nil
	}
	return o.container.Terminate(ctx)
}

// WithCleanup registers container termination with the test's cleanup list.
func (o *OracleContainer) WithCleanup(t *testing.T) *OracleContainer {
	t.Helper()
	t.Cleanup(func() {
		if err := o.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate Oracle container: %v", err)
		}
	})
	return o
}
