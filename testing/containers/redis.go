//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taskhub/taskhub/config"
)

// RedisContainerConfig holds settings for the Redis test container.
type RedisContainerConfig struct {
	// ImageTag selects the Redis version (default "7-alpine")
	ImageTag string
	// StartupTimeout bounds container initialization (default 60s)
	StartupTimeout time.Duration
}

// DefaultRedisConfig returns the container settings used by most
// integration tests: redis:7-alpine.
func DefaultRedisConfig() *RedisContainerConfig {
	return &RedisContainerConfig{
		ImageTag:       "7-alpine",
		StartupTimeout: 60 * time.Second,
	}
}

// RedisContainer wraps a running Redis test container.
type RedisContainer struct {
	container *redis.RedisContainer
	host      string
	port      int
}

// StartRedisContainer starts a Redis container with the given settings
// (DefaultRedisConfig when cfg is nil). The test is skipped when Docker is
// unavailable.
func StartRedisContainer(ctx context.Context, t *testing.T, cfg *RedisContainerConfig) (*RedisContainer, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	if !isDockerAvailable(ctx) {
		t.Skip(dockerUnavailableMsg)
		return nil, nil
	}

	redisContainer, err := redis.Run(ctx,
		fmt.Sprintf("redis:%s", cfg.ImageTag),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		_ = redisContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis host: %w", err)
	}

	mappedPort, err := redisContainer.MappedPort(ctx, "6379/tcp")
	if err != nil {
		_ = redisContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis port: %w", err)
	}

	return &RedisContainer{
		container: redisContainer,
		host:      host,
		port:      mappedPort.Int(),
	}, nil
}

// MustStartRedisContainer starts a Redis container and fails the test on
// any startup error.
func MustStartRedisContainer(ctx context.Context, t *testing.T, cfg *RedisContainerConfig) *RedisContainer {
	t.Helper()

	container, err := StartRedisContainer(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	return container
}

// Host returns the container host.
func (r *RedisContainer) Host() string {
	return r.host
}

// Port returns the host port mapped to Redis's 6379.
func (r *RedisContainer) Port() int {
	return r.port
}

// CacheConfig builds a taskhub cache configuration pointing at the running
// container. TTL and scan settings are left zero so service defaults apply.
func (r *RedisContainer) CacheConfig(namespace string) *config.CacheConfig {
	cacheCfg := &config.CacheConfig{
		Enabled:   true,
		Namespace: namespace,
	}
	cacheCfg.Redis.Host = r.host
	cacheCfg.Redis.Port = r.port
	return cacheCfg
}

// Terminate stops and removes the container.
func (r *RedisContainer) Terminate(ctx context.Context) error {
	if r.container == nil {
		return nil
	}
	return r.container.Terminate(ctx)
}

// WithCleanup registers container termination with the test's cleanup list.
func (r *RedisContainer) WithCleanup(t *testing.T) *RedisContainer {
	t.Helper()
	t.Cleanup(func() {
		if err := r.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate Redis container: %v", err)
		}
	})
	return r
}
