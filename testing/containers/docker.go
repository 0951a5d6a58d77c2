//go:build integration

// Package containers starts throwaway PostgreSQL, Oracle, and Redis
// instances for integration tests using testcontainers-go. Each helper
// skips the calling test when no Docker daemon is reachable.
package containers

import (
	"context"

	"github.com/testcontainers/testcontainers-go"
)

const dockerUnavailableMsg = "Docker is not available - skipping integration test"

// isDockerAvailable reports whether a Docker daemon can be contacted
// through the testcontainers provider.
func isDockerAvailable(ctx context.Context) bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}
