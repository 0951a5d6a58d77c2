// Package testing provides shared utilities for taskhub test suites.
//
// The package itself holds common test constants (logger levels) so
// individual suites do not repeat magic strings.
//
// # Containers
//
// The containers subpackage starts real PostgreSQL, Oracle, and Redis
// instances through testcontainers-go for integration tests. These tests
// are guarded by the integration build tag and skipped when Docker is
// unavailable.
//
// # Mocks
//
// The mocks subpackage provides testify-based mock implementations of the
// database interfaces for tests that only need to script coarse outcomes
// (health failures, connection errors) without a SQL-level mock.
package testing
