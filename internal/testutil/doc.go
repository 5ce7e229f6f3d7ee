// Package testutil provides shared test utilities for pacer.
//
// This package consolidates common test helpers and fixtures used across
// the pacer codebase to reduce duplication and ensure consistent test
// patterns.
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - TempStore(t) - opens a SQLite store in a temp directory
//   - TestConfig() - a valid config with short windows for fast tests
//   - WriteConfigFile(t, dir, cfg) - writes .pacer/config.yaml
//
// # Fixtures
//
// The fixtures.go file provides sample data:
//
//   - SampleSignal(tier) - a valid wake signal for the given tier
//   - SampleDueSignal(tier, at) - a priority/scheduled signal due at a time
//   - AppendSignals(t, s, sigs...) - appends signals, failing on error
//
// # Timeout Helpers
//
// ContextWithTestDeadline(t, fallback) creates a context bounded by the
// test's own deadline minus a cleanup buffer, so loop tests never outlive
// the test binary.
package testutil
