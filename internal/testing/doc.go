// Package testing provides test utilities, builders, and fakes shared by the
// package tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating test configurations
//   - FakeProvider: In-memory RunPod account simulating the pod lifecycle
//   - MockProvider: testify mock of the provider capability
//   - SteppingClock: Fake clock whose waits return at once
//
// Usage:
//
//	cfg := podtest.NewConfigBuilder().
//	    WithName("dev-pod").
//	    WithStatePath(filepath.Join(t.TempDir(), "state.json")).
//	    Build()
//
//	provider := podtest.NewFakeProvider()
//	provider.ReadyAfter = 2
package testing
