// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// retries, initial delay and maximum delay. The provider transport uses it
// for idempotent API calls; the orchestrator core itself never retries.
package retry
