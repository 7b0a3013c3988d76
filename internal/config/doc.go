// Package config loads the explicit configuration consumed by the pod
// orchestrator.
//
// A [Config] describes one logical pod plus the provider endpoints,
// timeouts and reconcile mode used to manage it. [LoadFromEnv] reads the
// RUNPOD_* environment variables; [LoadFile] reads a YAML file with a
// pods list and returns one Config per pod. Both validate before
// returning and report problems as [*ConfigError].
package config
