package testing

import (
	"maps"
	"time"

	"github.com/imamik/podkeeper/internal/config"
	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/reconcile"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults: the
// "dev-pod" logical pod exposing 22/tcp and 8888/http, a 5s poll interval
// and a 300s ready timeout.
func NewConfigBuilder() *ConfigBuilder {
	cfg := config.Default()
	cfg.APIKey = "test-key"
	cfg.Pod.Name = "dev-pod"
	cfg.Pod.Image = "runpod/pytorch:2.1"
	return &ConfigBuilder{cfg: cfg}
}

// WithName sets the logical pod name.
func (b *ConfigBuilder) WithName(name string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Pod.Name = name
	return newBuilder
}

// WithImage sets the container image.
func (b *ConfigBuilder) WithImage(image string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Pod.Image = image
	return newBuilder
}

// WithGPU sets the GPU type and count.
func (b *ConfigBuilder) WithGPU(gpuType string, count int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Pod.GPUTypeIDs = []string{gpuType}
	newBuilder.cfg.Pod.GPUCount = count
	return newBuilder
}

// WithPorts sets the exposed ports, e.g. "22/tcp".
func (b *ConfigBuilder) WithPorts(specs ...string) *ConfigBuilder {
	newBuilder := b.clone()
	ports, err := pod.ParsePorts(specs)
	if err != nil {
		panic(err)
	}
	newBuilder.cfg.Pod.Ports = ports
	return newBuilder
}

// WithEnv sets one container environment variable.
func (b *ConfigBuilder) WithEnv(key, value string) *ConfigBuilder {
	newBuilder := b.clone()
	if newBuilder.cfg.Pod.Env == nil {
		newBuilder.cfg.Pod.Env = make(map[string]string)
	}
	newBuilder.cfg.Pod.Env[key] = value
	return newBuilder
}

// WithMode sets the reconcile mode.
func (b *ConfigBuilder) WithMode(mode reconcile.Mode) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.ReconcileMode = mode
	return newBuilder
}

// WithStatePath sets the state file location.
func (b *ConfigBuilder) WithStatePath(path string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.StatePath = path
	return newBuilder
}

// WithTimeouts sets the ready timeout and poll interval.
func (b *ConfigBuilder) WithTimeouts(ready, poll time.Duration) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.ReadyTimeout = ready
	newBuilder.cfg.PollInterval = poll
	return newBuilder
}

// WithRefresh toggles refreshing the stored record before planning.
func (b *ConfigBuilder) WithRefresh(enabled bool) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.RefreshBeforePlan = enabled
	return newBuilder
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() config.Config {
	return b.clone().cfg
}

// clone creates a deep copy of the builder for immutability.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	newCfg := b.cfg
	newCfg.Pod.GPUTypeIDs = cloneStringSlice(b.cfg.Pod.GPUTypeIDs)
	if b.cfg.Pod.Ports != nil {
		newCfg.Pod.Ports = append([]pod.Port(nil), b.cfg.Pod.Ports...)
	}
	newCfg.Pod.Env = cloneStringMap(b.cfg.Pod.Env)
	return &ConfigBuilder{cfg: newCfg}
}

// cloneStringMap creates a deep copy of a string map.
func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cloned := make(map[string]string, len(m))
	maps.Copy(cloned, m)
	return cloned
}

// cloneStringSlice creates a copy of a string slice.
func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	cloned := make([]string, len(s))
	copy(cloned, s)
	return cloned
}
