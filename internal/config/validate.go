package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/imamik/podkeeper/internal/platform/runpod"
	"github.com/imamik/podkeeper/internal/reconcile"
)

// ValidCloudTypes contains the cloud types accepted by the provider.
var ValidCloudTypes = map[string]bool{
	"SECURE":    true,
	"COMMUNITY": true,
}

// ValidComputeTypes contains the compute types accepted by the provider.
var ValidComputeTypes = map[string]bool{
	"GPU": true,
	"CPU": true,
}

// Validate checks the configuration and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	if err := c.ValidateAccess(); err != nil {
		return err
	}
	if err := c.validatePod(); err != nil {
		return err
	}
	if c.ReadyTimeout <= 0 {
		return &ConfigError{Key: EnvReadyTimeoutMS, Reason: "must be positive"}
	}
	if c.PollInterval <= 0 {
		return &ConfigError{Key: EnvPollIntervalMS, Reason: "must be positive"}
	}
	if c.SSHPort < 1 || c.SSHPort > 65535 {
		return &ConfigError{Key: EnvSSHPort, Reason: fmt.Sprintf("port %d out of range", c.SSHPort)}
	}
	if _, err := reconcile.ParseMode(string(c.ReconcileMode)); err != nil {
		return &ConfigError{Key: EnvReconcileMode, Reason: err.Error()}
	}
	if c.StatePath == "" {
		return &ConfigError{Key: EnvStatePath, Reason: "is required"}
	}
	return nil
}

// ValidateAccess checks only what is needed to call the API: the key,
// endpoints, timeout and retry settings. Pod settings are not checked.
func (c *Config) ValidateAccess() error {
	if c.APIKey == "" {
		return &ConfigError{Key: EnvAPIKey, Reason: "is required"}
	}
	if err := validateURL(EnvRESTURL, c.RESTURL); err != nil {
		return err
	}
	if err := validateURL(EnvGraphQLURL, c.GraphQLURL); err != nil {
		return err
	}
	if c.HTTPTimeout <= 0 {
		return &ConfigError{Key: EnvHTTPTimeoutMS, Reason: "must be positive"}
	}
	if _, err := runpod.ParseStatusVia(string(c.StatusVia)); err != nil {
		return &ConfigError{Key: EnvStatusVia, Reason: err.Error()}
	}
	if c.Retry.MaxRetries < 0 {
		return &ConfigError{Key: EnvRetryMax, Reason: "must not be negative"}
	}
	return nil
}

func (c *Config) validatePod() error {
	p := c.Pod
	if strings.TrimSpace(p.Name) == "" {
		return &ConfigError{Key: EnvPodName, Reason: "is required"}
	}
	if p.Image == "" {
		return &ConfigError{Key: EnvImageName, Reason: "is required"}
	}
	if len(p.GPUTypeIDs) == 0 && p.ComputeType != "CPU" {
		return &ConfigError{Key: EnvGPUTypeIDs, Reason: "at least one GPU type is required"}
	}
	if p.GPUCount < 1 && p.ComputeType != "CPU" {
		return &ConfigError{Key: EnvGPUCount, Reason: "must be at least 1"}
	}
	if p.ContainerDiskGB < 1 {
		return &ConfigError{Key: EnvContainerDiskGB, Reason: "must be at least 1"}
	}
	if p.VolumeGB > 0 && p.VolumeMountPath == "" {
		return &ConfigError{Key: EnvVolumeMountPath, Reason: "is required when a volume is configured"}
	}
	if !ValidCloudTypes[p.CloudType] {
		return &ConfigError{Key: EnvCloudType, Reason: fmt.Sprintf("unknown cloud type %q", p.CloudType)}
	}
	if !ValidComputeTypes[p.ComputeType] {
		return &ConfigError{Key: EnvComputeType, Reason: fmt.Sprintf("unknown compute type %q", p.ComputeType)}
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Key: key, Reason: fmt.Sprintf("invalid URL %q", raw)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Key: key, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return nil
}
