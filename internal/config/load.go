package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/imamik/podkeeper/internal/platform/runpod"
	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/reconcile"
)

// File is the on-disk YAML configuration. Shared settings apply to every
// entry in Pods.
type File struct {
	APIKey            string         `mapstructure:"api_key" yaml:"api_key"`
	RESTURL           string         `mapstructure:"rest_url" yaml:"rest_url"`
	GraphQLURL        string         `mapstructure:"graphql_url" yaml:"graphql_url"`
	UserAgent         string         `mapstructure:"user_agent" yaml:"user_agent"`
	HTTPTimeout       time.Duration  `mapstructure:"http_timeout" yaml:"http_timeout"`
	ReadyTimeout      time.Duration  `mapstructure:"ready_timeout" yaml:"ready_timeout"`
	PollInterval      time.Duration  `mapstructure:"poll_interval" yaml:"poll_interval"`
	ReconcileMode     string         `mapstructure:"reconcile_mode" yaml:"reconcile_mode"`
	StatePath         string         `mapstructure:"state_path" yaml:"state_path"`
	RefreshBeforePlan *bool          `mapstructure:"refresh_before_plan" yaml:"refresh_before_plan"`
	StatusVia         string         `mapstructure:"status_via" yaml:"status_via"`
	SSHPort           int            `mapstructure:"ssh_port" yaml:"ssh_port"`
	Retry             FileRetry      `mapstructure:"retry" yaml:"retry"`
	Pods              []FilePodEntry `mapstructure:"pods" yaml:"pods"`
}

// FileRetry is the retry block of the file.
type FileRetry struct {
	MaxRetries   *int          `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
}

// FilePodEntry is one pod in the file. Unset fields take the same defaults
// as the environment loader.
type FilePodEntry struct {
	Name            string            `mapstructure:"name" yaml:"name"`
	Image           string            `mapstructure:"image" yaml:"image"`
	GPUTypeIDs      []string          `mapstructure:"gpu_type_ids" yaml:"gpu_type_ids"`
	GPUCount        int               `mapstructure:"gpu_count" yaml:"gpu_count"`
	ContainerDiskGB int               `mapstructure:"container_disk_gb" yaml:"container_disk_gb"`
	VolumeGB        *int              `mapstructure:"volume_gb" yaml:"volume_gb"`
	VolumeMountPath string            `mapstructure:"volume_mount_path" yaml:"volume_mount_path"`
	Ports           []string          `mapstructure:"ports" yaml:"ports"`
	CloudType       string            `mapstructure:"cloud_type" yaml:"cloud_type"`
	ComputeType     string            `mapstructure:"compute_type" yaml:"compute_type"`
	NetworkVolumeID string            `mapstructure:"network_volume_id" yaml:"network_volume_id"`
	Env             map[string]string `mapstructure:"env" yaml:"env"`
	StartSSH        *bool             `mapstructure:"start_ssh" yaml:"start_ssh"`
	StartJupyter    *bool             `mapstructure:"start_jupyter" yaml:"start_jupyter"`
}

// LoadFile reads a YAML configuration file and returns one validated Config
// per configured pod. When the file carries no api_key, RUNPOD_API_KEY is
// used.
func LoadFile(path string) ([]*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Key: path, Reason: "failed to read config file", Err: err}
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes a YAML document. lookup supplies environment fallbacks.
func Parse(data []byte, lookup func(string) (string, bool)) ([]*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Key: "file", Reason: "failed to unmarshal yaml", Err: err}
	}

	var f File
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &f,
	})
	if err != nil {
		return nil, &ConfigError{Key: "file", Reason: "failed to create decoder", Err: err}
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, &ConfigError{Key: "file", Reason: "failed to decode config", Err: err}
	}

	if f.APIKey == "" && lookup != nil {
		if v, ok := lookup(EnvAPIKey); ok {
			f.APIKey = v
		}
	}
	if len(f.Pods) == 0 {
		return nil, &ConfigError{Key: "pods", Reason: "at least one pod is required"}
	}

	base, err := f.base()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(f.Pods))
	configs := make([]*Config, 0, len(f.Pods))
	for i, entry := range f.Pods {
		cfg := base
		spec, err := entry.spec(base.Pod)
		if err != nil {
			return nil, err
		}
		cfg.Pod = spec
		if seen[spec.Name] {
			return nil, &ConfigError{Key: fmt.Sprintf("pods[%d].name", i), Reason: fmt.Sprintf("duplicate pod name %q", spec.Name)}
		}
		seen[spec.Name] = true
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("pods[%d]: %w", i, err)
		}
		configs = append(configs, &cfg)
	}
	return configs, nil
}

// base applies the shared settings on top of Default.
func (f *File) base() (Config, error) {
	cfg := Default()
	setString(&cfg.APIKey, f.APIKey)
	setString(&cfg.RESTURL, f.RESTURL)
	setString(&cfg.GraphQLURL, f.GraphQLURL)
	setString(&cfg.UserAgent, f.UserAgent)
	setString(&cfg.StatePath, f.StatePath)
	setDuration(&cfg.HTTPTimeout, f.HTTPTimeout)
	setDuration(&cfg.ReadyTimeout, f.ReadyTimeout)
	setDuration(&cfg.PollInterval, f.PollInterval)
	setDuration(&cfg.Retry.InitialDelay, f.Retry.InitialDelay)
	if f.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *f.Retry.MaxRetries
	}
	if f.SSHPort != 0 {
		cfg.SSHPort = f.SSHPort
	}
	if f.RefreshBeforePlan != nil {
		cfg.RefreshBeforePlan = *f.RefreshBeforePlan
	}
	if f.ReconcileMode != "" {
		mode, err := reconcile.ParseMode(f.ReconcileMode)
		if err != nil {
			return Config{}, &ConfigError{Key: "reconcile_mode", Reason: err.Error()}
		}
		cfg.ReconcileMode = mode
	}
	if f.StatusVia != "" {
		via, err := runpod.ParseStatusVia(f.StatusVia)
		if err != nil {
			return Config{}, &ConfigError{Key: "status_via", Reason: err.Error()}
		}
		cfg.StatusVia = via
	}
	return cfg, nil
}

func (e FilePodEntry) spec(defaults pod.Spec) (pod.Spec, error) {
	s := defaults
	s.Env = nil
	setString(&s.Name, e.Name)
	setString(&s.Image, e.Image)
	setString(&s.VolumeMountPath, e.VolumeMountPath)
	setString(&s.CloudType, e.CloudType)
	setString(&s.ComputeType, e.ComputeType)
	setString(&s.NetworkVolumeID, e.NetworkVolumeID)
	if len(e.GPUTypeIDs) > 0 {
		s.GPUTypeIDs = e.GPUTypeIDs
	}
	if e.GPUCount != 0 {
		s.GPUCount = e.GPUCount
	}
	if e.ContainerDiskGB != 0 {
		s.ContainerDiskGB = e.ContainerDiskGB
	}
	if e.VolumeGB != nil {
		s.VolumeGB = *e.VolumeGB
	}
	if e.StartSSH != nil {
		s.StartSSH = *e.StartSSH
	}
	if e.StartJupyter != nil {
		s.StartJupyter = *e.StartJupyter
	}
	if len(e.Ports) > 0 {
		ports, err := pod.ParsePorts(e.Ports)
		if err != nil {
			return pod.Spec{}, &ConfigError{Key: "ports", Reason: err.Error()}
		}
		s.Ports = ports
	}
	if len(e.Env) > 0 {
		s.Env = e.Env
	}
	return s, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
