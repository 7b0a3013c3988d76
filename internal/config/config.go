package config

import (
	"fmt"
	"time"

	"github.com/imamik/podkeeper/internal/platform/runpod"
	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/reconcile"
)

// Defaults shared by the environment and file loaders.
const (
	DefaultRESTURL         = "https://rest.runpod.io/v1"
	DefaultGraphQLURL      = "https://api.runpod.io/graphql"
	DefaultPodName         = "podkeeper-pod"
	DefaultGPUType         = "NVIDIA A40"
	DefaultPorts           = "22/tcp,8888/http"
	DefaultCloudType       = "SECURE"
	DefaultComputeType     = "GPU"
	DefaultContainerDiskGB = 50
	DefaultVolumeGB        = 20
	DefaultVolumeMountPath = "/workspace"
	DefaultStatePath       = ".podkeeper/state.json"
	DefaultUserAgent       = "podkeeper/1.0"

	DefaultHTTPTimeout  = 30 * time.Second
	DefaultReadyTimeout = 300 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// Config is the complete, explicit configuration for managing one logical pod.
// It is passed by value into constructors; nothing reads the environment
// after loading.
type Config struct {
	APIKey     string
	RESTURL    string
	GraphQLURL string
	UserAgent  string

	Pod     pod.Spec
	SSHPort int

	HTTPTimeout  time.Duration
	ReadyTimeout time.Duration
	PollInterval time.Duration

	ReconcileMode     reconcile.Mode
	StatePath         string
	RefreshBeforePlan bool
	StatusVia         runpod.StatusVia

	Retry RetryConfig
}

// RetryConfig controls transport-level retries of idempotent API calls.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// Default returns a Config with every optional setting at its default. The
// API key and image are left empty.
func Default() Config {
	ports, _ := pod.ParsePorts(splitCSV(DefaultPorts))
	return Config{
		RESTURL:    DefaultRESTURL,
		GraphQLURL: DefaultGraphQLURL,
		UserAgent:  DefaultUserAgent,
		Pod: pod.Spec{
			Name:            DefaultPodName,
			GPUTypeIDs:      []string{DefaultGPUType},
			GPUCount:        1,
			ContainerDiskGB: DefaultContainerDiskGB,
			VolumeGB:        DefaultVolumeGB,
			VolumeMountPath: DefaultVolumeMountPath,
			Ports:           ports,
			CloudType:       DefaultCloudType,
			ComputeType:     DefaultComputeType,
			StartSSH:        true,
		},
		SSHPort:           pod.DefaultSSHPort,
		HTTPTimeout:       DefaultHTTPTimeout,
		ReadyTimeout:      DefaultReadyTimeout,
		PollInterval:      DefaultPollInterval,
		ReconcileMode:     reconcile.ModeReuse,
		StatePath:         DefaultStatePath,
		RefreshBeforePlan: true,
		StatusVia:         runpod.StatusViaREST,
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 500 * time.Millisecond,
		},
	}
}

// RequiredPorts returns the internal port numbers the readiness check waits for.
func (c *Config) RequiredPorts() []int {
	return c.Pod.PortNumbers()
}

// ConfigError reports a missing or invalid setting. Err, when set, is the
// underlying read or decode failure.
type ConfigError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies configuration errors for pod.KindOf.
func (e *ConfigError) ErrorKind() pod.ErrorKind {
	return pod.KindConfig
}
