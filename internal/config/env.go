package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/imamik/podkeeper/internal/platform/runpod"
	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/reconcile"
)

// Environment variables read by LoadFromEnv.
const (
	EnvAPIKey          = "RUNPOD_API_KEY"
	EnvImageName       = "RUNPOD_IMAGE_NAME"
	EnvPodName         = "RUNPOD_POD_NAME"
	EnvGPUTypeIDs      = "RUNPOD_GPU_TYPE_IDS"
	EnvGPUCount        = "RUNPOD_GPU_COUNT"
	EnvContainerDiskGB = "RUNPOD_CONTAINER_DISK_GB"
	EnvVolumeGB        = "RUNPOD_VOLUME_GB"
	EnvVolumeMountPath = "RUNPOD_VOLUME_MOUNT_PATH"
	EnvPorts           = "RUNPOD_PORTS"
	EnvCloudType       = "RUNPOD_CLOUD_TYPE"
	EnvComputeType     = "RUNPOD_COMPUTE_TYPE"
	EnvNetworkVolumeID = "RUNPOD_NETWORK_VOLUME_ID"
	EnvPodEnv          = "RUNPOD_POD_ENV"
	EnvStartSSH        = "RUNPOD_START_SSH"
	EnvStartJupyter    = "RUNPOD_START_JUPYTER"
	EnvHTTPTimeoutMS   = "RUNPOD_HTTP_TIMEOUT_MS"
	EnvReadyTimeoutMS  = "RUNPOD_READY_TIMEOUT_MS"
	EnvPollIntervalMS  = "RUNPOD_POLL_INTERVAL_MS"
	EnvReconcileMode   = "RUNPOD_RECONCILE_MODE"
	EnvRESTURL         = "RUNPOD_REST_URL"
	EnvGraphQLURL      = "RUNPOD_GRAPHQL_URL"
	EnvStatePath       = "RUNPOD_STATE_PATH"
	EnvStatusVia       = "RUNPOD_STATUS_VIA"
	EnvRetryMax        = "RUNPOD_HTTP_RETRY_MAX"
	EnvRetryBackoffMS  = "RUNPOD_HTTP_RETRY_BACKOFF_MS"
	EnvUserAgent       = "RUNPOD_USER_AGENT"
	EnvSSHPort         = "RUNPOD_SSH_PORT"
)

// LoadFromEnv builds a Config from RUNPOD_* environment variables.
// Unset variables take their defaults. A variable that is set but does not
// parse is a *ConfigError, never silently defaulted.
//
// Environment Variables:
//   - RUNPOD_API_KEY (required)
//   - RUNPOD_IMAGE_NAME (required)
//   - RUNPOD_POD_NAME (default: podkeeper-pod)
//   - RUNPOD_GPU_TYPE_IDS (default: NVIDIA A40, comma separated)
//   - RUNPOD_PORTS (default: 22/tcp,8888/http)
//   - RUNPOD_HTTP_TIMEOUT_MS (default: 30000)
//   - RUNPOD_READY_TIMEOUT_MS (default: 300000)
//   - RUNPOD_POLL_INTERVAL_MS (default: 5000)
//   - RUNPOD_RECONCILE_MODE (default: reuse)
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAccessFromEnv is LoadFromEnv for commands that only talk to the API,
// such as listing pods. Pod settings are read but not required.
func LoadAccessFromEnv() (*Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.ValidateAccess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays every set variable onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str(EnvAPIKey, &cfg.APIKey)
	e.str(EnvRESTURL, &cfg.RESTURL)
	e.str(EnvGraphQLURL, &cfg.GraphQLURL)
	e.str(EnvUserAgent, &cfg.UserAgent)
	e.str(EnvStatePath, &cfg.StatePath)

	e.str(EnvPodName, &cfg.Pod.Name)
	e.str(EnvImageName, &cfg.Pod.Image)
	e.str(EnvCloudType, &cfg.Pod.CloudType)
	e.str(EnvComputeType, &cfg.Pod.ComputeType)
	e.str(EnvNetworkVolumeID, &cfg.Pod.NetworkVolumeID)
	e.str(EnvVolumeMountPath, &cfg.Pod.VolumeMountPath)
	e.csv(EnvGPUTypeIDs, &cfg.Pod.GPUTypeIDs)
	e.uint(EnvGPUCount, &cfg.Pod.GPUCount)
	e.uint(EnvContainerDiskGB, &cfg.Pod.ContainerDiskGB)
	e.uint(EnvVolumeGB, &cfg.Pod.VolumeGB)
	e.boolean(EnvStartSSH, &cfg.Pod.StartSSH)
	e.boolean(EnvStartJupyter, &cfg.Pod.StartJupyter)
	e.ports(EnvPorts, &cfg.Pod.Ports)
	e.jsonMap(EnvPodEnv, &cfg.Pod.Env)
	e.uint(EnvSSHPort, &cfg.SSHPort)

	e.millis(EnvHTTPTimeoutMS, &cfg.HTTPTimeout)
	e.millis(EnvReadyTimeoutMS, &cfg.ReadyTimeout)
	e.millis(EnvPollIntervalMS, &cfg.PollInterval)
	e.uint(EnvRetryMax, &cfg.Retry.MaxRetries)
	e.millis(EnvRetryBackoffMS, &cfg.Retry.InitialDelay)

	if v, ok := e.get(EnvReconcileMode); ok {
		mode, err := reconcile.ParseMode(v)
		if err != nil {
			e.fail(EnvReconcileMode, err.Error())
		}
		cfg.ReconcileMode = mode
	}
	if v, ok := e.get(EnvStatusVia); ok {
		via, err := runpod.ParseStatusVia(v)
		if err != nil {
			e.fail(EnvStatusVia, err.Error())
		}
		cfg.StatusVia = via
	}

	return e.err
}

// envReader keeps the first parse failure so the caller can read every
// variable in a flat sequence.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, reason string) {
	if e.err == nil {
		e.err = &ConfigError{Key: key, Reason: reason}
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) csv(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		*dst = splitCSV(v)
	}
}

func (e *envReader) uint(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		e.fail(key, "expected an unsigned integer")
		return
	}
	*dst = n
}

func (e *envReader) millis(key string, dst *time.Duration) {
	ms := -1
	e.uint(key, &ms)
	if ms >= 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			*dst = true
		default:
			*dst = false
		}
	}
}

func (e *envReader) ports(key string, dst *[]pod.Port) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	ports, err := pod.ParsePorts(splitCSV(v))
	if err != nil {
		e.fail(key, err.Error())
		return
	}
	*dst = ports
}

func (e *envReader) jsonMap(key string, dst *map[string]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(v), &m); err != nil {
		e.fail(key, "expected valid JSON object")
		return
	}
	*dst = m
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
