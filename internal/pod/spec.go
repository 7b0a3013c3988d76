package pod

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Protocol is the exposure protocol of a container port.
type Protocol string

const (
	// ProtocolTCP exposes a raw TCP port (SSH and friends).
	ProtocolTCP Protocol = "tcp"
	// ProtocolHTTP exposes the port through the provider's HTTP proxy.
	ProtocolHTTP Protocol = "http"
)

// Port is a container port exposed by the pod.
type Port struct {
	Number   int
	Protocol Protocol
}

// String renders the port in the provider's "<port>/<protocol>" notation.
func (p Port) String() string {
	return fmt.Sprintf("%d/%s", p.Number, p.Protocol)
}

// ParsePort parses "<port>/<protocol>", e.g. "22/tcp" or "8888/http".
func ParsePort(s string) (Port, error) {
	num, proto, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Port{}, fmt.Errorf("invalid port %q: expected <port>/<protocol>", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || n > 65535 {
		return Port{}, fmt.Errorf("invalid port %q: port must be 1-65535", s)
	}
	switch p := Protocol(strings.ToLower(proto)); p {
	case ProtocolTCP, ProtocolHTTP:
		return Port{Number: n, Protocol: p}, nil
	default:
		return Port{}, fmt.Errorf("invalid port %q: protocol must be tcp or http", s)
	}
}

// ParsePorts parses a list of port specifications, skipping blank entries.
func ParsePorts(specs []string) ([]Port, error) {
	var ports []Port
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		p, err := ParsePort(s)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// Spec is the desired state of a pod. The logical Name is the only identity
// used for reuse decisions; every other field is compared only through
// [Spec.Fingerprint].
type Spec struct {
	Name            string
	Image           string
	GPUTypeIDs      []string
	GPUCount        int
	ContainerDiskGB int
	VolumeGB        int
	VolumeMountPath string
	Ports           []Port
	CloudType       string
	ComputeType     string
	NetworkVolumeID string
	Env             map[string]string
	StartSSH        bool
	StartJupyter    bool
}

// PortNumbers returns the container port numbers the pod exposes.
func (s Spec) PortNumbers() []int {
	nums := make([]int, 0, len(s.Ports))
	for _, p := range s.Ports {
		nums = append(nums, p.Number)
	}
	return nums
}

// Fingerprint returns a stable digest of every field except the name.
// Two specs with the same fingerprint would provision identical pods.
func (s Spec) Fingerprint() string {
	ports := make([]string, 0, len(s.Ports))
	for _, p := range s.Ports {
		ports = append(ports, p.String())
	}
	sort.Strings(ports)

	gpus := append([]string(nil), s.GPUTypeIDs...)
	sort.Strings(gpus)

	// encoding/json sorts map keys, so Env serializes deterministically.
	canonical := struct {
		Image           string            `json:"image"`
		GPUTypeIDs      []string          `json:"gpuTypeIds"`
		GPUCount        int               `json:"gpuCount"`
		ContainerDiskGB int               `json:"containerDiskGb"`
		VolumeGB        int               `json:"volumeGb"`
		VolumeMountPath string            `json:"volumeMountPath"`
		Ports           []string          `json:"ports"`
		CloudType       string            `json:"cloudType"`
		ComputeType     string            `json:"computeType"`
		NetworkVolumeID string            `json:"networkVolumeId"`
		Env             map[string]string `json:"env"`
		StartSSH        bool              `json:"startSsh"`
		StartJupyter    bool              `json:"startJupyter"`
	}{
		Image:           s.Image,
		GPUTypeIDs:      gpus,
		GPUCount:        s.GPUCount,
		ContainerDiskGB: s.ContainerDiskGB,
		VolumeGB:        s.VolumeGB,
		VolumeMountPath: s.VolumeMountPath,
		Ports:           ports,
		CloudType:       s.CloudType,
		ComputeType:     s.ComputeType,
		NetworkVolumeID: s.NetworkVolumeID,
		Env:             s.Env,
		StartSSH:        s.StartSSH,
		StartJupyter:    s.StartJupyter,
	}

	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
