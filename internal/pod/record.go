package pod

import (
	"strings"
	"time"
)

// Status is the desired status of a pod as reported by the provider.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusRunning      Status = "running"
	StatusStopped      Status = "stopped"
	StatusExited       Status = "exited"
	StatusTerminated   Status = "terminated"
)

// ParseStatus maps a provider status string onto the podkeeper enumeration.
// Statuses the provider uses for transitional states, and anything unknown,
// map to StatusProvisioning.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RUNNING":
		return StatusRunning
	case "EXITED":
		return StatusExited
	case "STOPPED", "PAUSED":
		return StatusStopped
	case "TERMINATED":
		return StatusTerminated
	default:
		return StatusProvisioning
	}
}

// IsTerminal reports whether the pod can never run again.
func (s Status) IsTerminal() bool {
	return s == StatusTerminated
}

// IsStartable reports whether the pod exists but is not running.
func (s Status) IsStartable() bool {
	return s == StatusStopped || s == StatusExited
}

// Endpoint is an externally reachable host and port.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Record is the observed state of a pod, as refreshed from the provider and
// persisted by the state store.
type Record struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Image       string           `json:"image"`
	Status      Status           `json:"status"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	PublicIP    string           `json:"publicIp,omitempty"`
	Ports       map[int]Endpoint `json:"ports,omitempty"`
	MachineID   string           `json:"machineId,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Ports != nil {
		c.Ports = make(map[int]Endpoint, len(r.Ports))
		for k, v := range r.Ports {
			c.Ports[k] = v
		}
	}
	return &c
}

// HasPorts reports whether every given container port has a public mapping.
func (r *Record) HasPorts(ports []int) bool {
	for _, p := range ports {
		if _, ok := r.Ports[p]; !ok {
			return false
		}
	}
	return true
}

// Observe copies the live fields of a freshly fetched record into r,
// keeping r's identity, fingerprint and creation time.
func (r *Record) Observe(live *Record, now time.Time) {
	r.Status = live.Status
	r.PublicIP = live.PublicIP
	r.Ports = live.Clone().Ports
	if live.Image != "" {
		r.Image = live.Image
	}
	if live.MachineID != "" {
		r.MachineID = live.MachineID
	}
	r.UpdatedAt = now
}

// GPUType is read-only reference data about a GPU model offered by the provider.
type GPUType struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	MemoryGB       int    `json:"memoryInGb"`
	AvailableCount int    `json:"availableCount"`
	SecureCloud    bool   `json:"secureCloud"`
	CommunityCloud bool   `json:"communityCloud"`
}
