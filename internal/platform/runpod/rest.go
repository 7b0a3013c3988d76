package runpod

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/imamik/podkeeper/internal/pod"
)

// API operation names, used in errors, logs and metric labels.
const (
	OpCreatePod    = "create_pod"
	OpGetPod       = "get_pod"
	OpListPods     = "list_pods"
	OpStartPod     = "start_pod"
	OpStopPod      = "stop_pod"
	OpTerminatePod = "terminate_pod"
	OpListGPUTypes = "list_gpu_types"
)

// createPodRequest is the REST create body.
type createPodRequest struct {
	CloudType         string            `json:"cloudType"`
	ComputeType       string            `json:"computeType"`
	Name              string            `json:"name"`
	ImageName         string            `json:"imageName"`
	GPUCount          int               `json:"gpuCount"`
	GPUTypeIDs        []string          `json:"gpuTypeIds"`
	ContainerDiskInGB int               `json:"containerDiskInGb"`
	VolumeInGB        int               `json:"volumeInGb"`
	VolumeMountPath   string            `json:"volumeMountPath"`
	Ports             []string          `json:"ports"`
	Env               map[string]string `json:"env"`
	NetworkVolumeID   string            `json:"networkVolumeId,omitempty"`
	StartJupyter      bool              `json:"startJupyter"`
	StartSSH          bool              `json:"startSsh"`
}

// restPod is a pod as returned by the REST API.
type restPod struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	DesiredStatus string         `json:"desiredStatus"`
	ImageName     string         `json:"imageName"`
	PublicIP      string         `json:"publicIp"`
	PortMappings  map[string]int `json:"portMappings"`
	MachineID     string         `json:"machineId"`
}

func newCreatePodRequest(spec pod.Spec) createPodRequest {
	ports := make([]string, 0, len(spec.Ports))
	for _, p := range spec.Ports {
		ports = append(ports, p.String())
	}
	env := spec.Env
	if env == nil {
		env = map[string]string{}
	}
	return createPodRequest{
		CloudType:         spec.CloudType,
		ComputeType:       spec.ComputeType,
		Name:              spec.Name,
		ImageName:         spec.Image,
		GPUCount:          spec.GPUCount,
		GPUTypeIDs:        spec.GPUTypeIDs,
		ContainerDiskInGB: spec.ContainerDiskGB,
		VolumeInGB:        spec.VolumeGB,
		VolumeMountPath:   spec.VolumeMountPath,
		Ports:             ports,
		Env:               env,
		NetworkVolumeID:   spec.NetworkVolumeID,
		StartJupyter:      spec.StartJupyter,
		StartSSH:          spec.StartSSH,
	}
}

// toRecord converts a REST pod. Port mapping keys that are not port
// numbers are ignored.
func (p *restPod) toRecord() *pod.Record {
	r := &pod.Record{
		ID:        p.ID,
		Name:      p.Name,
		Image:     p.ImageName,
		Status:    pod.ParseStatus(p.DesiredStatus),
		PublicIP:  p.PublicIP,
		MachineID: p.MachineID,
	}
	if len(p.PortMappings) > 0 {
		r.Ports = make(map[int]pod.Endpoint, len(p.PortMappings))
		for key, public := range p.PortMappings {
			key, _, _ = strings.Cut(key, "/")
			internal, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			r.Ports[internal] = pod.Endpoint{Host: p.PublicIP, Port: public}
		}
	}
	return r
}

func (c *Client) podURL(id string, suffix ...string) string {
	parts := append([]string{c.restURL, "pods", url.PathEscape(id)}, suffix...)
	return strings.Join(parts, "/")
}

// CreatePod creates a pod from spec. The call is retried only when no
// response arrived or the API rate limited the request.
func (c *Client) CreatePod(ctx context.Context, spec pod.Spec) (*pod.Record, error) {
	body := newCreatePodRequest(spec)
	var created restPod
	err := c.call(ctx, OpCreatePod, isCreateRetryable, func() error {
		return c.sendJSON(ctx, OpCreatePod, http.MethodPost, c.restURL+"/pods", body, &created)
	})
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, &TransportError{Op: OpCreatePod, Err: fmt.Errorf("response has no pod id"), decode: true}
	}

	r := created.toRecord()
	if r.Name == "" {
		r.Name = spec.Name
	}
	if r.Image == "" {
		r.Image = spec.Image
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	c.log(ctx).Info("created pod", "pod", spec.Name, "podID", r.ID)
	return r, nil
}

// GetPod returns the live pod. A missing pod is an *APIError with status 404.
func (c *Client) GetPod(ctx context.Context, id string) (*pod.Record, error) {
	if c.statusVia == StatusViaGraphQL {
		return c.getPodGraphQL(ctx, id)
	}
	var p restPod
	err := c.call(ctx, OpGetPod, IsRetryable, func() error {
		return c.sendJSON(ctx, OpGetPod, http.MethodGet, c.podURL(id), nil, &p)
	})
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = id
	}
	return p.toRecord(), nil
}

// ListPods returns every pod of the account, ordered by name then id.
func (c *Client) ListPods(ctx context.Context) ([]*pod.Record, error) {
	var records []*pod.Record
	if c.statusVia == StatusViaGraphQL {
		var err error
		if records, err = c.listPodsGraphQL(ctx); err != nil {
			return nil, err
		}
	} else {
		var pods []restPod
		err := c.call(ctx, OpListPods, IsRetryable, func() error {
			return c.sendJSON(ctx, OpListPods, http.MethodGet, c.restURL+"/pods", nil, &pods)
		})
		if err != nil {
			return nil, err
		}
		records = make([]*pod.Record, 0, len(pods))
		for i := range pods {
			records = append(records, pods[i].toRecord())
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// SetDesiredStatus starts (StatusRunning) or stops (StatusStopped) a pod.
func (c *Client) SetDesiredStatus(ctx context.Context, id string, status pod.Status) (*pod.Record, error) {
	if c.statusVia == StatusViaGraphQL {
		return c.setDesiredStatusGraphQL(ctx, id, status)
	}

	var op, action string
	switch status {
	case pod.StatusRunning:
		op, action = OpStartPod, "start"
	case pod.StatusStopped:
		op, action = OpStopPod, "stop"
	default:
		return nil, fmt.Errorf("unsupported desired status %q", status)
	}

	var body []byte
	err := c.call(ctx, op, IsRetryable, func() error {
		var err error
		body, err = c.send(ctx, op, http.MethodPost, c.podURL(id, action), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log(ctx).Info("changed desired pod status", "podID", id, "status", string(status))

	// The lifecycle endpoints may answer with the pod, an empty body or
	// plain text.
	var p restPod
	if json.Unmarshal(body, &p) != nil || p.ID == "" {
		return &pod.Record{ID: id, Status: pendingStatus(status)}, nil
	}
	return p.toRecord(), nil
}

// TerminatePod permanently deletes a pod. Terminating a missing pod returns
// an error for which IsNotFound is true.
func (c *Client) TerminatePod(ctx context.Context, id string) error {
	if c.statusVia == StatusViaGraphQL {
		return c.terminatePodGraphQL(ctx, id)
	}
	err := c.call(ctx, OpTerminatePod, IsRetryable, func() error {
		_, err := c.send(ctx, OpTerminatePod, http.MethodDelete, c.podURL(id), nil)
		return err
	})
	if err == nil {
		c.log(ctx).Info("terminated pod", "podID", id)
	}
	return err
}

// pendingStatus is the status assumed right after a lifecycle request whose
// response did not include the pod.
func pendingStatus(target pod.Status) pod.Status {
	if target == pod.StatusRunning {
		return pod.StatusProvisioning
	}
	return target
}
