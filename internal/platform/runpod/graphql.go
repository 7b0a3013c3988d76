package runpod

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/imamik/podkeeper/internal/pod"
)

const (
	gpuTypesQuery = `query gpuTypes {
  gpuTypes {
    id
    displayName
    memoryInGb
    secureCloud
    communityCloud
    lowestPrice(input: {gpuCount: 1}) {
      stockStatus
      availableGpuCounts
    }
  }
}`

	podQuery = `query pod($input: PodFilter!) {
  pod(input: $input) {
    id
    name
    desiredStatus
    imageName
    machineId
    runtime {
      ports {
        ip
        isIpPublic
        privatePort
        publicPort
        type
      }
    }
  }
}`

	myPodsQuery = `query myself {
  myself {
    pods {
      id
      name
      desiredStatus
      imageName
      machineId
    }
  }
}`

	podResumeMutation = `mutation podResume($input: PodResumeInput!) {
  podResume(input: $input) {
    id
    desiredStatus
    imageName
    machineId
  }
}`

	podStopMutation = `mutation podStop($input: PodStopInput!) {
  podStop(input: $input) {
    id
    desiredStatus
  }
}`

	podTerminateMutation = `mutation podTerminate($input: PodTerminateInput!) {
  podTerminate(input: $input)
}`
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type gqlPod struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DesiredStatus string `json:"desiredStatus"`
	ImageName     string `json:"imageName"`
	MachineID     string `json:"machineId"`
	Runtime       *struct {
		Ports []gqlPort `json:"ports"`
	} `json:"runtime"`
}

type gqlPort struct {
	IP          string `json:"ip"`
	IsIPPublic  bool   `json:"isIpPublic"`
	PrivatePort int    `json:"privatePort"`
	PublicPort  int    `json:"publicPort"`
	Type        string `json:"type"`
}

type gqlGPUType struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	MemoryInGB     int    `json:"memoryInGb"`
	SecureCloud    bool   `json:"secureCloud"`
	CommunityCloud bool   `json:"communityCloud"`
	LowestPrice    *struct {
		StockStatus        string `json:"stockStatus"`
		AvailableGPUCounts []int  `json:"availableGpuCounts"`
	} `json:"lowestPrice"`
}

// toRecord converts a GraphQL pod. Only public runtime ports are mapped;
// the first public IP becomes the record's address.
func (p *gqlPod) toRecord() *pod.Record {
	r := &pod.Record{
		ID:        p.ID,
		Name:      p.Name,
		Image:     p.ImageName,
		Status:    pod.ParseStatus(p.DesiredStatus),
		MachineID: p.MachineID,
	}
	if p.Runtime == nil {
		return r
	}
	for _, port := range p.Runtime.Ports {
		if !port.IsIPPublic || port.IP == "" || port.PublicPort == 0 {
			continue
		}
		if r.PublicIP == "" {
			r.PublicIP = port.IP
		}
		if r.Ports == nil {
			r.Ports = make(map[int]pod.Endpoint)
		}
		r.Ports[port.PrivatePort] = pod.Endpoint{Host: port.IP, Port: port.PublicPort}
	}
	return r
}

func (g *gqlGPUType) toGPUType() pod.GPUType {
	t := pod.GPUType{
		ID:             g.ID,
		DisplayName:    g.DisplayName,
		MemoryGB:       g.MemoryInGB,
		SecureCloud:    g.SecureCloud,
		CommunityCloud: g.CommunityCloud,
	}
	if g.LowestPrice != nil {
		for _, n := range g.LowestPrice.AvailableGPUCounts {
			if n > t.AvailableCount {
				t.AvailableCount = n
			}
		}
	}
	return t
}

// graphql executes one query with retries and decodes its data into out.
// A non-empty errors array becomes *GraphQLError.
func (c *Client) graphql(ctx context.Context, op, query string, vars map[string]any, out any) error {
	if vars == nil {
		vars = map[string]any{}
	}
	req := graphQLRequest{Query: query, Variables: vars}
	return c.call(ctx, op, IsRetryable, func() error {
		var resp graphQLResponse
		if err := c.sendJSON(ctx, op, http.MethodPost, c.graphqlURL, req, &resp); err != nil {
			return err
		}
		if len(resp.Errors) > 0 {
			msgs := make([]string, 0, len(resp.Errors))
			for _, e := range resp.Errors {
				msgs = append(msgs, e.Message)
			}
			return &GraphQLError{Op: op, Messages: msgs}
		}
		if out == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return &TransportError{Op: op, Err: err, decode: true}
		}
		return nil
	})
}

// ListGPUTypes returns the GPU types known to the provider.
func (c *Client) ListGPUTypes(ctx context.Context) ([]pod.GPUType, error) {
	var data struct {
		GPUTypes []gqlGPUType `json:"gpuTypes"`
	}
	if err := c.graphql(ctx, OpListGPUTypes, gpuTypesQuery, nil, &data); err != nil {
		return nil, err
	}
	types := make([]pod.GPUType, 0, len(data.GPUTypes))
	for i := range data.GPUTypes {
		types = append(types, data.GPUTypes[i].toGPUType())
	}
	return types, nil
}

func (c *Client) getPodGraphQL(ctx context.Context, id string) (*pod.Record, error) {
	var data struct {
		Pod *gqlPod `json:"pod"`
	}
	vars := map[string]any{"input": map[string]any{"podId": id}}
	if err := c.graphql(ctx, OpGetPod, podQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Pod == nil {
		return nil, &APIError{Op: OpGetPod, StatusCode: http.StatusNotFound, Body: fmt.Sprintf("pod %s not found", id)}
	}
	return data.Pod.toRecord(), nil
}

func (c *Client) listPodsGraphQL(ctx context.Context) ([]*pod.Record, error) {
	var data struct {
		Myself *struct {
			Pods []gqlPod `json:"pods"`
		} `json:"myself"`
	}
	if err := c.graphql(ctx, OpListPods, myPodsQuery, nil, &data); err != nil {
		return nil, err
	}
	if data.Myself == nil {
		return []*pod.Record{}, nil
	}
	records := make([]*pod.Record, 0, len(data.Myself.Pods))
	for i := range data.Myself.Pods {
		records = append(records, data.Myself.Pods[i].toRecord())
	}
	return records, nil
}

func (c *Client) setDesiredStatusGraphQL(ctx context.Context, id string, status pod.Status) (*pod.Record, error) {
	var op, query, field string
	input := map[string]any{"podId": id}
	switch status {
	case pod.StatusRunning:
		op, query, field = OpStartPod, podResumeMutation, "podResume"
		input["gpuCount"] = c.resumeGPUs
	case pod.StatusStopped:
		op, query, field = OpStopPod, podStopMutation, "podStop"
	default:
		return nil, fmt.Errorf("unsupported desired status %q", status)
	}

	var data map[string]*gqlPod
	if err := c.graphql(ctx, op, query, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}
	c.log(ctx).Info("changed desired pod status", "podID", id, "status", string(status))
	if p := data[field]; p != nil && p.ID != "" {
		return p.toRecord(), nil
	}
	return &pod.Record{ID: id, Status: pendingStatus(status)}, nil
}

func (c *Client) terminatePodGraphQL(ctx context.Context, id string) error {
	vars := map[string]any{"input": map[string]any{"podId": id}}
	if err := c.graphql(ctx, OpTerminatePod, podTerminateMutation, vars, nil); err != nil {
		return err
	}
	c.log(ctx).Info("terminated pod", "podID", id)
	return nil
}
