package orchestration

import (
	"context"

	"github.com/imamik/podkeeper/internal/platform/runpod"
	"github.com/imamik/podkeeper/internal/pod"
)

// Provider is the transport capability the orchestrator drives.
// Implementations report a missing pod with an error matching pod.ErrNotFound.
type Provider interface {
	CreatePod(ctx context.Context, spec pod.Spec) (*pod.Record, error)
	GetPod(ctx context.Context, id string) (*pod.Record, error)
	ListPods(ctx context.Context) ([]*pod.Record, error)
	SetDesiredStatus(ctx context.Context, id string, status pod.Status) (*pod.Record, error)
	TerminatePod(ctx context.Context, id string) error
	ListGPUTypes(ctx context.Context) ([]pod.GPUType, error)
}

var _ Provider = (*runpod.Client)(nil)
