package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/podkeeper/internal/pod"
)

// MockProvider is a testify mock of the provider capability.
type MockProvider struct {
	mock.Mock
}

// CreatePod records the call and returns the configured record.
func (m *MockProvider) CreatePod(ctx context.Context, spec pod.Spec) (*pod.Record, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pod.Record), args.Error(1)
}

// GetPod records the call and returns the configured record.
func (m *MockProvider) GetPod(ctx context.Context, id string) (*pod.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pod.Record), args.Error(1)
}

// ListPods records the call and returns the configured records.
func (m *MockProvider) ListPods(ctx context.Context) ([]*pod.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pod.Record), args.Error(1)
}

// SetDesiredStatus records the call and returns the configured record.
func (m *MockProvider) SetDesiredStatus(ctx context.Context, id string, status pod.Status) (*pod.Record, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pod.Record), args.Error(1)
}

// TerminatePod records the call.
func (m *MockProvider) TerminatePod(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ListGPUTypes records the call and returns the configured GPU types.
func (m *MockProvider) ListGPUTypes(ctx context.Context) ([]pod.GPUType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pod.GPUType), args.Error(1)
}

// NewMockProvider creates a MockProvider that knows no pods.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// WithRunningPod configures GetPod to report id as running at ip with the
// given container-to-public port mappings.
func (m *MockProvider) WithRunningPod(id, ip string, ports map[int]int) *MockProvider {
	m.On("GetPod", mock.Anything, id).Return(RunningRecord(id, ip, ports), nil)
	return m
}

// WithCreateError configures CreatePod to fail with err.
func (m *MockProvider) WithCreateError(err error) *MockProvider {
	m.On("CreatePod", mock.Anything, mock.Anything).Return(nil, err)
	return m
}

// RunningRecord builds a running record with public port mappings.
func RunningRecord(id, ip string, ports map[int]int) *pod.Record {
	rec := &pod.Record{ID: id, Status: pod.StatusRunning, PublicIP: ip, Ports: make(map[int]pod.Endpoint, len(ports))}
	for internal, public := range ports {
		rec.Ports[internal] = pod.Endpoint{Host: ip, Port: public}
	}
	return rec
}
