package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/imamik/podkeeper/internal/pod"
)

// FakeProvider is an in-memory RunPod account. Created and started pods
// report provisioning for ReadyAfter GetPod calls and are then running with
// PublicIP and one public port per exposed container port, counting up from
// BasePort. Terminated pods disappear, so later lookups fail with
// pod.ErrNotFound.
type FakeProvider struct {
	ReadyAfter int
	PublicIP   string
	BasePort   int

	// CreateErr, when set, fails every CreatePod call.
	CreateErr error
	// GetErrs are returned by the next GetPod calls, one per call, before
	// the pod itself is consulted.
	GetErrs []error

	mu    sync.Mutex
	pods  map[string]*fakePod
	next  int
	calls map[string]int
}

type fakePod struct {
	rec     *pod.Record
	ports   []int
	pending int
}

// NewFakeProvider returns an empty account whose pods become ready at once
// at 1.2.3.4 with public ports starting at 40001.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		PublicIP: "1.2.3.4",
		BasePort: 40001,
		pods:     make(map[string]*fakePod),
		calls:    make(map[string]int),
	}
}

// Seed adds an existing pod. Its ports map as they would for a created pod.
func (f *FakeProvider) Seed(rec *pod.Record, containerPorts ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pods[rec.ID] = &fakePod{rec: rec.Clone(), ports: containerPorts}
}

// Vanish removes a pod as if it had been deleted outside podkeeper.
func (f *FakeProvider) Vanish(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pods, id)
}

// Calls returns how often op ("CreatePod", "GetPod", ...) was called.
func (f *FakeProvider) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Pods returns the IDs of the pods that exist.
func (f *FakeProvider) Pods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.pods))
	for id := range f.pods {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *FakeProvider) CreatePod(_ context.Context, spec pod.Spec) (*pod.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreatePod"]++
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	f.next++
	p := &fakePod{
		rec: &pod.Record{
			ID:     fmt.Sprintf("p-%d", f.next),
			Name:   spec.Name,
			Image:  spec.Image,
			Status: pod.StatusRunning,
		},
		ports:   spec.PortNumbers(),
		pending: f.ReadyAfter,
	}
	f.pods[p.rec.ID] = p

	return &pod.Record{ID: p.rec.ID, Name: spec.Name, Image: spec.Image, Status: pod.StatusProvisioning}, nil
}

func (f *FakeProvider) GetPod(_ context.Context, id string) (*pod.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetPod"]++
	if len(f.GetErrs) > 0 {
		err := f.GetErrs[0]
		f.GetErrs = f.GetErrs[1:]
		return nil, err
	}

	p, ok := f.pods[id]
	if !ok {
		return nil, notFound(id)
	}
	return f.view(p), nil
}

func (f *FakeProvider) ListPods(_ context.Context) ([]*pod.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListPods"]++

	out := make([]*pod.Record, 0, len(f.pods))
	for _, p := range f.pods {
		r := p.rec.Clone()
		if r.Status == pod.StatusRunning && p.pending > 0 {
			r.Status = pod.StatusProvisioning
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeProvider) SetDesiredStatus(_ context.Context, id string, status pod.Status) (*pod.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SetDesiredStatus"]++

	p, ok := f.pods[id]
	if !ok {
		return nil, notFound(id)
	}
	p.rec.Status = status
	if status == pod.StatusRunning {
		p.pending = f.ReadyAfter
	}
	return &pod.Record{ID: id, Status: status}, nil
}

func (f *FakeProvider) TerminatePod(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["TerminatePod"]++

	if _, ok := f.pods[id]; !ok {
		return notFound(id)
	}
	delete(f.pods, id)
	return nil
}

func (f *FakeProvider) ListGPUTypes(_ context.Context) ([]pod.GPUType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListGPUTypes"]++
	return []pod.GPUType{
		{ID: "NVIDIA A40", DisplayName: "A40", MemoryGB: 48, AvailableCount: 4, SecureCloud: true, CommunityCloud: true},
		{ID: "NVIDIA GeForce RTX 4090", DisplayName: "RTX 4090", MemoryGB: 24, AvailableCount: 8, CommunityCloud: true},
	}, nil
}

// view renders what the provider reports for p on one lookup.
func (f *FakeProvider) view(p *fakePod) *pod.Record {
	r := p.rec.Clone()
	if r.Status != pod.StatusRunning {
		return r
	}
	if p.pending > 0 {
		p.pending--
		r.Status = pod.StatusProvisioning
		return r
	}
	r.PublicIP = f.PublicIP
	r.Ports = make(map[int]pod.Endpoint, len(p.ports))
	for i, port := range p.ports {
		r.Ports[port] = pod.Endpoint{Host: f.PublicIP, Port: f.BasePort + i}
	}
	return r
}

// NotFoundError is the fake's not-found error. It matches pod.ErrNotFound
// and classifies as a provider error, as the real client's 404 does.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string            { return fmt.Sprintf("pod %s not found", e.ID) }
func (e *NotFoundError) Is(target error) bool     { return target == pod.ErrNotFound }
func (e *NotFoundError) ErrorKind() pod.ErrorKind { return pod.KindProvider }

func notFound(id string) error {
	return &NotFoundError{ID: id}
}
