package orchestration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podkeeper/internal/config"
	"github.com/imamik/podkeeper/internal/platform/runpod"
	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/readiness"
	"github.com/imamik/podkeeper/internal/reconcile"
	"github.com/imamik/podkeeper/internal/state"
	podtest "github.com/imamik/podkeeper/internal/testing"
)

type harness struct {
	orch    *Orchestrator
	store   *state.Store
	clock   *podtest.SteppingClock
	metrics *Metrics
}

func newHarness(t *testing.T, provider Provider, cfg config.Config) *harness {
	t.Helper()
	h := &harness{
		store:   state.NewStore(filepath.Join(t.TempDir(), "state.json")),
		clock:   podtest.NewSteppingClock(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	h.orch = New(provider, cfg, WithStore(h.store), WithClock(h.clock), WithMetrics(h.metrics))
	return h
}

func (h *harness) seed(t *testing.T, rec *pod.Record) {
	t.Helper()
	require.NoError(t, h.store.Update(func(st *state.State) error {
		st.Put(rec)
		return nil
	}))
}

func (h *harness) stored(t *testing.T, name string) *pod.Record {
	t.Helper()
	st, err := h.store.Load()
	require.NoError(t, err)
	rec, ok := st.Get(name)
	require.True(t, ok, "no record for %s", name)
	return rec
}

func TestEnsureReadyPod_CreatesDevPod(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	provider.ReadyAfter = 2
	cfg := podtest.NewConfigBuilder().Build()
	h := newHarness(t, provider, cfg)
	start := h.clock.Now()

	p, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)

	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, "dev-pod", p.Name)
	assert.Equal(t, 10*time.Second, h.clock.Since(start))
	ssh, ok := p.SSHEndpoint()
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4:40001", ssh.String())
	jupyter, ok := p.JupyterEndpoint()
	require.True(t, ok)
	assert.Equal(t, "http://1.2.3.4:40002", jupyter)

	st, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())
	rec := h.stored(t, "dev-pod")
	assert.Equal(t, "p-1", rec.ID)
	assert.Equal(t, pod.StatusRunning, rec.Status)
	assert.Equal(t, "1.2.3.4", rec.PublicIP)
	assert.Equal(t, cfg.Pod.Fingerprint(), rec.Fingerprint)
	assert.Equal(t, cfg.Pod.Image, rec.Image)

	assert.Equal(t, 1, provider.Calls("CreatePod"))
	assert.Equal(t, 3, provider.Calls("GetPod"))
}

func TestEnsureReadyPod_Idempotent(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	h := newHarness(t, provider, podtest.NewConfigBuilder().Build())
	ctx := podtest.TestContext(t)

	first, err := h.orch.EnsureReadyPod(ctx)
	require.NoError(t, err)
	second, err := h.orch.EnsureReadyPod(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, provider.Calls("CreatePod"))
	assert.Equal(t, []string{"p-1"}, provider.Pods())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.ensures.WithLabelValues("create", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.ensures.WithLabelValues("do_nothing", "success")), 0)
}

func TestEnsureReadyPod_StartsStoppedPod(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	provider.Seed(&pod.Record{ID: "p-1", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusStopped}, 22, 8888)
	h := newHarness(t, provider, podtest.NewConfigBuilder().Build())
	h.seed(t, &pod.Record{ID: "p-1", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusStopped})

	p, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)

	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, 0, provider.Calls("CreatePod"))
	assert.Equal(t, 1, provider.Calls("SetDesiredStatus"))
	assert.Equal(t, pod.StatusRunning, h.stored(t, "dev-pod").Status)
}

func TestEnsureReadyPod_WaitsForProvisioningPod(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	provider.Seed(&pod.Record{ID: "p-1", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusRunning}, 22, 8888)
	h := newHarness(t, provider, podtest.NewConfigBuilder().WithRefresh(false).Build())
	h.seed(t, &pod.Record{ID: "p-1", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusProvisioning})

	p, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, 0, provider.Calls("CreatePod"))
	assert.Equal(t, 0, provider.Calls("SetDesiredStatus"))
}

func TestEnsureReadyPod_RecreatesDriftedPod(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	provider.Seed(&pod.Record{ID: "p-old", Name: "dev-pod", Image: "old:1", Status: pod.StatusRunning}, 22, 8888)
	h := newHarness(t, provider, podtest.NewConfigBuilder().WithMode(reconcile.ModeRecreate).Build())
	h.seed(t, &pod.Record{ID: "p-old", Name: "dev-pod", Image: "old:1", Status: pod.StatusRunning})

	p, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)

	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, []string{"p-1"}, provider.Pods(), "the drifted pod is terminated")
	assert.Equal(t, 1, provider.Calls("TerminatePod"))
	rec := h.stored(t, "dev-pod")
	assert.Equal(t, "p-1", rec.ID)
	assert.Equal(t, "runpod/pytorch:2.1", rec.Image)
}

func TestEnsureReadyPod_ReuseKeepsDriftedPod(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	provider.Seed(&pod.Record{ID: "p-old", Name: "dev-pod", Image: "old:1", Status: pod.StatusRunning}, 22, 8888)
	h := newHarness(t, provider, podtest.NewConfigBuilder().Build())
	h.seed(t, &pod.Record{ID: "p-old", Name: "dev-pod", Image: "old:1", Status: pod.StatusRunning})

	p, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "p-old", p.ID)
	assert.Equal(t, "old:1", p.Image)
	assert.Equal(t, 0, provider.Calls("TerminatePod"))
	assert.Equal(t, 0, provider.Calls("CreatePod"))
}

func TestEnsureReadyPod_ReplacesVanishedPod(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	h := newHarness(t, provider, podtest.NewConfigBuilder().Build())
	h.seed(t, &pod.Record{ID: "p-gone", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusRunning})

	p, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, 1, provider.Calls("CreatePod"))
}

func TestEnsureReadyPod_RefreshFailureKeepsStoredRecord(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	provider.Seed(&pod.Record{ID: "p-1", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusRunning}, 22, 8888)
	provider.GetErrs = []error{&runpod.APIError{Op: "get_pod", StatusCode: 503}}
	h := newHarness(t, provider, podtest.NewConfigBuilder().Build())
	h.seed(t, &pod.Record{ID: "p-1", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusRunning})

	p, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, 0, provider.Calls("CreatePod"))
}

func TestEnsureReadyPod_Timeout(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	provider.ReadyAfter = 1000
	cfg := podtest.NewConfigBuilder().WithTimeouts(30*time.Second, 5*time.Second).Build()
	h := newHarness(t, provider, cfg)

	_, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.Error(t, err)

	var pe *pod.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pod.KindTimeout, pe.Kind)
	assert.Equal(t, "p-1", pe.PodID)
	var te *readiness.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 35*time.Second, te.Elapsed)

	assert.Equal(t, []string{"p-1"}, provider.Pods(), "a pod that is not ready is left running")
	rec := h.stored(t, "dev-pod")
	assert.Equal(t, "p-1", rec.ID, "the created pod is recorded before waiting")
	assert.Equal(t, pod.StatusProvisioning, rec.Status)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.ensures.WithLabelValues("create", "timeout")), 0)
}

func TestEnsureReadyPod_ReusesRecordedRunningPod(t *testing.T) {
	t.Parallel()
	m := podtest.NewMockProvider().WithRunningPod("p-1", "5.6.7.8", map[int]int{22: 41022, 8888: 41888})
	h := newHarness(t, m, podtest.NewConfigBuilder().Build())
	h.seed(t, &pod.Record{ID: "p-1", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusRunning})

	p, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)

	cmd, ok := p.SSHCommand("root")
	require.True(t, ok)
	assert.Equal(t, "ssh -p 41022 root@5.6.7.8", cmd)
	m.AssertNotCalled(t, "CreatePod", mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "SetDesiredStatus", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "5.6.7.8", h.stored(t, "dev-pod").PublicIP)
}

func TestEnsureReadyPod_PodVanishesWhileWaiting(t *testing.T) {
	t.Parallel()
	m := podtest.NewMockProvider()
	m.On("CreatePod", mock.Anything, mock.Anything).Return(&pod.Record{ID: "p-1", Status: pod.StatusProvisioning}, nil)
	m.On("GetPod", mock.Anything, "p-1").Return(nil, &runpod.APIError{Op: "get_pod", StatusCode: 404}).Once()
	h := newHarness(t, m, podtest.NewConfigBuilder().Build())

	_, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	assert.True(t, pod.IsKind(err, pod.KindProviderTerminal), "got %v", err)
	m.AssertExpectations(t)
}

func TestEnsureReadyPod_CreateFailure(t *testing.T) {
	t.Parallel()
	m := podtest.NewMockProvider().WithCreateError(&runpod.APIError{Op: "create_pod", StatusCode: 500, Body: "boom"})
	h := newHarness(t, m, podtest.NewConfigBuilder().Build())

	_, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.Error(t, err)
	assert.Equal(t, pod.KindTransport, pod.KindOf(err))
	assert.Equal(t, `ensure pod "dev-pod": transport: create pod: runpod create_pod: status 500: boom`, err.Error())

	st, loadErr := h.store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, 0, st.Len())
}

func TestEnsureReadyPod_QuotaRejected(t *testing.T) {
	t.Parallel()
	m := podtest.NewMockProvider().WithCreateError(&runpod.APIError{Op: "create_pod", StatusCode: 400, Body: "quota exceeded"})
	h := newHarness(t, m, podtest.NewConfigBuilder().Build())

	_, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	assert.Equal(t, pod.KindProvider, pod.KindOf(err))
}

func TestEnsureReadyPod_CorruptState(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	h := newHarness(t, provider, podtest.NewConfigBuilder().Build())
	require.NoError(t, os.WriteFile(h.store.Path(), []byte("{not json"), 0o600))

	_, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	assert.Equal(t, pod.KindStorage, pod.KindOf(err))
	assert.Equal(t, 0, provider.Calls("CreatePod"), "a corrupt state file is never treated as empty")
}

func TestEnsureReadyPod_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := podtest.NewMockProvider()
	m.On("CreatePod", mock.Anything, mock.Anything).Return(nil, context.Canceled)
	h := newHarness(t, m, podtest.NewConfigBuilder().Build())

	_, err := h.orch.EnsureReadyPod(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, pod.KindCanceled, pod.KindOf(err))
}

func TestEnsureReadyPod_StartFailure(t *testing.T) {
	t.Parallel()
	m := podtest.NewMockProvider()
	m.On("GetPod", mock.Anything, "p-1").Return(&pod.Record{ID: "p-1", Status: pod.StatusExited}, nil)
	m.On("SetDesiredStatus", mock.Anything, "p-1", pod.StatusRunning).
		Return(nil, &runpod.TransportError{Op: "start_pod", Err: errors.New("connection refused")})
	h := newHarness(t, m, podtest.NewConfigBuilder().Build())
	h.seed(t, &pod.Record{ID: "p-1", Name: "dev-pod", Image: "runpod/pytorch:2.1", Status: pod.StatusStopped})

	_, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	var pe *pod.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pod.KindTransport, pe.Kind)
	assert.Equal(t, "p-1", pe.PodID)
	m.AssertExpectations(t)
}

func TestEnsureReadyPod_ReadinessMetrics(t *testing.T) {
	t.Parallel()
	provider := podtest.NewFakeProvider()
	provider.ReadyAfter = 2
	h := newHarness(t, provider, podtest.NewConfigBuilder().Build())

	_, err := h.orch.EnsureReadyPod(podtest.TestContext(t))
	require.NoError(t, err)

	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.ticks.WithLabelValues("provisioning")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.ticks.WithLabelValues("has_address")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.ticks.WithLabelValues("ready")), 0)
}

func TestNew_DefaultStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	o := New(podtest.NewFakeProvider(), podtest.NewConfigBuilder().WithStatePath(path).Build())
	assert.Equal(t, path, o.store.Path())
	assert.Equal(t, "dev-pod", o.Name())
}
