package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"
	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podkeeper/internal/config"
	"github.com/imamik/podkeeper/internal/orchestration"
	"github.com/imamik/podkeeper/internal/platform/runpod"
	"github.com/imamik/podkeeper/internal/pod"
	podtest "github.com/imamik/podkeeper/internal/testing"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// withFakes points every factory at provider and the given configs and
// captures stdout. The originals are restored when the test ends.
func withFakes(t *testing.T, provider orchestration.Provider, cfgs ...config.Config) *bytes.Buffer {
	t.Helper()
	origEnv := loadEnvConfig
	origAccess := loadEnvAccessConfig
	origFile := loadFileConfig
	origProvider := newProvider
	origLogger := newLogger
	origOut := stdout
	origInteractive := isInteractive
	origConfirm := confirm
	t.Cleanup(func() {
		loadEnvConfig = origEnv
		loadEnvAccessConfig = origAccess
		loadFileConfig = origFile
		newProvider = origProvider
		newLogger = origLogger
		stdout = origOut
		isInteractive = origInteractive
		confirm = origConfirm
	})

	ptrs := make([]*config.Config, len(cfgs))
	for i := range cfgs {
		ptrs[i] = &cfgs[i]
	}
	loadEnvConfig = func() (*config.Config, error) { return ptrs[0], nil }
	loadEnvAccessConfig = func() (*config.Config, error) { return ptrs[0], nil }
	loadFileConfig = func(string) ([]*config.Config, error) { return ptrs, nil }
	newProvider = func(*config.Config, logr.Logger, *runpod.Metrics) orchestration.Provider { return provider }
	newLogger = func(bool) (logr.Logger, error) { return logr.Discard(), nil }
	isInteractive = func() bool { return false }
	confirm = func(string) (bool, error) { return false, errors.New("unexpected prompt") }

	var buf bytes.Buffer
	stdout = &buf
	return &buf
}

func testConfig(t *testing.T, name string) config.Config {
	t.Helper()
	return podtest.NewConfigBuilder().
		WithName(name).
		WithStatePath(filepath.Join(t.TempDir(), "state.json")).
		Build()
}

func sharedConfigs(t *testing.T, names ...string) []config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	out := make([]config.Config, 0, len(names))
	for _, name := range names {
		out = append(out, podtest.NewConfigBuilder().WithName(name).WithStatePath(path).Build())
	}
	return out
}

func TestEnsure(t *testing.T) {
	provider := podtest.NewFakeProvider()
	out := withFakes(t, provider, testConfig(t, "dev-pod"))

	err := Ensure(context.Background(), Options{}, EnsureOptions{})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "dev-pod")
	assert.Contains(t, out.String(), "ssh -p 40001 root@1.2.3.4")
	assert.Contains(t, out.String(), "http://1.2.3.4:40002")
	assert.Contains(t, out.String(), "22 -> 1.2.3.4:40001, 8888 -> 1.2.3.4:40002")
	assert.Equal(t, 1, provider.Calls("CreatePod"))
}

func TestEnsure_ConfigFile(t *testing.T) {
	provider := podtest.NewFakeProvider()
	out := withFakes(t, provider, sharedConfigs(t, "dev-pod", "train-pod")...)

	err := Ensure(context.Background(), Options{ConfigPath: "pods.yaml"}, EnsureOptions{Parallel: 2})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "dev-pod")
	assert.Contains(t, out.String(), "train-pod")
	assert.Equal(t, 2, provider.Calls("CreatePod"))
}

func TestEnsure_SelectedPod(t *testing.T) {
	provider := podtest.NewFakeProvider()
	out := withFakes(t, provider, sharedConfigs(t, "dev-pod", "train-pod")...)

	err := Ensure(context.Background(), Options{ConfigPath: "pods.yaml", Pods: []string{"train-pod"}}, EnsureOptions{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "train-pod")
	assert.NotContains(t, out.String(), "dev-pod")
	assert.Equal(t, 1, provider.Calls("CreatePod"))

	err = Ensure(context.Background(), Options{ConfigPath: "pods.yaml", Pods: []string{"eval-pod"}}, EnsureOptions{})
	assert.ErrorContains(t, err, `pod "eval-pod" is not configured`)
	assert.Equal(t, 2, ExitCode(err))

	err = Ensure(context.Background(), Options{Pods: []string{"eval-pod"}}, EnsureOptions{})
	assert.ErrorContains(t, err, `RUNPOD_POD_NAME is "dev-pod"`)
	assert.Equal(t, 2, ExitCode(err))
}

func TestEnsure_UnreadableConfigFile(t *testing.T) {
	withFakes(t, podtest.NewFakeProvider(), testConfig(t, "dev-pod"))
	loadFileConfig = config.LoadFile

	err := Ensure(context.Background(), Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}, EnsureOptions{})
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestEnsure_ConfigError(t *testing.T) {
	withFakes(t, podtest.NewFakeProvider(), testConfig(t, "dev-pod"))
	loadEnvConfig = func() (*config.Config, error) {
		return nil, &config.ConfigError{Key: config.EnvAPIKey, Reason: "is required"}
	}

	err := Ensure(context.Background(), Options{}, EnsureOptions{})
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestEnsure_Failure(t *testing.T) {
	provider := podtest.NewFakeProvider()
	provider.CreateErr = &runpod.APIError{Op: "create_pod", StatusCode: 400, Body: "quota exceeded"}
	withFakes(t, provider, testConfig(t, "dev-pod"))

	err := Ensure(context.Background(), Options{}, EnsureOptions{})
	require.Error(t, err)
	assert.Equal(t, pod.KindProvider, pod.KindOf(err))
	assert.Equal(t, 1, ExitCode(err))
}

func TestEnsure_Watch(t *testing.T) {
	provider := podtest.NewFakeProvider()
	out := withFakes(t, provider, testConfig(t, "dev-pod"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := Ensure(ctx, Options{}, EnsureOptions{Watch: true, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.Calls("CreatePod"), "later rounds reuse the pod")
	assert.Contains(t, out.String(), "ssh -p 40001 root@1.2.3.4")
}

func TestEnsure_WatchNeedsInterval(t *testing.T) {
	withFakes(t, podtest.NewFakeProvider(), testConfig(t, "dev-pod"))
	err := Ensure(context.Background(), Options{}, EnsureOptions{Watch: true})
	assert.ErrorContains(t, err, "--interval")
}

func TestServeMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "podkeeper_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	addr, stop, err := serveMetrics("127.0.0.1:0", reg, logr.Discard())
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "podkeeper_test_total 1")

	resp, err = http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	provider := podtest.NewFakeProvider()
	out := withFakes(t, provider, testConfig(t, "dev-pod"))

	require.NoError(t, Status(context.Background(), Options{}))
	assert.Contains(t, out.String(), "dev-pod")
	assert.Contains(t, out.String(), "next:")
	assert.Contains(t, out.String(), "create")

	out.Reset()
	require.NoError(t, Ensure(context.Background(), Options{}, EnsureOptions{}))
	out.Reset()
	require.NoError(t, Status(context.Background(), Options{}))
	assert.Contains(t, out.String(), "p-1 running 1.2.3.4")
	assert.Contains(t, out.String(), "do_nothing p-1")
}

func TestStop(t *testing.T) {
	provider := podtest.NewFakeProvider()
	out := withFakes(t, provider, testConfig(t, "dev-pod"))
	require.NoError(t, Ensure(context.Background(), Options{}, EnsureOptions{}))
	out.Reset()

	require.NoError(t, Stop(context.Background(), Options{}))
	assert.Contains(t, out.String(), "p-1")
	assert.Contains(t, out.String(), "stopped")
}

func TestStop_NothingRecorded(t *testing.T) {
	withFakes(t, podtest.NewFakeProvider(), testConfig(t, "dev-pod"))
	err := Stop(context.Background(), Options{})
	assert.ErrorIs(t, err, orchestration.ErrNotRecorded)
}

func TestTerminate(t *testing.T) {
	provider := podtest.NewFakeProvider()
	out := withFakes(t, provider, testConfig(t, "dev-pod"))
	require.NoError(t, Ensure(context.Background(), Options{}, EnsureOptions{}))

	err := Terminate(context.Background(), Options{}, false)
	assert.ErrorContains(t, err, "--yes")
	assert.Equal(t, []string{"p-1"}, provider.Pods())

	isInteractive = func() bool { return true }
	confirm = func(string) (bool, error) { return false, nil }
	out.Reset()
	require.NoError(t, Terminate(context.Background(), Options{}, false))
	assert.Contains(t, out.String(), "skipped")
	assert.Equal(t, []string{"p-1"}, provider.Pods())

	out.Reset()
	require.NoError(t, Terminate(context.Background(), Options{}, true))
	assert.Contains(t, out.String(), "terminated")
	assert.Empty(t, provider.Pods())
}

func TestForget(t *testing.T) {
	provider := podtest.NewFakeProvider()
	out := withFakes(t, provider, testConfig(t, "dev-pod"))
	require.NoError(t, Ensure(context.Background(), Options{}, EnsureOptions{}))

	out.Reset()
	require.NoError(t, Forget(context.Background(), Options{}))
	assert.Contains(t, out.String(), "forgotten")
	assert.Equal(t, []string{"p-1"}, provider.Pods())

	out.Reset()
	require.NoError(t, Forget(context.Background(), Options{}))
	assert.Contains(t, out.String(), "nothing recorded")
}

func TestPods(t *testing.T) {
	provider := podtest.NewFakeProvider()
	provider.Seed(&pod.Record{ID: "p-other", Name: "notebook", Status: pod.StatusStopped})
	out := withFakes(t, provider, testConfig(t, "dev-pod"))
	require.NoError(t, Ensure(context.Background(), Options{}, EnsureOptions{}))

	out.Reset()
	require.NoError(t, Pods(context.Background(), Options{}))
	assert.Contains(t, out.String(), "p-1")
	assert.Contains(t, out.String(), "dev-pod")
	assert.Contains(t, out.String(), "p-other")
	assert.Contains(t, out.String(), "untracked")
}

func TestGPUs(t *testing.T) {
	out := withFakes(t, podtest.NewFakeProvider(), testConfig(t, "dev-pod"))

	require.NoError(t, GPUs(context.Background(), Options{}))
	assert.Contains(t, out.String(), "NVIDIA A40")
	assert.Contains(t, out.String(), "4 available")
	assert.Contains(t, out.String(), "secure,community")
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "config", err: &config.ConfigError{Key: "k"}, want: 2},
		{name: "timeout", err: &pod.Error{Kind: pod.KindTimeout}, want: 3},
		{name: "canceled", err: context.Canceled, want: 130},
		{name: "other", err: errors.New("boom"), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
