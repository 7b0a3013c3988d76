package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imamik/podkeeper/internal/orchestration"
	"github.com/imamik/podkeeper/internal/pod"
)

// EnsureOptions are the flags of the ensure command.
type EnsureOptions struct {
	// Watch re-runs ensure every Interval until interrupted.
	Watch    bool
	Interval time.Duration
	// MetricsAddr serves Prometheus metrics in watch mode when set.
	MetricsAddr string
	// Parallel bounds how many pods are ensured at once. Zero means all.
	Parallel int
}

// Ensure handles the ensure command.
//
// It makes every selected pod exist, run and be reachable, then prints how
// to connect. In watch mode failures are logged and retried at the next
// interval, and the command only returns when the context is cancelled.
func Ensure(ctx context.Context, opts Options, eo EnsureOptions) error {
	var (
		reg        *prometheus.Registry
		registerer prometheus.Registerer
	)
	if eo.Watch {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = reg
	}

	s, err := open(ctx, opts, registerer)
	if err != nil {
		return err
	}
	if !eo.Watch {
		return ensureOnce(s, eo.Parallel)
	}

	if eo.Interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	if eo.MetricsAddr != "" {
		addr, stop, err := serveMetrics(eo.MetricsAddr, reg, s.logger)
		if err != nil {
			return err
		}
		defer stop()
		s.logger.Info("Serving metrics", "address", "http://"+addr+"/metrics")
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-timer.C:
		}
		if err := ensureOnce(s, eo.Parallel); err != nil {
			s.logger.Error(err, "Ensure failed, retrying at the next interval", "interval", eo.Interval.String())
		}
		timer.Reset(eo.Interval)
	}
}

func ensureOnce(s *session, parallel int) error {
	if len(s.orchs) == 1 {
		p, err := s.orchs[0].EnsureReadyPod(s.ctx)
		if err != nil {
			return err
		}
		printResolved(stdout, p)
		return nil
	}

	ready, err := orchestration.EnsureAll(s.ctx, s.orchs, parallel)
	for _, o := range s.orchs {
		if p, ok := ready[o.Name()]; ok {
			printResolved(stdout, p)
		}
	}
	return err
}

// serveMetrics serves reg on /metrics and returns the bound address and a
// function that shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger logr.Logger) (string, func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Metrics server stopped")
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return ln.Addr().String(), stop, nil
}

// ExitCode maps an error to the process exit status: 2 for configuration
// errors, 3 for readiness timeouts, 130 for interruption and 1 otherwise.
func ExitCode(err error) int {
	switch pod.KindOf(err) {
	case "":
		return 0
	case pod.KindConfig:
		return 2
	case pod.KindTimeout:
		return 3
	case pod.KindCanceled:
		return 130
	default:
		return 1
	}
}
