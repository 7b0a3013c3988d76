package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/imamik/podkeeper/internal/pod"
)

// Default loop settings.
const (
	DefaultTimeout  = 300 * time.Second
	DefaultInterval = 5 * time.Second
)

// Phase is the readiness state of a pod as seen by one poll tick.
type Phase string

const (
	Provisioning Phase = "provisioning"
	HasAddress   Phase = "has_address"
	Ready        Phase = "ready"
	TimedOut     Phase = "timed_out"
	Failed       Phase = "failed"
)

// FetchFunc returns the live record of a pod.
type FetchFunc func(ctx context.Context, podID string) (*pod.Record, error)

// TickFunc observes the phase reached on each tick. Tick numbers start at 1.
type TickFunc func(tick int, phase Phase, elapsed time.Duration)

// Poller waits for pods to become ready.
type Poller struct {
	Fetch FetchFunc
	// Clock defaults to the real clock.
	Clock         clock.Clock
	Timeout       time.Duration
	Interval      time.Duration
	RequiredPorts []int
	OnTick        TickFunc
}

// Evaluate classifies a fetched record. A running pod with a public IP and
// every required port mapped has an address; anything short of that is
// still provisioning unless the pod was terminated.
func Evaluate(rec *pod.Record, requiredPorts []int) Phase {
	switch {
	case rec == nil:
		return Provisioning
	case rec.Status.IsTerminal():
		return Failed
	case rec.Status != pod.StatusRunning:
		return Provisioning
	case rec.PublicIP == "" || !rec.HasPorts(requiredPorts):
		return Provisioning
	default:
		return HasAddress
	}
}

// WaitUntilReady polls podID until it is ready and returns the last fetched
// record. The first fetch happens immediately. Before each later fetch the
// elapsed time is checked against the timeout, so a timeout is reported
// after the deadline and at most one interval late.
//
// Transient fetch errors count as not ready yet. A pod that no longer exists
// or was terminated ends the wait with a *TerminalError. Context
// cancellation ends it with the context's error.
func (p *Poller) WaitUntilReady(ctx context.Context, podID string) (*pod.Record, error) {
	if p.Fetch == nil {
		return nil, errors.New("readiness: no fetch function")
	}
	clk := p.clock()
	timeout, interval := p.Timeout, p.Interval
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := logr.FromContextOrDiscard(ctx).WithValues("podID", podID)

	start := clk.Now()
	for tick := 1; ; tick++ {
		elapsed := clk.Since(start)
		if elapsed > timeout {
			p.observe(tick, TimedOut, elapsed)
			return nil, &TimeoutError{PodID: podID, Elapsed: elapsed}
		}

		rec, err := p.Fetch(ctx, podID)
		phase := Provisioning
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, pod.ErrNotFound):
			p.observe(tick, Failed, elapsed)
			return nil, &TerminalError{PodID: podID, Reason: "no longer exists", Err: err}
		case err != nil && !isTransient(err):
			return nil, fmt.Errorf("fetch pod %s: %w", podID, err)
		case err != nil:
			logger.V(1).Info("Pod status unavailable, retrying", "tick", tick, "error", err.Error())
		default:
			phase = Evaluate(rec, p.RequiredPorts)
		}

		switch phase {
		case Failed:
			p.observe(tick, Failed, elapsed)
			return nil, &TerminalError{PodID: podID, Reason: "was terminated"}
		case HasAddress:
			p.observe(tick, HasAddress, elapsed)
			p.observe(tick, Ready, elapsed)
			logger.V(1).Info("Pod ready", "tick", tick, "elapsed", elapsed.String(), "publicIP", rec.PublicIP)
			return rec, nil
		}

		p.observe(tick, phase, elapsed)
		logger.V(1).Info("Waiting for pod", "tick", tick, "phase", string(phase), "elapsed", elapsed.String())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clk.After(interval):
		}
	}
}

func (p *Poller) clock() clock.Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return clock.RealClock{}
}

func (p *Poller) observe(tick int, phase Phase, elapsed time.Duration) {
	if p.OnTick != nil {
		p.OnTick(tick, phase, elapsed)
	}
}

// isTransient reports whether a fetch error may clear on its own. Errors
// classified as semantic provider or config failures will not.
func isTransient(err error) bool {
	switch pod.KindOf(err) {
	case pod.KindProvider, pod.KindConfig, pod.KindStorage:
		return false
	}
	return true
}
