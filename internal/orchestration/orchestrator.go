package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/imamik/podkeeper/internal/config"
	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/readiness"
	"github.com/imamik/podkeeper/internal/reconcile"
	"github.com/imamik/podkeeper/internal/state"
)

// ErrNotRecorded is returned by operations that need a stored record when
// the logical pod has none.
var ErrNotRecorded = errors.New("no pod recorded")

// Orchestrator manages one logical pod.
type Orchestrator struct {
	provider   Provider
	store      *state.Store
	reconciler *reconcile.Reconciler
	clock      clock.Clock
	metrics    *Metrics

	spec         pod.Spec
	sshPort      int
	refresh      bool
	readyTimeout time.Duration
	pollInterval time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore shares a state store between orchestrators. By default each
// orchestrator opens the store at the configured state path.
func WithStore(s *state.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithClock replaces the clock used for polling and timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithMetrics records ensure outcomes.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an orchestrator for the pod described by cfg.
func New(provider Provider, cfg config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:     provider,
		reconciler:   reconcile.New(cfg.ReconcileMode),
		clock:        clock.RealClock{},
		spec:         cfg.Pod,
		sshPort:      cfg.SSHPort,
		refresh:      cfg.RefreshBeforePlan,
		readyTimeout: cfg.ReadyTimeout,
		pollInterval: cfg.PollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = state.NewStore(cfg.StatePath)
	}
	return o
}

// Name returns the logical pod name.
func (o *Orchestrator) Name() string {
	return o.spec.Name
}

// EnsureReadyPod makes sure the logical pod exists and is running, waits
// until it is reachable and returns its endpoints. Every failure is a
// *pod.Error naming the logical pod and, once known, the provider pod ID.
func (o *Orchestrator) EnsureReadyPod(ctx context.Context) (_ *pod.Resolved, err error) {
	name := o.spec.Name
	logger := logr.FromContextOrDiscard(ctx).WithValues("pod", name, "runID", uuid.NewString())
	ctx = logr.NewContext(ctx, logger)

	start := o.clock.Now()
	var action reconcile.Action
	defer func() {
		o.metrics.observeEnsure(action.Type, err, o.clock.Since(start))
	}()

	st, err := o.store.Load()
	if err != nil {
		return nil, pod.Wrap(err, name, "")
	}

	if rec, ok := st.Get(name); ok && o.refresh && !rec.Status.IsTerminal() {
		rec, err = o.refreshRecord(ctx, rec)
		if err != nil {
			return nil, pod.Wrap(err, name, rec.ID)
		}
		st.Put(rec)
	}

	if rec, ok := st.Get(name); ok && !rec.Status.IsTerminal() &&
		o.reconciler.Mode == reconcile.ModeReuse && reconcile.Drifted(rec, o.spec) {
		logger.Info("Stored pod differs from the desired spec, reusing it anyway", "podID", rec.ID, "image", rec.Image)
	}

	action = o.reconciler.Reconcile(st, o.spec)
	logger.Info("Planned action", "action", action.String())

	podID, err := o.execute(ctx, action)
	if err != nil {
		return nil, pod.Wrap(err, name, podID)
	}

	live, err := o.poller().WaitUntilReady(ctx, podID)
	if err != nil {
		return nil, pod.Wrap(err, name, podID)
	}

	final, err := o.persistReady(podID, live)
	if err != nil {
		return nil, pod.Wrap(err, name, podID)
	}

	logger.Info("Pod ready", "podID", podID, "publicIP", final.PublicIP, "elapsed", o.clock.Since(start).String())
	return pod.NewResolved(final, o.sshPort), nil
}

// refreshRecord overwrites the stored observation with the live one. A pod
// the provider no longer knows is marked terminated. Other lookup failures
// keep the stored record; only cancellation is returned.
func (o *Orchestrator) refreshRecord(ctx context.Context, rec *pod.Record) (*pod.Record, error) {
	logger := logr.FromContextOrDiscard(ctx)
	live, err := o.provider.GetPod(ctx, rec.ID)
	switch {
	case err == nil:
		rec.Observe(live, o.now())
	case errors.Is(err, pod.ErrNotFound):
		logger.Info("Stored pod no longer exists", "podID", rec.ID)
		rec.Status = pod.StatusTerminated
		rec.PublicIP = ""
		rec.Ports = nil
		rec.UpdatedAt = o.now()
	case ctx.Err() != nil:
		return rec, ctx.Err()
	default:
		logger.Info("Could not refresh stored pod, using the stored record", "podID", rec.ID, "error", err.Error())
	}
	return rec, nil
}

// execute carries out action and returns the pod to wait for.
func (o *Orchestrator) execute(ctx context.Context, action reconcile.Action) (string, error) {
	logger := logr.FromContextOrDiscard(ctx)

	switch action.Type {
	case reconcile.Create:
		if action.Replaces != "" {
			if err := o.terminate(ctx, action.Replaces); err != nil {
				return action.Replaces, fmt.Errorf("terminate replaced pod: %w", err)
			}
			logger.Info("Terminated drifted pod", "podID", action.Replaces)
		}
		return o.create(ctx)

	case reconcile.Start:
		if _, err := o.provider.SetDesiredStatus(ctx, action.PodID, pod.StatusRunning); err != nil {
			return action.PodID, fmt.Errorf("start pod: %w", err)
		}
		logger.Info("Started pod", "podID", action.PodID)
		return action.PodID, nil

	default:
		return action.PodID, nil
	}
}

// create provisions a new pod and records it before any waiting, so an
// interrupted run still knows the pod exists.
func (o *Orchestrator) create(ctx context.Context) (string, error) {
	created, err := o.provider.CreatePod(ctx, o.spec)
	if err != nil {
		return "", fmt.Errorf("create pod: %w", err)
	}

	now := o.now()
	rec := created.Clone()
	rec.Name = o.spec.Name
	if rec.Image == "" {
		rec.Image = o.spec.Image
	}
	if rec.Status == "" || rec.Status.IsTerminal() {
		rec.Status = pod.StatusProvisioning
	}
	rec.Fingerprint = o.spec.Fingerprint()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	logr.FromContextOrDiscard(ctx).Info("Created pod", "podID", rec.ID)
	if err := o.store.Update(func(st *state.State) error {
		st.Put(rec)
		return nil
	}); err != nil {
		return rec.ID, err
	}
	return rec.ID, nil
}

// terminate terminates id and records it. A pod that is already gone counts
// as terminated.
func (o *Orchestrator) terminate(ctx context.Context, id string) error {
	if err := o.provider.TerminatePod(ctx, id); err != nil && !errors.Is(err, pod.ErrNotFound) {
		return err
	}
	return o.store.Update(func(st *state.State) error {
		rec, ok := st.Get(o.spec.Name)
		if !ok || rec.ID != id {
			return nil
		}
		rec.Status = pod.StatusTerminated
		rec.PublicIP = ""
		rec.Ports = nil
		rec.UpdatedAt = o.now()
		st.Put(rec)
		return nil
	})
}

// persistReady stores the ready observation of podID under the logical name.
func (o *Orchestrator) persistReady(podID string, live *pod.Record) (*pod.Record, error) {
	var out *pod.Record
	err := o.store.Update(func(st *state.State) error {
		now := o.now()
		rec, ok := st.Get(o.spec.Name)
		if !ok || rec.ID != podID {
			rec = &pod.Record{ID: podID, Name: o.spec.Name, Image: o.spec.Image, CreatedAt: now}
		}
		rec.Observe(live, now)
		st.Put(rec)
		out = rec
		return nil
	})
	return out, err
}

func (o *Orchestrator) poller() *readiness.Poller {
	return &readiness.Poller{
		Fetch:         o.provider.GetPod,
		Clock:         o.clock,
		Timeout:       o.readyTimeout,
		Interval:      o.pollInterval,
		RequiredPorts: o.spec.PortNumbers(),
		OnTick: func(_ int, phase readiness.Phase, _ time.Duration) {
			o.metrics.observeTick(phase)
		},
	}
}

func (o *Orchestrator) now() time.Time {
	return o.clock.Now().UTC()
}
