package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/reconcile"
	"github.com/imamik/podkeeper/internal/state"
)

// Status is the stored and live view of a logical pod.
type Status struct {
	Name string
	// Stored is nil when nothing is recorded for the name.
	Stored *pod.Record
	// Live is nil when nothing is recorded or the provider no longer knows
	// the pod.
	Live *pod.Record
	// Drifted reports whether the stored pod differs from the desired spec.
	Drifted bool
	// Next is the action an ensure run would take now.
	Next reconcile.Action
}

// Status reports the stored record, its live counterpart and the action
// EnsureReadyPod would plan. Nothing is written.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	name := o.spec.Name
	st, err := o.store.Load()
	if err != nil {
		return nil, pod.Wrap(err, name, "")
	}

	out := &Status{Name: name}
	rec, ok := st.Get(name)
	if ok {
		out.Stored = rec.Clone()
		out.Drifted = reconcile.Drifted(rec, o.spec)

		live, err := o.provider.GetPod(ctx, rec.ID)
		switch {
		case err == nil:
			out.Live = live
			rec.Observe(live, o.now())
		case errors.Is(err, pod.ErrNotFound):
			rec.Status = pod.StatusTerminated
		default:
			return nil, pod.Wrap(fmt.Errorf("get pod: %w", err), name, rec.ID)
		}
		st.Put(rec)
	}

	out.Next = o.reconciler.Reconcile(st, o.spec)
	return out, nil
}

// Stop stops the recorded pod and records the new status. The pod keeps
// its volume and can be started by the next ensure run.
func (o *Orchestrator) Stop(ctx context.Context) (*pod.Record, error) {
	name := o.spec.Name
	rec, err := o.recorded()
	if err != nil {
		return nil, err
	}

	res, err := o.provider.SetDesiredStatus(ctx, rec.ID, pod.StatusStopped)
	if err != nil {
		return nil, pod.Wrap(fmt.Errorf("stop pod: %w", err), name, rec.ID)
	}
	logr.FromContextOrDiscard(ctx).Info("Stopped pod", "pod", name, "podID", rec.ID)

	status := pod.StatusStopped
	if res != nil && res.Status.IsStartable() {
		status = res.Status
	}
	out, err := o.updateRecord(rec, func(r *pod.Record) {
		r.Status = status
		r.PublicIP = ""
		r.Ports = nil
	})
	return out, pod.Wrap(err, name, rec.ID)
}

// Terminate terminates the recorded pod and marks it terminated, so the
// next ensure run creates a new one. A pod the provider no longer knows
// counts as terminated.
func (o *Orchestrator) Terminate(ctx context.Context) (*pod.Record, error) {
	name := o.spec.Name
	rec, err := o.recorded()
	if err != nil {
		return nil, err
	}

	if err := o.provider.TerminatePod(ctx, rec.ID); err != nil && !errors.Is(err, pod.ErrNotFound) {
		return nil, pod.Wrap(fmt.Errorf("terminate pod: %w", err), name, rec.ID)
	}
	logr.FromContextOrDiscard(ctx).Info("Terminated pod", "pod", name, "podID", rec.ID)

	out, err := o.updateRecord(rec, func(r *pod.Record) {
		r.Status = pod.StatusTerminated
		r.PublicIP = ""
		r.Ports = nil
	})
	return out, pod.Wrap(err, name, rec.ID)
}

// Forget deletes the local record without touching the provider. It
// reports whether a record existed.
func (o *Orchestrator) Forget() (bool, error) {
	var existed bool
	err := o.store.Update(func(st *state.State) error {
		existed = st.Delete(o.spec.Name)
		return nil
	})
	return existed, pod.Wrap(err, o.spec.Name, "")
}

// recorded returns the stored record or a *pod.Error wrapping ErrNotRecorded.
func (o *Orchestrator) recorded() (*pod.Record, error) {
	st, err := o.store.Load()
	if err != nil {
		return nil, pod.Wrap(err, o.spec.Name, "")
	}
	rec, ok := st.Get(o.spec.Name)
	if !ok {
		return nil, pod.Wrap(ErrNotRecorded, o.spec.Name, "")
	}
	return rec, nil
}

// updateRecord applies fn to the stored record of rec's pod and saves it.
// A record that was replaced in the meantime is left alone; the returned
// record is then rec with fn applied, so callers always learn the outcome
// for the pod they acted on.
func (o *Orchestrator) updateRecord(rec *pod.Record, fn func(*pod.Record)) (*pod.Record, error) {
	var out *pod.Record
	err := o.store.Update(func(st *state.State) error {
		cur, ok := st.Get(o.spec.Name)
		if !ok || cur.ID != rec.ID {
			return nil
		}
		fn(cur)
		cur.UpdatedAt = o.now()
		st.Put(cur)
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = rec.Clone()
		fn(out)
		out.UpdatedAt = o.now()
	}
	return out, nil
}
