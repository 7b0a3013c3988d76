package reconcile

import (
	"fmt"
	"strings"

	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/state"
)

// Mode controls how an existing pod that no longer matches the desired
// spec is handled.
type Mode string

const (
	// ModeReuse keeps any non-terminated pod, whatever its image.
	ModeReuse Mode = "reuse"
	// ModeRecreate replaces a pod whose image or spec drifted.
	ModeRecreate Mode = "recreate"
)

// ParseMode parses "reuse" or "recreate", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeReuse, ModeRecreate:
		return m, nil
	}
	return "", fmt.Errorf("expected %q or %q, got %q", ModeReuse, ModeRecreate, s)
}

// ActionType is the kind of step the orchestrator must take.
type ActionType string

const (
	DoNothing ActionType = "do_nothing"
	Start     ActionType = "start"
	Create    ActionType = "create"
)

// Action is the single planned step for one logical pod. PodID is set for
// DoNothing and Start. Replaces is set only for a Create that supersedes a
// drifted pod, which must be terminated first.
type Action struct {
	Type     ActionType
	PodID    string
	Replaces string
}

func (a Action) String() string {
	switch {
	case a.Type == Create && a.Replaces != "":
		return fmt.Sprintf("create (replaces %s)", a.Replaces)
	case a.Type == Create:
		return "create"
	default:
		return fmt.Sprintf("%s %s", a.Type, a.PodID)
	}
}

// Reconciler decides what to do for a logical pod given the persisted state.
// It is pure: no network access and no mutation of its inputs.
type Reconciler struct {
	Mode Mode
}

// New returns a Reconciler for mode.
func New(mode Mode) *Reconciler {
	return &Reconciler{Mode: mode}
}

// Reconcile plans the action for desired.
//
//   - no record, or a terminated one: Create
//   - recreate mode and the stored pod drifted: Create replacing it
//   - running or provisioning: DoNothing
//   - stopped or exited: Start
func (r *Reconciler) Reconcile(st *state.State, desired pod.Spec) Action {
	return r.plan(st, desired.Name, desired.Image, desired.Fingerprint())
}

// ReconcileName plans by name and image alone. Drift is judged on the
// image only.
func (r *Reconciler) ReconcileName(st *state.State, name, image string) Action {
	return r.plan(st, name, image, "")
}

func (r *Reconciler) plan(st *state.State, name, image, fingerprint string) Action {
	var rec *pod.Record
	if st != nil {
		rec, _ = st.Get(name)
	}
	if rec == nil || rec.Status == pod.StatusTerminated {
		return Action{Type: Create}
	}

	if r.Mode == ModeRecreate && drifted(rec, image, fingerprint) {
		return Action{Type: Create, Replaces: rec.ID}
	}

	if rec.Status.IsStartable() {
		return Action{Type: Start, PodID: rec.ID}
	}
	return Action{Type: DoNothing, PodID: rec.ID}
}

// Drifted reports whether rec was created from something other than spec:
// a different image, or a different fingerprint when the record has one.
func Drifted(rec *pod.Record, spec pod.Spec) bool {
	return drifted(rec, spec.Image, spec.Fingerprint())
}

func drifted(rec *pod.Record, image, fingerprint string) bool {
	if rec.Image != image {
		return true
	}
	return rec.Fingerprint != "" && fingerprint != "" && rec.Fingerprint != fingerprint
}
