// Package orchestration ensures that a logical pod exists, is running and is
// reachable.
//
// It composes the state store, the reconciler, the RunPod transport and the
// readiness poller into a single flow per logical pod name.
//
// # Workflow
//
// [Orchestrator.EnsureReadyPod] runs these steps in order:
//  1. Load the persisted state (a missing file is empty state)
//  2. Refresh the stored record from the provider, when enabled
//  3. Plan one action: do nothing, start, or create
//  4. Execute it; a created pod is recorded before waiting
//  5. Wait for the pod to be running with its ports mapped
//  6. Persist the refreshed record and return its endpoints
//
// # Usage
//
//	orch := orchestration.New(client, cfg)
//	p, err := orch.EnsureReadyPod(ctx)
//	if err != nil {
//	    return err
//	}
//	cmd, _ := p.SSHCommand("root")
//
// Ensure is idempotent: a second call right after a successful one plans no
// action and returns the same pod. A pod that fails to become ready is left
// in place for inspection.
package orchestration
