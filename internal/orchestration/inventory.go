package orchestration

import (
	"context"
	"fmt"

	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/state"
)

// InventoryEntry is one pod of the account.
type InventoryEntry struct {
	Pod *pod.Record
	// Tracked is the logical name the pod is recorded under, or empty.
	Tracked string
}

// Inventory lists every pod of the account and marks those recorded in
// store. Recorded pods missing from the account are not reported.
func Inventory(ctx context.Context, provider Provider, store *state.Store) ([]InventoryEntry, error) {
	st, err := store.Load()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, st.Len())
	for _, name := range st.Names() {
		if rec, ok := st.Get(name); ok {
			byID[rec.ID] = name
		}
	}

	pods, err := provider.ListPods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	out := make([]InventoryEntry, 0, len(pods))
	for _, p := range pods {
		out = append(out, InventoryEntry{Pod: p, Tracked: byID[p.ID]})
	}
	return out, nil
}
