package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/podkeeper/internal/orchestration"
	"github.com/imamik/podkeeper/internal/state"
)

// Pods handles the pods command. It lists every pod of the account and
// marks those podkeeper tracks in the configured state file.
func Pods(ctx context.Context, opts Options) error {
	ctx, cfg, provider, err := openAccess(ctx, opts)
	if err != nil {
		return err
	}

	entries, err := orchestration.Inventory(ctx, provider, state.NewStore(cfg.StatePath))
	if err != nil {
		return err
	}
	printInventory(stdout, entries)
	return nil
}

// GPUs handles the gpus command.
func GPUs(ctx context.Context, opts Options) error {
	ctx, _, provider, err := openAccess(ctx, opts)
	if err != nil {
		return err
	}

	gpus, err := provider.ListGPUTypes(ctx)
	if err != nil {
		return fmt.Errorf("list GPU types: %w", err)
	}
	printGPUTypes(stdout, gpus)
	return nil
}
