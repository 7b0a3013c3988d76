package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/podkeeper/cmd/podkeeper/handlers"
)

// Pods returns the pods command.
func Pods(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "pods",
		Short: "List all pods of the account",
		Long: `Pods lists every pod of the RunPod account and shows which logical
name in the state file tracks it. Untracked pods still bill.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Pods(cmd.Context(), *opts)
		},
	}
}

// GPUs returns the gpus command.
func GPUs(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "gpus",
		Short: "List GPU types and their availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.GPUs(cmd.Context(), *opts)
		},
	}
}
