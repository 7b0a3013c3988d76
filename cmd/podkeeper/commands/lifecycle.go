package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/podkeeper/cmd/podkeeper/handlers"
)

// Stop returns the stop command.
func Stop(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the pod, keeping its volume",
		Long: `Stop stops the recorded pod. GPU billing ends but the volume is kept,
and the next ensure starts the same pod again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Stop(cmd.Context(), *opts)
		},
	}
}

// Terminate returns the terminate command.
func Terminate(opts *handlers.Options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "terminate",
		Short: "Terminate the pod and delete its volume",
		Long: `Terminate deletes the recorded pod on RunPod. The next ensure creates a
new one.

WARNING: This operation is irreversible. Data on the pod volume is lost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Terminate(cmd.Context(), *opts, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// Forget returns the forget command.
func Forget(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Remove the pod from the state file",
		Long: `Forget drops the local record of the pod without touching RunPod.

The pod keeps running and billing. Use "podkeeper pods" to find it again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Forget(cmd.Context(), *opts)
		},
	}
}
