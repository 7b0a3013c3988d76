package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/podkeeper/cmd/podkeeper/handlers"
)

// Ensure returns the ensure command.
//
// The ensure command is the main entry point: it reconciles each selected
// pod against its stored record, creates or starts it when needed, waits
// until it is reachable and prints how to connect.
func Ensure(opts *handlers.Options) *cobra.Command {
	var eo handlers.EnsureOptions

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Make sure the pod exists, runs and is reachable",
		Long: `Ensure brings each configured pod to a ready state.

For every logical pod it:
  - refreshes the stored record from RunPod
  - reuses a running pod, starts a stopped one or creates a new one
  - replaces a pod whose spec changed when the reconcile mode is "recreate"
  - waits until the pod has a public IP and every exposed port is mapped

When the pod is ready, the SSH command and Jupyter URL are printed.

With --watch the check repeats every --interval until interrupted, which
keeps a pod alive after it is stopped elsewhere. --metrics-addr then serves
Prometheus metrics.

Examples:
  podkeeper ensure
  podkeeper ensure -c pods.yaml --pod train
  podkeeper ensure --watch --interval 5m --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Ensure(cmd.Context(), *opts, eo)
		},
	}

	cmd.Flags().BoolVarP(&eo.Watch, "watch", "w", false, "Keep ensuring until interrupted")
	cmd.Flags().DurationVar(&eo.Interval, "interval", time.Minute, "Time between checks in watch mode")
	cmd.Flags().StringVar(&eo.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address in watch mode")
	cmd.Flags().IntVar(&eo.Parallel, "parallel", 0, "Maximum pods ensured at once (0 = all)")

	return cmd
}
