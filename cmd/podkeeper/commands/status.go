package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/podkeeper/cmd/podkeeper/handlers"
)

// Status returns the status command.
func Status(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored and live pod state",
		Long: `Status prints, for each configured pod, the stored record, what RunPod
currently reports and the action the next ensure would take.

Status never creates, starts or stops anything and does not update the
state file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), *opts)
		},
	}
}
