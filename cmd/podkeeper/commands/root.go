// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/podkeeper/cmd/podkeeper/handlers"
)

// Root returns the root command for the podkeeper CLI.
//
// The flags shared by every subcommand are bound on the root as persistent
// flags and handed to the subcommands through one Options value.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:   "podkeeper",
		Short: "Keep RunPod GPU pods running and reachable",
		Long: `podkeeper makes a named RunPod GPU pod exist, run and expose its ports.

The pod is described by RUNPOD_* environment variables or by a YAML file
passed with --config. The provider pod backing each name is remembered in
a local state file, so repeated runs reuse, restart or replace it instead of
creating duplicates.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to a pod configuration file (default: RUNPOD_* environment variables)")
	flags.StringSliceVar(&opts.Pods, "pod", nil, "Limit the command to these logical pods from the config file")
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	// Pod lifecycle
	cmd.AddCommand(Ensure(opts))
	cmd.AddCommand(Status(opts))
	cmd.AddCommand(Stop(opts))
	cmd.AddCommand(Terminate(opts))
	cmd.AddCommand(Forget(opts))

	// Account
	cmd.AddCommand(Pods(opts))
	cmd.AddCommand(GPUs(opts))

	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
