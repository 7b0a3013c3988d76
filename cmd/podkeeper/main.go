// Package main is the entry point for the podkeeper CLI.
//
// podkeeper keeps named RunPod GPU pods running and reachable. It remembers
// which provider pod backs each logical name in a local state file and
// reuses, restarts or replaces that pod on every run.
//
// Commands: ensure, status, stop, terminate, forget, pods, gpus.
//
// For detailed usage information, run:
//
//	podkeeper --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/podkeeper/cmd/podkeeper/commands"
	"github.com/imamik/podkeeper/cmd/podkeeper/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(handlers.ExitCode(err))
	}
}
