// Package cli wires the cobra command surface spec.md §6.3 names, each a
// thin adapter over the services internal/di.Wire assembles. Grounded on
// the teacher's cmd/server/main.go startup/shutdown sequence, adapted from
// a single long-running HTTP server into a multi-subcommand CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/aegis/internal/config"
	"github.com/aristath/aegis/internal/di"
)

// Exit codes per spec.md §6.3.
const (
	ExitSuccess       = 0
	ExitConfigError   = 1
	ExitRuntimeFatal  = 2
	ExitInterrupted   = 130
)

// NewRootCommand builds the cobra command tree for cmd/aegis.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "aegis",
		Short:         "Aegis governance engine for a perpetual-futures + spot portfolio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStartCommand(),
		newStatusCommand(),
		newGovPlanCommand(),
		newGovRegimeCommand(),
		newGovTripwireCommand(),
		newGovMetricsCommand(),
		newBacktestCommand(),
	)
	return root
}

// wireOrExit loads config and wires the container, exiting with
// ExitConfigError when the config fails to load and ExitRuntimeFatal when
// wiring fails — every subcommand, `start` included, needs this same
// bootstrap, so it's centralized here.
func wireOrExit(cmd *cobra.Command) *di.Container {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(ExitConfigError)
	}
	c, err := di.Wire(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wiring error:", err)
		os.Exit(ExitRuntimeFatal)
	}
	return c
}
