package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newStartCommand() *cobra.Command {
	var governed bool
	var async bool
	var sync bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the fast/medium/slow scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireOrExit(cmd)
			defer c.Close()

			c.Config.Governed = governed
			c.Config.Async = async && !sync

			ctx, cancel := context.WithCancel(context.Background())
			if err := c.Registry.Hydrate(ctx); err != nil {
				cancel()
				fmt.Fprintln(os.Stderr, "registry hydration failed:", err)
				os.Exit(ExitRuntimeFatal)
			}
			c.Log.Info().Msg("market registry hydrated")

			c.Scheduler.Start()
			c.Log.Info().Bool("governed", governed).Msg("scheduler started")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			sig := <-quit
			c.Log.Info().Str("signal", sig.String()).Msg("shutdown signal received, finishing in-flight loop")

			c.Scheduler.Stop()
			cancel()

			if sig == syscall.SIGINT {
				os.Exit(ExitInterrupted)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&governed, "governed", false, "set Config.Governed (the governor gates plan changes with or without this flag)")
	cmd.Flags().BoolVar(&async, "async", true, "set Config.Async (default); the scheduler runs due loops one after another either way")
	cmd.Flags().BoolVar(&sync, "sync", false, "clear Config.Async; the scheduler runs due loops one after another either way")
	return cmd
}
