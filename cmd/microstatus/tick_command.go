package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"microstatus/internal/config"
	"microstatus/internal/daemon"
)

func newTickCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single scan of every open dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withDaemon(func(_ *config.Config, _ *slog.Logger, d *daemon.Daemon) error {
				stats, err := d.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tick complete: %d discovered, %d evaluated, %d failed (%s)\n",
					stats.Discovered, stats.Evaluated, stats.Failed, stats.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
}
