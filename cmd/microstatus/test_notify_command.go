package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"microstatus/internal/config"
	"microstatus/internal/daemon"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Publish a test event through every configured channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withDaemon(func(_ *config.Config, _ *slog.Logger, d *daemon.Daemon) error {
				sent, detail, err := d.TestNotification(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), notifyOutcome(sent, detail))
				return err
			})
		},
	}
}

func notifyOutcome(sent bool, detail string) string {
	if detail != "" {
		return detail
	}
	if sent {
		return "Test notification sent"
	}
	return "Notification not sent"
}
