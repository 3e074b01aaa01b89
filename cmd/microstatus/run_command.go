package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"microstatus/internal/config"
	"microstatus/internal/daemon"
	"microstatus/internal/logging"
)

const pidFileName = "microstatus.pid"

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scan loop in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withDaemon(func(cfg *config.Config, logger *slog.Logger, d *daemon.Daemon) error {
				if err := d.Start(sigCtx); err != nil {
					return err
				}
				pidPath := filepath.Join(cfg.Paths.StateDir, pidFileName)
				if err := writePIDFile(pidPath); err != nil {
					logger.Warn("pid file not written", logging.Error(err))
				}
				defer os.Remove(pidPath)

				logger.Info("microstatus running",
					logging.String("config", ctx.configPath),
					logging.String("fast_root", cfg.Paths.FastRoot),
					logging.Bool("archive_tier", cfg.HasArchiveTier()),
				)
				<-sigCtx.Done()
				logger.Info("microstatus shutting down")
				return nil
			})
		},
	}
}

func writePIDFile(path string) error {
	pid := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, pid, 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}
