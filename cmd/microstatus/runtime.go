package main

import (
	"fmt"
	"log/slog"
	"time"

	"microstatus/internal/alerts"
	"microstatus/internal/config"
	"microstatus/internal/daemon"
	"microstatus/internal/logging"
	"microstatus/internal/modality"
	"microstatus/internal/notifications"
	"microstatus/internal/pipeline"
	"microstatus/internal/services/dashboard"
	"microstatus/internal/storage"
	"microstatus/internal/store"
	"microstatus/internal/ticket"
	"microstatus/internal/validator"
	"microstatus/internal/workflow"
)

// newDaemon wires the record store, pipeline machine, storage alerts and
// workflow manager into a daemon. The daemon owns the store.
func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	modalities := modality.Default()

	var opts []pipeline.Option
	client, err := dashboard.New(cfg.Dashboard)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if client != nil {
		opts = append(opts, pipeline.WithRoster(client))
	} else {
		logger.Info("dashboard not configured; stitch roster signal disabled",
			logging.String(logging.FieldEventType, "dashboard_disabled"),
		)
	}
	machine := pipeline.New(cfg, st, ticket.NewGateway(cfg), modalities, validator.New(), notifier, logger, opts...)

	prober := storage.NewProber(time.Duration(cfg.Storage.ProbeTimeout) * time.Second)
	engine := alerts.NewEngine(cfg.Storage, st, prober, notifier, logger)

	mgr := workflow.NewManager(cfg, st, machine, modalities, notifier, logger,
		workflow.WithStorageChecker(engine))

	d, err := daemon.New(cfg, st, logger, mgr, notifier)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}
