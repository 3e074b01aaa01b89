package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"microstatus/internal/logging"
	"microstatus/internal/notifications"
	"microstatus/internal/services"
)

type analysisRequest struct {
	VolumeFile   string   `json:"volume_file"`
	Actions      []string `json:"actions"`
	OutputFolder string   `json:"output_folder"`
}

// analysis drops a one-shot request file for the downstream analysis
// service. An existing request file only marks the dataset as triggered.
func (ev *evaluation) analysis() error {
	ds := ev.ds
	cfg := ev.m.cfg
	if ds.AnalysisTriggeredAt != nil {
		return nil
	}
	wanted := ds.AnalysisRequested ||
		slices.ContainsFunc(cfg.Analysis.Owners, func(o string) bool { return strings.EqualFold(o, ds.Owner) })
	// Without a destination or a volume nothing can ever be handed off, so
	// the request is dropped and the dataset is allowed to close.
	if !wanted || cfg.Paths.AnalysisDir == "" || ds.ArtifactPath == "" {
		ds.AnalysisRequested = false
		return nil
	}
	// Persisted so a failed write below keeps the dataset open for a retry.
	ds.AnalysisRequested = true

	path := filepath.Join(cfg.Paths.AnalysisDir, fmt.Sprintf("%d_%s_analysis.json", ds.ID, ds.Name))
	now := ev.scan.now
	if _, err := os.Stat(path); err == nil {
		ds.AnalysisTriggeredAt = &now
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "analysis", "stat request", path, err)
	}

	output := cfg.Analysis.OutputDir
	if output == "" {
		output = filepath.Join(ev.m.layout.Root(ds.Tier, ds), "analysis")
	}
	body, err := json.MarshalIndent(analysisRequest{
		VolumeFile:   ds.ArtifactPath,
		Actions:      cfg.Analysis.Actions,
		OutputFolder: output,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis request: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.AnalysisDir, 0o775); err != nil {
		return services.Wrap(services.ErrTransient, "analysis", "create request dir", cfg.Paths.AnalysisDir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o664); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrTransient, "analysis", "write request", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrTransient, "analysis", "publish request", path, err)
	}

	ds.AnalysisTriggeredAt = &now
	ev.logger.Info("analysis queued", logging.String("path", path))
	ev.emit(notifications.EventAnalysisQueued, notifications.Payload{notifications.KeyPath: path})
	return nil
}
