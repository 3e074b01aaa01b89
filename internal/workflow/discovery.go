package workflow

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"microstatus/internal/logging"
	"microstatus/internal/modality"
	"microstatus/internal/notifications"
	"microstatus/internal/services"
	"microstatus/internal/store"
)

type candidate struct {
	dir     string
	rel     string
	owner   string
	project string
	name    string
	mod     modality.Modality
}

// discover registers acquisition directories that are not yet in the store.
// Layouts are <owner>/<project>/<dataset> or, without a project level,
// <owner>/<dataset>.
func (m *Manager) discover(ctx context.Context, logger *slog.Logger) (int, error) {
	root := m.cfg.Paths.FastRoot
	candidates, err := m.scanRoot(root)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}
	known, err := m.store.KnownRelPaths(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, c := range candidates {
		if _, ok := known[c.rel]; ok {
			continue
		}
		ds, err := m.prepare(c)
		if err != nil {
			skipCandidate(logger, c, err)
			continue
		}
		// Only a store failure stops discovery; one unreadable acquisition
		// must not hide the ones after it.
		if err := m.store.Create(ctx, ds); err != nil {
			return created, err
		}
		created++
		m.announce(ctx, logger, ds)
	}
	return created, nil
}

func (m *Manager) scanRoot(root string) ([]candidate, error) {
	owners, err := subdirs(root)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, owner := range owners {
		children, err := subdirs(filepath.Join(root, owner))
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			dir := filepath.Join(root, owner, child)
			if mod, ok := m.modalities.Detect(dir); ok {
				out = append(out, candidate{
					dir: dir, rel: filepath.Join(owner, child),
					owner: owner, project: m.cfg.Pipeline.DefaultProject, name: child, mod: mod,
				})
				continue
			}
			grandchildren, err := subdirs(dir)
			if err != nil {
				return nil, err
			}
			for _, name := range grandchildren {
				gdir := filepath.Join(dir, name)
				mod, ok := m.modalities.Detect(gdir)
				if !ok {
					continue
				}
				out = append(out, candidate{
					dir: gdir, rel: filepath.Join(owner, child, name),
					owner: owner, project: child, name: name, mod: mod,
				})
			}
		}
	}
	return out, nil
}

func skipCandidate(logger *slog.Logger, c candidate, err error) {
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrValidation) {
		logger.Debug("acquisition not ready for registration",
			logging.String("path", c.dir),
			logging.Error(err),
		)
		return
	}
	logging.WarnWithContext(logger, "acquisition not registered", "registration_failed",
		logging.String("path", c.dir),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the acquisition metadata file"),
	)
}

// prepare builds the record for a new acquisition without storing it.
func (m *Manager) prepare(c candidate) (*store.Dataset, error) {
	ds := &store.Dataset{
		Name:     c.name,
		Owner:    c.owner,
		Project:  c.project,
		RelPath:  c.rel,
		Modality: c.mod.Kind(),
	}
	if err := c.mod.Setup(ds, c.dir); err != nil {
		return nil, err
	}
	lower := strings.ToLower(c.name)
	if containsAny(lower, m.cfg.Pipeline.IgnoreMarkers) {
		ds.ImagingPhase = store.ImagingFinished
		ds.ProcessingPhase = store.ProcessingFinished
	}
	ds.SkipProcessing = containsAny(lower, m.cfg.Pipeline.SkipProcessingMarkers)
	ds.Delete405 = containsAny(lower, m.cfg.Pipeline.Delete405Markers)
	ds.AnalysisRequested = slices.ContainsFunc(m.cfg.Analysis.Owners, func(o string) bool {
		return strings.EqualFold(o, c.owner)
	})
	ds.RetainIntermediates = m.cfg.Pipeline.RetainIntermediates
	return ds, nil
}

func (m *Manager) announce(ctx context.Context, logger *slog.Logger, ds *store.Dataset) {
	payload := notifications.Payload{
		notifications.KeyOwner:   ds.Owner,
		notifications.KeyProject: ds.Project,
		notifications.KeyDataset: ds.Name,
	}
	event := notifications.EventImagingStarted
	msg := "dataset registered"
	if ds.ProcessingPhase == store.ProcessingFinished {
		event = notifications.EventIgnoringDemoDataset
		msg = "demo dataset ignored"
	}
	logger.Info(msg,
		logging.Int64(logging.FieldDatasetID, ds.ID),
		logging.String(logging.FieldDataset, ds.Label()),
		logging.String("modality", string(ds.Modality)),
		logging.Int64("units_total", ds.UnitsTotal),
		logging.Bool("skip_processing", ds.SkipProcessing),
		logging.String(logging.FieldEventType, string(event)),
	)
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.Error(err))
	}
}

func containsAny(value string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(value, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// subdirs lists visible subdirectories of dir. A missing dir is empty.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "discovery", "list", dir, err)
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		out = append(out, entry.Name())
	}
	return out, nil
}
