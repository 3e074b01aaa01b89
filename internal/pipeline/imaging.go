package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"microstatus/internal/logging"
	"microstatus/internal/modality"
	"microstatus/internal/notifications"
	"microstatus/internal/progress"
	"microstatus/internal/services"
	"microstatus/internal/store"
)

func (ev *evaluation) imaging(ctx context.Context) error {
	ds := ev.ds
	dir := ev.m.layout.Acquisition(ds)

	obs, err := ev.mod.Observe(ds, dir, ev.scan.now)
	present := true
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			return err
		}
		present = false
	}
	advanced := false
	if present {
		advanced = ev.record(obs.Signals)
	}

	// Only fresh output resumes a paused dataset. A unit check that failed
	// at the terminal count keeps it paused.
	if ds.ImagingPhase == store.ImagingPaused {
		if advanced {
			ds.ImagingPhase = store.ImagingInProgress
			ds.ImagingStallSince = nil
			ds.PauseReason = ""
			ev.logger.Info("imaging resumed", logging.Int64("units", obs.Units))
			ev.emit(notifications.EventImagingResumed, nil)
		}
		return nil
	}

	if present && ev.m.cfg.Pipeline.CheckUnits {
		bad, err := ev.checkUnits(ctx, dir, obs, false)
		if err != nil {
			return err
		}
		if bad != "" {
			ev.brokenUnit(bad, obs.Layer)
			return nil
		}
	}

	// A terminal count must hold for one quiet tick before imaging is
	// considered finished, so the last unit has time to be flushed.
	if present && obs.AtTerminal() && !advanced {
		if ev.m.cfg.Pipeline.CheckUnits {
			bad, err := ev.checkUnits(ctx, dir, obs, true)
			if err != nil {
				return err
			}
			if bad != "" {
				ev.brokenUnit(bad, obs.Layer)
				return nil
			}
		}
		ds.ImagingPhase = store.ImagingFinished
		ds.ImagingStallSince = nil
		ds.PauseReason = ""
		ev.logger.Info("imaging finished",
			logging.Int64("units", obs.Units),
			logging.String(logging.FieldEventType, "imaging_finished"),
		)
		ev.emit(notifications.EventImagingFinished, nil)
		return nil
	}

	since, verdict := ev.scan.tracker.Evaluate(ds.ImagingStallSince, ev.lastChange(imagingKeys(obs)), advanced)
	ds.ImagingStallSince = since
	if verdict != progress.Stalled {
		return nil
	}
	reason := fmt.Sprintf("no new imaging output for %s", ev.scan.tracker.Elapsed(since).Round(time.Second))
	ds.ImagingPhase = store.ImagingPaused
	ds.PauseReason = reason
	logging.WarnWithContext(ev.logger, "imaging stalled", "imaging_stalled",
		logging.String(logging.FieldErrorHint, "check the acquisition computer"),
		logging.String(logging.FieldImpact, "dataset paused until imaging output resumes"),
		logging.Int("layer", obs.Layer),
		logging.Int64("units", obs.Units),
		logging.Int64("terminal", obs.Terminal),
	)
	extra := notifications.Payload{notifications.KeyReason: reason}
	if obs.Layer >= 0 {
		extra[notifications.KeyLayer] = obs.Layer
	}
	ev.emit(notifications.EventImagingPaused, extra)
	return nil
}

// imagingKeys names the fingerprints that measure imaging progress. A
// missing acquisition directory yields no signals, so the primary key is
// always included.
func imagingKeys(obs modality.Observation) []string {
	keys := []string{"imaging"}
	for _, sig := range obs.Signals {
		if sig.Key != "imaging" {
			keys = append(keys, sig.Key)
		}
	}
	return keys
}

// checkUnits validates the units the modality selects and returns the first
// one that fails. LayersChecked advances only when every unit passes.
func (ev *evaluation) checkUnits(ctx context.Context, dir string, obs modality.Observation, finishing bool) (string, error) {
	units, checked, err := ev.mod.UnitsToValidate(ev.ds, dir, obs, finishing)
	if err != nil {
		if services.IsTransient(err) {
			return "", err
		}
		ev.logger.Warn("unit selection failed", logging.Error(err))
		return "", nil
	}
	for _, unit := range units {
		ok, err := ev.m.validator.Valid(ctx, unit)
		switch {
		case err == nil && ok:
			continue
		case err == nil,
			errors.Is(err, services.ErrUnreadable),
			errors.Is(err, services.ErrNotFound):
			return unit, nil
		default:
			return "", err
		}
	}
	ev.ds.LayersChecked = checked
	return "", nil
}

// droppedChannel is the excitation line removed from flagged acquisitions.
const droppedChannel = "405"

// dropChannel runs after imaging finishes and before stitching is requested.
// The flag stays set until the removal succeeds, so a failed attempt is
// retried on the next tick.
func (ev *evaluation) dropChannel() error {
	ds := ev.ds
	removed, err := ev.mod.DropChannel(ds, ev.m.layout.Acquisition(ds), droppedChannel)
	if err != nil {
		if services.IsTransient(err) {
			return err
		}
		ev.logger.Warn("channel not removed",
			logging.String("channel", droppedChannel),
			logging.Error(err),
		)
		ds.Delete405 = false
		return nil
	}
	ds.Delete405 = false
	ev.logger.Info("channel removed",
		logging.String("channel", droppedChannel),
		logging.Int("directories", len(removed)),
		logging.Int("channels", ds.Channels),
		logging.Int64("units_total", ds.UnitsTotal),
		logging.String(logging.FieldEventType, "channel_removed"),
	)
	return nil
}

func (ev *evaluation) brokenUnit(path string, layer int) {
	ds := ev.ds
	reason := fmt.Sprintf("imaging unit failed validation: %s", path)
	ds.ImagingPhase = store.ImagingPaused
	ds.PauseReason = reason
	logging.ErrorWithContext(ev.logger, "broken imaging unit", "broken_artifact",
		logging.String("path", path),
		logging.String(logging.FieldErrorHint, "re-acquire the affected tile"),
		logging.Alert("broken_artifact"),
	)
	extra := notifications.Payload{
		notifications.KeyStage:  "imaging",
		notifications.KeyPath:   path,
		notifications.KeyReason: reason,
	}
	if layer >= 0 {
		extra[notifications.KeyLayer] = layer
	}
	ev.emit(notifications.EventBrokenArtifact, extra)
}
