package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"microstatus/internal/fileutil"
	"microstatus/internal/logging"
	"microstatus/internal/notifications"
	"microstatus/internal/services"
	"microstatus/internal/store"
	"microstatus/internal/ticket"
)

const quarantineStamp = "2006-01-02_15-04-05"

// quarantine moves a broken artifact into the trash of its tier under
// <trash>/<owner>/<project>/<name>/<kind>_<timestamp>/. A path is moved at
// most once per scan; later calls return the first target.
func (s *Scan) quarantine(ds *store.Dataset, path string) (string, error) {
	if target, ok := s.quarantined[path]; ok {
		return target, nil
	}
	kind := strings.TrimPrefix(filepath.Ext(path), ".")
	if kind == "" {
		kind = "artifact"
	}
	dir := filepath.Join(
		s.m.layout.Trash(path),
		ds.Owner, ds.Project, ds.Name,
		fmt.Sprintf("%s_%s", kind, s.now.Format(quarantineStamp)),
	)
	target := filepath.Join(dir, filepath.Base(path))
	if err := fileutil.MoveFile(path, target); err != nil {
		return "", services.Wrap(services.ErrTransient, "quarantine", "move artifact", path, err)
	}
	s.quarantined[path] = target
	return target, nil
}

// brokenVolume quarantines an invalid volume, sends the build ticket back to
// its queue and pauses the dataset until the rebuild makes progress.
func (ev *evaluation) brokenVolume(path string) error {
	ds := ev.ds
	target, err := ev.scan.quarantine(ds, path)
	if err != nil {
		return err
	}
	ev.logger.Info("volume quarantined",
		logging.String("path", path),
		logging.String("target", target),
	)

	if _, err := ev.m.gateway.Requeue(ticket.StageBuild, ticket.Pattern(ds, ticket.StageBuild)); err != nil {
		logging.ErrorWithContext(ev.logger, "volume build ticket not requeued", "requeue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "queue the volume build by hand"),
		)
	}
	delete(ds.Fingerprints, "build_volume")

	ev.pause(store.ProcessingDenoised, "build_volume", incident{
		event:  notifications.EventBrokenArtifact,
		reason: fmt.Sprintf("volume failed validation and was moved to %s", target),
		path:   path,
	})
	return nil
}
