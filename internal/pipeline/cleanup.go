package pipeline

import (
	"microstatus/internal/fileutil"
	"microstatus/internal/logging"
	"microstatus/internal/progress"
)

// cleanup removes raw and denoised composites once the volume exists. The
// volume itself and everything else in the job directory stay.
func (ev *evaluation) cleanup(job Job) {
	ds := ev.ds
	if ds.RetainIntermediates || ev.m.cfg.Pipeline.RetainIntermediates {
		return
	}
	layout := ev.m.layout
	var removed int
	for _, tier := range layout.Tiers(ds) {
		root := layout.Root(tier, ds)
		dirs := []string{layout.Composites(tier, ds)}
		if job.Dir != "" && job.Tier == tier {
			dirs = append(dirs, job.Dir)
		}
		for _, dir := range dirs {
			files, err := progress.ListFiles(dir, compositeGlob)
			if err != nil {
				ev.logger.Warn("list intermediates failed", logging.String("dir", dir), logging.Error(err))
				continue
			}
			for _, path := range files {
				if err := fileutil.RemoveWithin(root, path); err != nil {
					ev.logger.Warn("remove intermediate failed", logging.String("path", path), logging.Error(err))
					continue
				}
				removed++
			}
		}
	}
	if removed > 0 {
		ev.logger.Info("intermediates removed", logging.Int("files", removed))
	}
}
