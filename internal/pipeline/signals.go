package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"microstatus/internal/logging"
	"microstatus/internal/modality"
	"microstatus/internal/progress"
	"microstatus/internal/ticket"
)

// record stores every signal that advanced and reports whether any did. The
// stored fingerprint only moves on advance, so its Observed time is the last
// moment real progress was seen.
func (ev *evaluation) record(signals []modality.Signal) bool {
	advanced := false
	for _, sig := range signals {
		if progress.HasAdvanced(ev.ds.Fingerprint(sig.Key), sig.Current, sig.Rule) {
			ev.ds.SetFingerprint(sig.Key, sig.Current)
			advanced = true
		}
	}
	return advanced
}

// lastChange returns the latest Observed time across keys.
func (ev *evaluation) lastChange(keys []string) time.Time {
	var latest time.Time
	for _, key := range keys {
		if at := ev.ds.Fingerprint(key).Observed; at.After(latest) {
			latest = at
		}
	}
	return latest
}

// poolBusy reports whether another dataset's work in the shared pool moved
// within the stall window.
func (ev *evaluation) poolBusy(pool []modality.Signal) bool {
	timeout := ev.m.cfg.Pipeline.Stall()
	for _, sig := range pool {
		fp := ev.ds.Fingerprint(sig.Key)
		if fp.Observed.IsZero() || len(fp.Roster) == 0 {
			continue
		}
		if ev.scan.now.Sub(fp.Observed) < timeout {
			return true
		}
	}
	return false
}

// rosterSignal returns the stitching dashboard roster, fetched once per scan.
func (s *Scan) rosterSignal(ctx context.Context) (map[string]int, bool) {
	if s.m.roster == nil {
		return nil, false
	}
	if !s.rosterLoaded {
		s.rosterLoaded = true
		roster, err := s.m.roster.Roster(ctx)
		if err != nil {
			s.m.logger.Debug("stitch roster unavailable", logging.Error(err))
			return nil, false
		}
		s.roster = roster
	}
	if s.roster == nil {
		return nil, false
	}
	return s.roster, true
}

// pool maps every ticket held in the processing directory of stage to the
// amount of output in its work root. Values are measured by measure and
// cached for the scan.
func (s *Scan) pool(stage ticket.Stage, measure func(root string) int64) map[string]int {
	if cached, ok := s.pools[stage]; ok {
		return cached
	}
	out := make(map[string]int)
	paths, err := s.m.gateway.List(stage, ticket.LocationProcessing, "*")
	if err != nil {
		s.m.logger.Debug("list shared pool failed",
			logging.String(logging.FieldStage, string(stage)),
			logging.Error(err),
		)
		s.pools[stage] = out
		return out
	}
	for _, path := range paths {
		data, err := s.m.gateway.Read(path)
		if err != nil {
			continue
		}
		root, ok := ticket.WorkRoot(data)
		if !ok {
			continue
		}
		out[filepath.Base(path)] = int(measure(root))
	}
	s.pools[stage] = out
	return out
}

// poolSignal is the shared pool for stage with the dataset's own tickets
// removed.
func (ev *evaluation) poolSignal(stage ticket.Stage, measure func(root string) int64) modality.Signal {
	own := ticket.Base(ev.ds)
	others := make(map[string]int)
	for name, value := range ev.scan.pool(stage, measure) {
		if strings.HasPrefix(name, own) {
			continue
		}
		others[name] = value
	}
	return modality.Signal{
		Key:     string(stage) + ".pool",
		Current: progress.Roster(others, ev.scan.now),
		Rule:    progress.Change,
	}
}

func compositeCount(root string) int64 {
	n, err := progress.CountFiles(root, compositeGlob)
	if err != nil {
		return 0
	}
	return n
}

func partialBytes(root string) int64 {
	files, err := progress.ListFiles(root, "*"+partialSuffix)
	if err != nil {
		return 0
	}
	var total int64
	for _, path := range files {
		size, err := progress.FileSize(path)
		if err != nil {
			if errors.Is(err, progress.ErrMissing) {
				continue
			}
			return total
		}
		total += size
	}
	return total
}
