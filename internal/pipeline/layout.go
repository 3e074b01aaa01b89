package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"microstatus/internal/config"
	"microstatus/internal/services"
	"microstatus/internal/store"
)

const (
	compositeGlob = "composite*.tif"
	jobPrefix     = "job_"
	partialSuffix = ".part"
)

// Layout maps a dataset to paths on either storage tier.
type Layout struct {
	cfg *config.Config
}

// NewLayout builds a Layout.
func NewLayout(cfg *config.Config) Layout {
	return Layout{cfg: cfg}
}

func (l Layout) tierRoot(tier store.Tier) string {
	if tier == store.TierArchive {
		return l.cfg.Paths.ArchiveRoot
	}
	return l.cfg.Paths.FastRoot
}

// Tiers returns the tiers to search for ds, its current tier first.
func (l Layout) Tiers(ds *store.Dataset) []store.Tier {
	if !l.cfg.HasArchiveTier() {
		return []store.Tier{store.TierFast}
	}
	if ds.Tier == store.TierArchive {
		return []store.Tier{store.TierArchive, store.TierFast}
	}
	return []store.Tier{store.TierFast, store.TierArchive}
}

// Root is the dataset directory on tier.
func (l Layout) Root(tier store.Tier, ds *store.Dataset) string {
	return filepath.Join(l.tierRoot(tier), ds.RelPath)
}

// Acquisition is where the instrument writes; imaging always lands on the
// fast tier.
func (l Layout) Acquisition(ds *store.Dataset) string {
	return l.Root(store.TierFast, ds)
}

// Composites is the stitch output directory on tier.
func (l Layout) Composites(tier store.Tier, ds *store.Dataset) string {
	return filepath.Join(l.Root(tier, ds), l.cfg.Pipeline.CompositesDir)
}

// FindComposites returns the first existing composites directory, searching
// the dataset's tiers in order.
func (l Layout) FindComposites(ds *store.Dataset) (string, store.Tier, bool) {
	for _, tier := range l.Tiers(ds) {
		dir := l.Composites(tier, ds)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, tier, true
		}
	}
	return l.Composites(l.Tiers(ds)[0], ds), l.Tiers(ds)[0], false
}

// Job is one denoise output directory.
type Job struct {
	Ref  string
	Dir  string
	Tier store.Tier
}

// LatestJob returns the highest-numbered job directory, searching the
// dataset's tiers in order. ok is false when no job directory exists yet.
func (l Layout) LatestJob(ds *store.Dataset) (Job, bool, error) {
	for _, tier := range l.Tiers(ds) {
		job, ok, err := latestJobIn(l.Composites(tier, ds))
		if err != nil {
			return Job{}, false, err
		}
		if ok {
			job.Tier = tier
			return job, true, nil
		}
	}
	return Job{}, false, nil
}

// JobOnTier returns the directory of ref on tier.
func (l Layout) JobOnTier(tier store.Tier, ds *store.Dataset, ref string) Job {
	return Job{Ref: ref, Dir: filepath.Join(l.Composites(tier, ds), jobPrefix+ref), Tier: tier}
}

// Volume is the finished volume path inside job.
func (l Layout) Volume(job Job) string {
	name := fmt.Sprintf("%s_%s%s%s", l.cfg.Pipeline.CompositesDir, jobPrefix, job.Ref, l.cfg.Pipeline.VolumeExtension)
	return filepath.Join(job.Dir, name)
}

// Partial is the in-progress form of the volume.
func (l Layout) Partial(job Job) string {
	return l.Volume(job) + partialSuffix
}

// Trash returns the trash root holding path's tier.
func (l Layout) Trash(path string) string {
	if root := l.cfg.Paths.ArchiveRoot; root != "" && isUnder(root, path) {
		return l.cfg.Paths.ArchiveTrash
	}
	return l.cfg.Paths.FastTrash
}

func latestJobIn(compositesDir string) (Job, bool, error) {
	entries, err := os.ReadDir(compositesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Job{}, false, nil
		}
		return Job{}, false, services.Wrap(services.ErrTransient, "denoise", "list jobs", compositesDir, err)
	}
	type candidate struct {
		n    int
		name string
	}
	var jobs []candidate
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), jobPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), jobPrefix))
		if err != nil {
			continue
		}
		jobs = append(jobs, candidate{n: n, name: entry.Name()})
	}
	if len(jobs) == 0 {
		return Job{}, false, nil
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].n > jobs[j].n })
	return Job{Ref: strconv.Itoa(jobs[0].n), Dir: filepath.Join(compositesDir, jobs[0].name)}, true, nil
}

func isUnder(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
