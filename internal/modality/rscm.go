package modality

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"microstatus/internal/fileutil"
	"microstatus/internal/progress"
	"microstatus/internal/services"
	"microstatus/internal/store"
	"microstatus/internal/ticket"
)

const (
	rscmMetadata   = "vs_series.dat"
	rscmLayerGlob  = "layer*"
	rscmChannelDir = "ch*"
	rscmUnitGlob   = "*.tif"
)

// RSCM is the ribbon-scanning confocal. Layers are written from the highest
// index down to zero; each layer holds one image directory per channel.
type RSCM struct{}

func (RSCM) Kind() store.Modality { return store.ModalityRSCM }

func (RSCM) Detect(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, rscmMetadata))
	return err == nil && !info.IsDir()
}

func (RSCM) Setup(ds *store.Dataset, dir string) error {
	path := filepath.Join(dir, rscmMetadata)
	meta, err := readMetadata(path)
	if err != nil {
		return err
	}
	layers, err := positiveInt(meta, path, "z_layers")
	if err != nil {
		return err
	}
	channels, err := positiveInt(meta, path, "channels")
	if err != nil {
		return err
	}
	perLayer, err := positiveInt(meta, path, "units_per_layer")
	if err != nil {
		return err
	}
	ds.Modality = store.ModalityRSCM
	ds.Layers = layers
	ds.Channels = channels
	ds.UnitsPerLayer = perLayer
	ds.UnitsTotal = int64(layers) * int64(channels) * int64(perLayer)
	ds.CompositesExpected = layers * channels
	return nil
}

// Observe counts units layer by layer in descending order and stops at the
// first layer that is not fully populated; lower layers have not started.
func (RSCM) Observe(ds *store.Dataset, dir string, now time.Time) (Observation, error) {
	obs := Observation{Terminal: ds.UnitsTotal, Complete: true, Layer: -1}
	if err := requireDir(dir); err != nil {
		return obs, err
	}
	layers, err := layerDirs(dir)
	if err != nil {
		return obs, err
	}
	for _, l := range layers {
		obs.Layer = l.index
		n, full, err := countLayer(l.path, ds.Channels, ds.UnitsPerLayer)
		if err != nil {
			return obs, err
		}
		obs.Units += n
		if !full {
			break
		}
	}
	obs.Signals = []Signal{{Key: "imaging", Current: progress.Count(obs.Units, now), Rule: progress.Increase}}
	return obs, nil
}

// UnitsToValidate returns the units of fully written layers below the last
// checked one. LayersChecked counts layers from the top of the stack.
func (RSCM) UnitsToValidate(ds *store.Dataset, dir string, obs Observation, finishing bool) ([]string, int, error) {
	if ds.Layers <= 0 {
		return nil, ds.LayersChecked, nil
	}
	next := ds.Layers - 1 - ds.LayersChecked
	stop := 0
	if !finishing {
		if obs.Layer < 0 {
			return nil, ds.LayersChecked, nil
		}
		stop = obs.Layer + 1
	}
	if next < stop {
		return nil, ds.LayersChecked, nil
	}

	layers, err := layerDirs(dir)
	if err != nil {
		return nil, ds.LayersChecked, err
	}
	byIndex := make(map[int]string, len(layers))
	for _, l := range layers {
		byIndex[l.index] = l.path
	}
	var units []string
	for idx := next; idx >= stop; idx-- {
		path, ok := byIndex[idx]
		if !ok {
			return nil, ds.LayersChecked, services.Wrap(services.ErrValidation, "imaging", "validate units",
				fmt.Sprintf("layer %d missing under %s", idx, dir), nil)
		}
		channels, err := progress.SubdirsDescending(path, rscmChannelDir)
		if err != nil {
			return nil, ds.LayersChecked, services.Wrap(services.ErrTransient, "imaging", "list channels", path, err)
		}
		for _, ch := range channels {
			files, err := progress.ListFiles(filepath.Join(ch, "images"), rscmUnitGlob)
			if err != nil {
				return nil, ds.LayersChecked, services.Wrap(services.ErrTransient, "imaging", "list units", ch, err)
			}
			units = append(units, files...)
		}
	}
	return units, ds.Layers - stop, nil
}

func (r RSCM) StitchRequest(_ *store.Dataset, dir string) ticket.Content {
	return ticket.StitchContent(dir, !r.Denoises())
}

func (RSCM) Denoises() bool { return true }

// DropChannel removes layer*/ch<channel>* below dir. Totals are recomputed
// from the channel directories left in the top layer, so running it again
// after a partial or unsaved removal converges on the same counts.
func (RSCM) DropChannel(ds *store.Dataset, dir, channel string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, rscmLayerGlob, "ch"+channel+"*"))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "imaging", "drop channel", channel, err)
	}
	sort.Strings(matches)
	var removed []string
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := fileutil.RemoveWithin(dir, path); err != nil {
			return removed, services.Wrap(services.ErrTransient, "imaging", "drop channel", path, err)
		}
		removed = append(removed, path)
	}

	layers, err := layerDirs(dir)
	if err != nil || len(layers) == 0 {
		return removed, err
	}
	left, err := progress.SubdirsDescending(layers[0].path, rscmChannelDir)
	if err != nil {
		return removed, services.Wrap(services.ErrTransient, "imaging", "list channels", layers[0].path, err)
	}
	if len(left) > 0 {
		ds.Channels = len(left)
		ds.UnitsTotal = int64(ds.Layers) * int64(ds.Channels) * int64(ds.UnitsPerLayer)
		ds.CompositesExpected = ds.Layers * ds.Channels
	}
	return removed, nil
}

type layer struct {
	index int
	path  string
}

// layerDirs lists layer directories ordered by numeric index, highest first.
// Names may carry three or four digits.
func layerDirs(dir string) ([]layer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "imaging", "list layers", dir, err)
	}
	var out []layer
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(rscmLayerGlob, entry.Name()); !ok {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), "layer"))
		if err != nil {
			continue
		}
		out = append(out, layer{index: idx, path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index > out[j].index })
	return out, nil
}

// countLayer sums units across the channels of one layer and reports
// whether every expected channel holds a full set.
func countLayer(path string, channels, perLayer int) (int64, bool, error) {
	dirs, err := progress.SubdirsDescending(path, rscmChannelDir)
	if err != nil {
		return 0, false, services.Wrap(services.ErrTransient, "imaging", "list channels", path, err)
	}
	var total int64
	full := len(dirs) >= channels
	for _, ch := range dirs {
		n, err := progress.CountFiles(filepath.Join(ch, "images"), rscmUnitGlob)
		if err != nil {
			return 0, false, services.Wrap(services.ErrTransient, "imaging", "count units", ch, err)
		}
		total += n
		if n < int64(perLayer) {
			full = false
		}
	}
	return total, full, nil
}
