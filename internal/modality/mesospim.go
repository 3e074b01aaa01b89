package modality

import (
	"path/filepath"
	"time"

	"microstatus/internal/progress"
	"microstatus/internal/services"
	"microstatus/internal/store"
	"microstatus/internal/ticket"
)

const (
	mesoMetadata     = "mesospim.dat"
	mesoMetaGlob     = "*.btf_meta.txt"
	mesoTileGlob     = "*.btf"
	mesoSmallestSign = "imaging.smallest"
)

// MesoSPIM is the light-sheet microscope. Tiles are single BigTIFF files
// written straight into the acquisition directory.
type MesoSPIM struct{}

func (MesoSPIM) Kind() store.Modality { return store.ModalityMesoSPIM }

func (MesoSPIM) Detect(dir string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, mesoMetaGlob))
	return err == nil && len(matches) > 0
}

func (MesoSPIM) Setup(ds *store.Dataset, dir string) error {
	path := filepath.Join(dir, mesoMetadata)
	meta, err := readMetadata(path)
	if err != nil {
		return err
	}
	tiles, err := positiveInt(meta, path, "tiles")
	if err != nil {
		return err
	}
	channels, err := positiveInt(meta, path, "channels")
	if err != nil {
		return err
	}
	ds.Modality = store.ModalityMesoSPIM
	ds.Channels = channels
	ds.Layers = 0
	ds.UnitsPerLayer = 0
	ds.UnitsTotal = int64(tiles)
	ds.CompositesExpected = tiles / channels
	return nil
}

// Observe counts tiles and tracks the smallest tile, since a tile that is
// still being written grows without changing the count.
func (MesoSPIM) Observe(ds *store.Dataset, dir string, now time.Time) (Observation, error) {
	if err := requireDir(dir); err != nil {
		return Observation{Terminal: ds.UnitsTotal, Layer: -1}, err
	}
	u, err := progress.CheckUniform(dir, mesoTileGlob)
	if err != nil {
		return Observation{Terminal: ds.UnitsTotal, Layer: -1}, services.Wrap(services.ErrTransient, "imaging", "scan tiles", dir, err)
	}
	return Observation{
		Units:    u.Count,
		Terminal: ds.UnitsTotal,
		Complete: u.Uniform,
		Layer:    -1,
		Signals: []Signal{
			{Key: "imaging", Current: progress.Count(u.Count, now), Rule: progress.Change},
			{Key: mesoSmallestSign, Current: progress.Size(u.Smallest, now), Rule: progress.Change},
		},
	}, nil
}

// UnitsToValidate checks every tile once imaging is finishing.
func (MesoSPIM) UnitsToValidate(ds *store.Dataset, dir string, _ Observation, finishing bool) ([]string, int, error) {
	if !finishing {
		return nil, ds.LayersChecked, nil
	}
	files, err := progress.ListFiles(dir, mesoTileGlob)
	if err != nil {
		return nil, ds.LayersChecked, services.Wrap(services.ErrTransient, "imaging", "list tiles", dir, err)
	}
	return files, ds.LayersChecked, nil
}

// StitchRequest asks for conversion only; light-sheet tiles are not
// denoised.
func (m MesoSPIM) StitchRequest(_ *store.Dataset, dir string) ticket.Content {
	return ticket.StitchContent(dir, !m.Denoises())
}

func (MesoSPIM) Denoises() bool { return false }

// DropChannel is unsupported: every tile interleaves all channels.
func (MesoSPIM) DropChannel(_ *store.Dataset, dir, channel string) ([]string, error) {
	return nil, services.Wrap(services.ErrValidation, "imaging", "drop channel",
		"mesospim tiles interleave channel "+channel+" under "+dir, nil)
}
