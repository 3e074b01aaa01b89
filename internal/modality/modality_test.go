package modality_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"microstatus/internal/modality"
	"microstatus/internal/progress"
	"microstatus/internal/services"
	"microstatus/internal/store"
	"microstatus/internal/testsupport"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func writeSeries(t *testing.T, dir string, layers, channels, perLayer int) {
	t.Helper()
	body := fmt.Sprintf("z_layers=%d\nchannels=%d\nunits_per_layer=%d\n", layers, channels, perLayer)
	testsupport.MustMkdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "vs_series.dat"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeUnits(t *testing.T, dir string, layer, channel, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("layer%03d", layer), fmt.Sprintf("ch%d", channel), "images", fmt.Sprintf("col%03d.tif", i))
		testsupport.WriteFile(t, path, 32)
	}
}

func setupRSCM(t *testing.T, layers, channels, perLayer int) (*store.Dataset, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "lab", "CL01", "brain")
	writeSeries(t, dir, layers, channels, perLayer)
	ds := &store.Dataset{Name: "brain"}
	if err := (modality.RSCM{}).Setup(ds, dir); err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	return ds, dir
}

func TestRSCMSetup(t *testing.T) {
	ds, _ := setupRSCM(t, 4, 2, 3)
	if ds.UnitsTotal != 24 || ds.CompositesExpected != 8 || ds.Modality != store.ModalityRSCM {
		t.Fatalf("unexpected totals %+v", ds)
	}
}

func TestRSCMSetupRejectsBadMetadata(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vs_series.dat"), []byte("z_layers=0\nchannels=2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := (modality.RSCM{}).Setup(&store.Dataset{}, dir)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRSCMObserveCountsFromTopLayer(t *testing.T) {
	ds, dir := setupRSCM(t, 3, 2, 2)
	writeUnits(t, dir, 2, 1, 2)
	writeUnits(t, dir, 2, 2, 2)
	writeUnits(t, dir, 1, 1, 1)

	obs, err := (modality.RSCM{}).Observe(ds, dir, now)
	if err != nil {
		t.Fatalf("Observe returned error: %v", err)
	}
	if obs.Units != 5 || obs.Layer != 1 || obs.AtTerminal() {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if len(obs.Signals) != 1 || obs.Signals[0].Current.Value != 5 || obs.Signals[0].Rule != progress.Increase {
		t.Fatalf("unexpected signals %+v", obs.Signals)
	}

	writeUnits(t, dir, 1, 1, 2)
	writeUnits(t, dir, 1, 2, 2)
	writeUnits(t, dir, 0, 1, 2)
	writeUnits(t, dir, 0, 2, 2)
	obs, err = (modality.RSCM{}).Observe(ds, dir, now)
	if err != nil {
		t.Fatalf("Observe returned error: %v", err)
	}
	if !obs.AtTerminal() || obs.Layer != 0 {
		t.Fatalf("expected terminal observation, got %+v", obs)
	}
}

func TestRSCMObserveMissingDirectory(t *testing.T) {
	ds := &store.Dataset{UnitsTotal: 10}
	_, err := (modality.RSCM{}).Observe(ds, filepath.Join(t.TempDir(), "gone"), now)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRSCMUnitsToValidateWalksFinishedLayers(t *testing.T) {
	ds, dir := setupRSCM(t, 3, 1, 2)
	writeUnits(t, dir, 2, 1, 2)
	writeUnits(t, dir, 1, 1, 1)

	rscm := modality.RSCM{}
	obs, err := rscm.Observe(ds, dir, now)
	if err != nil {
		t.Fatal(err)
	}
	units, checked, err := rscm.UnitsToValidate(ds, dir, obs, false)
	if err != nil {
		t.Fatalf("UnitsToValidate returned error: %v", err)
	}
	if len(units) != 2 || checked != 1 {
		t.Fatalf("expected layer 2 only, got %d units checked=%d", len(units), checked)
	}

	ds.LayersChecked = checked
	units, checked, err = rscm.UnitsToValidate(ds, dir, obs, false)
	if err != nil || len(units) != 0 || checked != 1 {
		t.Fatalf("expected nothing new, got %v %d %v", units, checked, err)
	}

	writeUnits(t, dir, 1, 1, 2)
	writeUnits(t, dir, 0, 1, 2)
	obs, err = rscm.Observe(ds, dir, now)
	if err != nil {
		t.Fatal(err)
	}
	units, checked, err = rscm.UnitsToValidate(ds, dir, obs, true)
	if err != nil {
		t.Fatalf("UnitsToValidate returned error: %v", err)
	}
	if len(units) != 4 || checked != 3 {
		t.Fatalf("expected layers 1 and 0, got %d units checked=%d", len(units), checked)
	}
}

func TestMesoSPIMObserve(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "brain.btf_meta.txt"), 10)
	if err := os.WriteFile(filepath.Join(dir, "mesospim.dat"), []byte("tiles=4\nchannels=2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	meso := modality.MesoSPIM{}
	if !meso.Detect(dir) {
		t.Fatal("expected mesospim detection")
	}
	ds := &store.Dataset{}
	if err := meso.Setup(ds, dir); err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if ds.UnitsTotal != 4 || ds.CompositesExpected != 2 {
		t.Fatalf("unexpected totals %+v", ds)
	}

	for i := 0; i < 3; i++ {
		testsupport.WriteFile(t, filepath.Join(dir, fmt.Sprintf("tile_%02d.btf", i)), 100)
	}
	testsupport.WriteFile(t, filepath.Join(dir, "tile_03.btf"), 40)
	obs, err := meso.Observe(ds, dir, now)
	if err != nil {
		t.Fatalf("Observe returned error: %v", err)
	}
	if obs.Units != 4 || obs.AtTerminal() {
		t.Fatalf("expected tile still being written, got %+v", obs)
	}
	if len(obs.Signals) != 2 || obs.Signals[1].Current.Value != 40 {
		t.Fatalf("unexpected signals %+v", obs.Signals)
	}

	testsupport.WriteFile(t, filepath.Join(dir, "tile_03.btf"), 100)
	obs, err = meso.Observe(ds, dir, now)
	if err != nil {
		t.Fatal(err)
	}
	if !obs.AtTerminal() {
		t.Fatalf("expected terminal observation, got %+v", obs)
	}
	units, _, err := meso.UnitsToValidate(ds, dir, obs, true)
	if err != nil || len(units) != 4 {
		t.Fatalf("expected all tiles to validate, got %v %v", units, err)
	}
	if v, ok := meso.StitchRequest(ds, dir).Flag("denoise"); !ok || v {
		t.Fatal("expected conversion-only stitch request")
	}
	if meso.Denoises() {
		t.Fatal("expected light-sheet data to bypass denoise")
	}
	if _, err := meso.DropChannel(ds, dir, "405"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected channel removal to be unsupported, got %v", err)
	}
}

func TestRSCMDropChannelRecountsTotals(t *testing.T) {
	ds, dir := setupRSCM(t, 2, 3, 2)
	for layer := 0; layer < 2; layer++ {
		writeUnits(t, dir, layer, 0, 2)
		writeUnits(t, dir, layer, 1, 2)
		writeUnits(t, dir, layer, 405, 2)
	}
	rscm := modality.RSCM{}
	if !rscm.Denoises() {
		t.Fatal("expected confocal composites to be denoised")
	}

	removed, err := rscm.DropChannel(ds, dir, "405")
	if err != nil {
		t.Fatalf("DropChannel returned error: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected one directory per layer, got %v", removed)
	}
	for _, path := range removed {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed, got %v", path, err)
		}
	}
	if ds.Channels != 2 || ds.UnitsTotal != 8 || ds.CompositesExpected != 4 {
		t.Fatalf("unexpected totals %+v", ds)
	}

	// A second pass finds nothing and leaves the totals alone.
	removed, err = rscm.DropChannel(ds, dir, "405")
	if err != nil || len(removed) != 0 || ds.Channels != 2 {
		t.Fatalf("expected an idempotent second pass, got %v %v %d", removed, err, ds.Channels)
	}
}

func TestRegistry(t *testing.T) {
	reg := modality.Default()
	_, dir := setupRSCM(t, 1, 1, 1)
	m, ok := reg.Detect(dir)
	if !ok || m.Kind() != store.ModalityRSCM {
		t.Fatalf("expected rscm detection, got %v %v", m, ok)
	}
	if _, ok := reg.Detect(t.TempDir()); ok {
		t.Fatal("expected empty directory to be unclaimed")
	}
	if _, err := reg.Lookup("confocal"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
