package validator_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"microstatus/internal/services"
	"microstatus/internal/testsupport"
	"microstatus/internal/validator"
)

func writeTIFF(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, image.NewGray16(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatalf("encode tiff: %v", err)
	}
	testsupport.MustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTIFFValidation(t *testing.T) {
	dir := t.TempDir()
	v := validator.New()
	ctx := context.Background()

	good := filepath.Join(dir, "good.tif")
	writeTIFF(t, good)
	if ok, err := v.Valid(ctx, good); err != nil || !ok {
		t.Fatalf("expected valid tiff, got %v %v", ok, err)
	}

	truncated := filepath.Join(dir, "truncated.tif")
	testsupport.WriteWithHeader(t, truncated, []byte("II*\x00"), 6)
	if ok, err := v.Valid(ctx, truncated); err != nil || ok {
		t.Fatalf("expected truncated tiff to be invalid, got %v %v", ok, err)
	}

	garbage := filepath.Join(dir, "garbage.tif")
	testsupport.WriteFile(t, garbage, 128)
	if ok, err := v.Valid(ctx, garbage); err != nil || ok {
		t.Fatalf("expected garbage to be invalid, got %v %v", ok, err)
	}
}

func TestHDF5Validation(t *testing.T) {
	dir := t.TempDir()
	v := validator.New()
	ctx := context.Background()
	sig := []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

	atStart := filepath.Join(dir, "a.ims")
	testsupport.WriteWithHeader(t, atStart, sig, 2048)
	if ok, err := v.Valid(ctx, atStart); err != nil || !ok {
		t.Fatalf("expected valid volume, got %v %v", ok, err)
	}

	shifted := filepath.Join(dir, "b.ims")
	data := make([]byte, 2048)
	copy(data[1024:], sig)
	if err := os.WriteFile(shifted, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, err := v.Valid(ctx, shifted); err != nil || !ok {
		t.Fatalf("expected superblock at 1024 to validate, got %v %v", ok, err)
	}

	broken := filepath.Join(dir, "c.ims")
	testsupport.WriteFile(t, broken, 4096)
	if ok, err := v.Valid(ctx, broken); err != nil || ok {
		t.Fatalf("expected broken volume to be invalid, got %v %v", ok, err)
	}
}

func TestMissingAndUnknown(t *testing.T) {
	v := validator.New()
	ctx := context.Background()

	_, err := v.Valid(ctx, filepath.Join(t.TempDir(), "absent.ims"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = v.Valid(ctx, "notes.txt")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBigTIFFValidation(t *testing.T) {
	dir := t.TempDir()
	v := validator.New()
	ctx := context.Background()

	header := []byte{'I', 'I', 43, 0, 8, 0, 0, 0, 16, 0, 0, 0, 0, 0, 0, 0}
	good := filepath.Join(dir, "tile_000.btf")
	testsupport.WriteWithHeader(t, good, header, 256)
	if ok, err := v.Valid(ctx, good); err != nil || !ok {
		t.Fatalf("expected valid bigtiff, got %v %v", ok, err)
	}

	short := filepath.Join(dir, "tile_001.btf")
	testsupport.WriteWithHeader(t, short, header, 16)
	if ok, err := v.Valid(ctx, short); err != nil || ok {
		t.Fatalf("expected directory past end of file to be invalid, got %v %v", ok, err)
	}

	classic := filepath.Join(dir, "tile_002.btf")
	writeTIFF(t, classic)
	if ok, err := v.Valid(ctx, classic); err != nil || !ok {
		t.Fatalf("expected classic tiff in .btf to validate, got %v %v", ok, err)
	}
}
