package validator

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"microstatus/internal/services"
)

// Validator reports whether the artifact at path opens successfully. A file
// that cannot be read at all yields an error wrapping services.ErrUnreadable.
type Validator interface {
	Valid(ctx context.Context, path string) (bool, error)
}

// Files dispatches on the file extension.
type Files struct{}

// New returns the extension-dispatching validator.
func New() Files { return Files{} }

// Valid implements Validator.
func (Files) Valid(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, services.Wrap(services.ErrTimeout, "validate", "open", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tif", ".tiff":
		return validTIFF(path)
	case ".btf":
		return validBigTIFF(path)
	case ".ims", ".h5", ".hdf5":
		return validHDF5(path)
	default:
		return false, services.Wrap(services.ErrValidation, "validate", "dispatch",
			fmt.Sprintf("no validator for %q", ext), nil)
	}
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "validate", "open", path, err)
		}
		return nil, services.Wrap(services.ErrUnreadable, "validate", "open", path, err)
	}
	return f, nil
}

func validTIFF(path string) (bool, error) {
	f, err := open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if _, err := tiff.DecodeConfig(f); err != nil {
		var unsupported tiff.UnsupportedError
		if errors.As(err, &unsupported) {
			// Structure parsed; the decoder just cannot render this layout.
			return true, nil
		}
		return false, nil
	}
	return true, nil
}

var hdf5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// hdf5Offsets are the positions a superblock may start at: 0, then 512
// doubling up to the file size.
func hdf5Offsets(size int64) []int64 {
	offsets := []int64{0}
	for off := int64(512); off+int64(len(hdf5Signature)) <= size; off *= 2 {
		offsets = append(offsets, off)
	}
	return offsets
}

func validHDF5(path string) (bool, error) {
	f, err := open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, services.Wrap(services.ErrUnreadable, "validate", "stat", path, err)
	}
	buf := make([]byte, len(hdf5Signature))
	for _, off := range hdf5Offsets(info.Size()) {
		if _, err := f.ReadAt(buf, off); err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, services.Wrap(services.ErrUnreadable, "validate", "read", path, err)
		}
		if bytes.Equal(buf, hdf5Signature) {
			return true, nil
		}
	}
	return false, nil
}

// validBigTIFF accepts classic TIFF through the decoder and BigTIFF by its
// header: byte order, version 43, offset size 8 and a first directory
// offset that lies inside the file.
func validBigTIFF(path string) (bool, error) {
	f, err := open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, services.Wrap(services.ErrUnreadable, "validate", "stat", path, err)
	}
	header := make([]byte, 16)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, services.Wrap(services.ErrUnreadable, "validate", "read", path, err)
	}
	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return false, nil
	}
	switch order.Uint16(header[2:4]) {
	case 42:
		return validTIFF(path)
	case 43:
	default:
		return false, nil
	}
	if order.Uint16(header[4:6]) != 8 || order.Uint16(header[6:8]) != 0 {
		return false, nil
	}
	ifd := order.Uint64(header[8:16])
	return ifd >= 16 && ifd < uint64(info.Size()), nil
}
