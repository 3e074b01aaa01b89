package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, and its parent directories, holding size filler
// bytes. A size <= 0 writes a single byte so the file is never empty.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	MustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteWithHeader writes header padded with zero bytes up to size.
func WriteWithHeader(t testing.TB, path string, header []byte, size int64) {
	t.Helper()
	MustMkdir(t, filepath.Dir(path))
	data := header
	if pad := size - int64(len(header)); pad > 0 {
		data = append(append([]byte(nil), header...), make([]byte, pad)...)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MustMkdir creates dir and its parents.
func MustMkdir(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}
