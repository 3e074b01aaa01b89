package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrMissing reports that a probed file does not exist.
var ErrMissing = errors.New("missing")

// CountFiles counts regular files in dir whose names match pattern. A
// missing directory counts as empty.
func CountFiles(dir, pattern string) (int64, error) {
	matches, err := listFiles(dir, pattern)
	if err != nil {
		return 0, err
	}
	return int64(len(matches)), nil
}

// Uniformity summarizes the files of a produced-unit directory.
type Uniformity struct {
	Count    int64
	Size     int64
	Smallest int64
	Uniform  bool
}

// CheckUniform reports the count of matching files and whether they all share
// one non-zero size. Writers that are still flushing leave smaller files, so
// uniform sizes are the signal that a unit set is complete.
func CheckUniform(dir, pattern string) (Uniformity, error) {
	matches, err := listFiles(dir, pattern)
	if err != nil {
		return Uniformity{}, err
	}
	out := Uniformity{Count: int64(len(matches)), Uniform: len(matches) > 0}
	for i, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				out.Uniform = false
				continue
			}
			return Uniformity{}, fmt.Errorf("stat %s: %w", path, err)
		}
		size := info.Size()
		if i == 0 {
			out.Size = size
			out.Smallest = size
		}
		if size < out.Smallest {
			out.Smallest = size
		}
		if size != out.Size || size == 0 {
			out.Uniform = false
		}
	}
	return out, nil
}

// FileSize returns the byte size of path or ErrMissing.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", path, ErrMissing)
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// SubdirsDescending lists subdirectories of dir matching pattern, highest
// name first.
func SubdirsDescending(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); !ok {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// ListFiles returns matching regular files in dir sorted by name.
func ListFiles(dir, pattern string) ([]string, error) {
	return listFiles(dir, pattern)
}

func listFiles(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); !ok {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// DirSize sums the sizes of the regular files directly inside dir. A missing
// directory sums to zero.
func DirSize(dir string) (int64, error) {
	files, err := listFiles(dir, "*")
	if err != nil {
		return 0, err
	}
	var total int64
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("stat %s: %w", path, err)
		}
		total += info.Size()
	}
	return total, nil
}
