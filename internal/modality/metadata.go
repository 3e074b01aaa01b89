package modality

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"microstatus/internal/services"
)

// readMetadata parses a key=value metadata file. Keys are lower-cased.
func readMetadata(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "setup", "read metadata", path, err)
		}
		return nil, services.Wrap(services.ErrTransient, "setup", "read metadata", path, err)
	}
	out := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return out, nil
}

func positiveInt(meta map[string]string, path, key string) (int, error) {
	raw, ok := meta[key]
	if !ok {
		return 0, services.Wrap(services.ErrValidation, "setup", "read metadata",
			fmt.Sprintf("%s: %s missing", path, key), nil)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, services.Wrap(services.ErrValidation, "setup", "read metadata",
			fmt.Sprintf("%s: %s must be a positive integer, got %q", path, key, raw), err)
	}
	return n, nil
}

// requireDir reports a missing acquisition directory as ErrNotFound so the
// caller can treat the scan as "no advance".
func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "imaging", "scan", dir, err)
		}
		return services.Wrap(services.ErrTransient, "imaging", "scan", dir, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "imaging", "scan", dir+" is not a directory", nil)
	}
	return nil
}
