package ticket

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"microstatus/internal/config"
	"microstatus/internal/services"
)

// ErrDuplicate reports more than one ticket for a (dataset, stage) pair.
var ErrDuplicate = errors.New("duplicate ticket")

// Found describes where a ticket currently lives.
type Found struct {
	Location Location
	Path     string
}

// Gateway reads and writes tickets under the configured stage directories.
type Gateway struct {
	queues map[Stage]config.Queue
}

// NewGateway builds a Gateway from the queue configuration.
func NewGateway(cfg *config.Config) *Gateway {
	return &Gateway{queues: map[Stage]config.Queue{
		StageStitch:  cfg.Queues.Stitch,
		StageDenoise: cfg.Queues.Denoise,
		StageBuild:   cfg.Queues.Build,
		StageMove:    cfg.Queues.Move,
	}}
}

// Dir returns the directory of stage that represents loc.
func (g *Gateway) Dir(stage Stage, loc Location) string {
	q, ok := g.queues[stage]
	if !ok {
		return ""
	}
	var name string
	switch loc {
	case LocationQueued:
		name = q.Queued
	case LocationProcessing:
		name = q.Processing
	case LocationComplete:
		name = q.Complete
	case LocationError:
		name = q.Error
	default:
		return ""
	}
	return filepath.Join(q.Root, name)
}

// Locate searches all four directories of stage for files matching pattern.
// No match yields LocationNone; more than one match is a protocol violation.
func (g *Gateway) Locate(stage Stage, pattern string) (Found, error) {
	var hits []Found
	for _, loc := range Locations {
		matches, err := g.List(stage, loc, pattern)
		if err != nil {
			return Found{}, err
		}
		for _, path := range matches {
			hits = append(hits, Found{Location: loc, Path: path})
		}
	}
	switch len(hits) {
	case 0:
		return Found{Location: LocationNone}, nil
	case 1:
		return hits[0], nil
	default:
		paths := make([]string, 0, len(hits))
		for _, h := range hits {
			paths = append(paths, h.Path)
		}
		return hits[0], services.Wrap(services.ErrProtocolViolation, string(stage), "locate ticket",
			fmt.Sprintf("%d tickets match %s: %v", len(hits), pattern, paths), ErrDuplicate)
	}
}

// List returns matching ticket files in one directory, oldest name first. A
// missing directory lists as empty.
func (g *Gateway) List(stage Stage, loc Location, pattern string) ([]string, error) {
	dir := g.Dir(stage, loc)
	if dir == "" {
		return nil, fmt.Errorf("unknown queue %s/%s", stage, loc)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, string(stage), "list tickets", dir, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || isTempName(entry.Name()) {
			continue
		}
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("ticket pattern %q: %w", pattern, err)
		}
		if ok {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Enqueue writes a ticket named name into the queued directory of stage
// unless a ticket with that name already exists in any of the four
// directories. It reports whether a new ticket was written.
func (g *Gateway) Enqueue(stage Stage, name string, content Content) (bool, error) {
	found, err := g.Locate(stage, escapeGlob(name))
	if err != nil {
		return false, err
	}
	if found.Location != LocationNone {
		return false, nil
	}

	dir := g.Dir(stage, LocationQueued)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return false, services.Wrap(services.ErrTransient, string(stage), "enqueue", dir, err)
	}
	tmp := filepath.Join(dir, tempPrefix+name)
	if err := os.WriteFile(tmp, content.Encode(), 0o664); err != nil {
		_ = os.Remove(tmp)
		return false, services.Wrap(services.ErrTransient, string(stage), "enqueue", "write ticket", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmp)
		return false, services.Wrap(services.ErrTransient, string(stage), "enqueue", "publish ticket", err)
	}
	return true, nil
}

// Requeue moves the ticket matching pattern back into queued so the stage is
// retried. It is a no-op when the ticket is already outstanding and reports
// whether a ticket was moved.
func (g *Gateway) Requeue(stage Stage, pattern string) (bool, error) {
	found, err := g.Locate(stage, pattern)
	if err != nil {
		return false, err
	}
	switch found.Location {
	case LocationQueued:
		return false, nil
	case LocationNone:
		return false, services.Wrap(services.ErrProtocolViolation, string(stage), "requeue",
			fmt.Sprintf("no ticket matches %s", pattern), nil)
	}

	dir := g.Dir(stage, LocationQueued)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return false, services.Wrap(services.ErrTransient, string(stage), "requeue", dir, err)
	}
	target := filepath.Join(dir, filepath.Base(found.Path))
	if err := os.Rename(found.Path, target); err != nil {
		return false, services.Wrap(services.ErrTransient, string(stage), "requeue", found.Path, err)
	}
	return true, nil
}

// Read returns the raw ticket body at path.
func (g *Gateway) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "", "read ticket", path, err)
		}
		return nil, services.Wrap(services.ErrTransient, "", "read ticket", path, err)
	}
	return data, nil
}

const tempPrefix = ".tmp-"

func isTempName(name string) bool {
	return len(name) > len(tempPrefix) && name[:len(tempPrefix)] == tempPrefix
}
