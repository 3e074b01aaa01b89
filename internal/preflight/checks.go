package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"microstatus/internal/config"
	"microstatus/internal/services/dashboard"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckQueue verifies every directory of one ticket queue.
func CheckQueue(name string, q config.Queue) []Result {
	dirs := []struct {
		label string
		path  string
	}{
		{"queued", filepath.Join(q.Root, q.Queued)},
		{"processing", filepath.Join(q.Root, q.Processing)},
		{"complete", filepath.Join(q.Root, q.Complete)},
		{"error", filepath.Join(q.Root, q.Error)},
	}
	results := make([]Result, 0, len(dirs))
	for _, d := range dirs {
		results = append(results, CheckDirectoryAccess(name+" "+d.label, d.path))
	}
	return results
}

// CheckDashboard fetches the worker roster once.
func CheckDashboard(ctx context.Context, cfg config.Dashboard) Result {
	const name = "Dashboard"

	client, err := dashboard.New(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if client == nil {
		return Result{Name: name, Passed: true, Detail: "not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	roster, err := client.Roster(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("roster fetch failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable (%d workers)", len(roster))}
}
