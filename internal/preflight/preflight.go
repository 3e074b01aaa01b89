package preflight

import (
	"context"

	"microstatus/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The archive tier and dashboard are only checked when configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Fast root", cfg.Paths.FastRoot))
	results = append(results, CheckDirectoryAccess("Fast trash", cfg.Paths.FastTrash))
	if cfg.HasArchiveTier() {
		results = append(results, CheckDirectoryAccess("Archive root", cfg.Paths.ArchiveRoot))
		results = append(results, CheckDirectoryAccess("Archive trash", cfg.Paths.ArchiveTrash))
	}
	if cfg.Paths.AnalysisDir != "" {
		results = append(results, CheckDirectoryAccess("Analysis directory", cfg.Paths.AnalysisDir))
	}

	results = append(results, CheckQueue("Stitch", cfg.Queues.Stitch)...)
	results = append(results, CheckQueue("Denoise", cfg.Queues.Denoise)...)
	results = append(results, CheckQueue("Build", cfg.Queues.Build)...)
	if cfg.Queues.Move.Root != cfg.Queues.Stitch.Root {
		results = append(results, CheckQueue("Move", cfg.Queues.Move)...)
	}

	if cfg.Dashboard.URL != "" {
		results = append(results, CheckDashboard(ctx, cfg.Dashboard))
	}
	return results
}

// Failed reports how many results did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
