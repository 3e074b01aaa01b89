package testsupport

import (
	"path/filepath"
	"testing"

	"microstatus/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose every path lives under a unique temp
// directory. Storage resources and the dashboard are left empty so tests opt
// in to the collaborators they exercise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.FastRoot = filepath.Join(base, "fast", "acquire")
	cfgVal.Paths.ArchiveRoot = filepath.Join(base, "archive", "acquire")
	cfgVal.Paths.FastTrash = filepath.Join(base, "fast", "trash")
	cfgVal.Paths.ArchiveTrash = filepath.Join(base, "archive", "trash")
	cfgVal.Queues.Stitch.Root = filepath.Join(base, "queues", "stitch")
	cfgVal.Queues.Denoise.Root = filepath.Join(base, "queues", "denoise")
	cfgVal.Queues.Build.Root = filepath.Join(base, "queues", "build")
	cfgVal.Queues.Move.Root = cfgVal.Queues.Stitch.Root
	cfgVal.Storage.Resources = nil

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithoutArchive disables the archive tier.
func WithoutArchive() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.ArchiveRoot = ""
		b.cfg.Paths.ArchiveTrash = ""
	}
}

// WithStallTimeout overrides the stall timeout in seconds.
func WithStallTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.StallTimeout = seconds
	}
}

// WithAnalysisOwners enables the analysis hand-off for owners.
func WithAnalysisOwners(owners ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.Owners = owners
		b.cfg.Paths.AnalysisDir = filepath.Join(b.baseDir, "analysis")
	}
}

// WithUnitChecks toggles per-unit integrity checks during imaging.
func WithUnitChecks(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.CheckUnits = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
