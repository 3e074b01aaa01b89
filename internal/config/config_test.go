package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"microstatus/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "microstatus")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "microstatus.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Queues.Move.Root != cfg.Queues.Stitch.Root {
		t.Fatalf("expected move queue to share stitch root, got %q", cfg.Queues.Move.Root)
	}
	if cfg.Pipeline.Interval().Seconds() != 30 {
		t.Fatalf("unexpected scan interval: %v", cfg.Pipeline.Interval())
	}
	if cfg.Pipeline.Stall().Seconds() != 600 {
		t.Fatalf("unexpected stall timeout: %v", cfg.Pipeline.Stall())
	}
	if len(cfg.Storage.Resources) != 2 {
		t.Fatalf("expected fast and archive resources, got %+v", cfg.Storage.Resources)
	}
	if cfg.Storage.Threshold0 != 85 || cfg.Storage.Threshold1 != 90 || cfg.Storage.Critical != 94 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Storage)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
state_dir = "~/state"
fast_root = "~/fast"
archive_root = ""
fast_trash = "~/trash"

[queues.stitch]
root = "~/queues/stitch"
queued_dir = "queueStitch"

[pipeline]
stall_timeout = 120
ignore_markers = [" DEMO ", ""]

[storage]
threshold0 = 70
threshold1 = 80
critical = 90

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config %q to exist, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.FastRoot != filepath.Join(tempHome, "fast") {
		t.Fatalf("unexpected fast root: %q", cfg.Paths.FastRoot)
	}
	if cfg.HasArchiveTier() {
		t.Fatal("expected archive tier to be disabled")
	}
	if cfg.Queues.Stitch.Queued != "queueStitch" || cfg.Queues.Stitch.Error != "error" {
		t.Fatalf("unexpected stitch queue: %+v", cfg.Queues.Stitch)
	}
	if cfg.Pipeline.StallTimeout != 120 {
		t.Fatalf("unexpected stall timeout: %d", cfg.Pipeline.StallTimeout)
	}
	if len(cfg.Pipeline.IgnoreMarkers) != 1 || cfg.Pipeline.IgnoreMarkers[0] != "demo" {
		t.Fatalf("unexpected ignore markers: %#v", cfg.Pipeline.IgnoreMarkers)
	}
	if len(cfg.Storage.Resources) != 1 || cfg.Storage.Resources[0].Name != "fast" {
		t.Fatalf("expected only the fast resource, got %+v", cfg.Storage.Resources)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[pipeline]\nbogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadReadsSecretsFromDotEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SLACK_TOKEN", "")
	t.Setenv("SLACK_CHANNEL", "")
	os.Unsetenv("SLACK_TOKEN")
	os.Unsetenv("SLACK_CHANNEL")
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SLACK_TOKEN=xoxb-test\nSLACK_CHANNEL=C123\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.SlackToken != "xoxb-test" || cfg.Notifications.SlackChannel != "C123" {
		t.Fatalf("expected slack secrets from .env, got %+v", cfg.Notifications)
	}
}

func TestValidateThresholdOrdering(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "inverted thresholds",
			mutate:  func(c *config.Config) { c.Storage.Threshold1 = 80 },
			wantErr: "threshold0 < threshold1 < critical",
		},
		{
			name:    "critical above 100",
			mutate:  func(c *config.Config) { c.Storage.Critical = 101 },
			wantErr: "within (0, 100]",
		},
		{
			name:    "zero stall timeout",
			mutate:  func(c *config.Config) { c.Pipeline.StallTimeout = 0 },
			wantErr: "pipeline.stall_timeout",
		},
		{
			name: "duplicate resource",
			mutate: func(c *config.Config) {
				c.Storage.Resources = []config.Resource{{Name: "fast", Path: "/a"}, {Name: "fast", Path: "/b"}}
			},
			wantErr: "duplicated",
		},
		{
			name:    "analysis owners without dir",
			mutate:  func(c *config.Config) { c.Analysis.Owners = []string{"lab"} },
			wantErr: "paths.analysis_dir",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Queues.Denoise.Processing != "processing" {
		t.Fatalf("expected queue defaults to survive partial section, got %+v", cfg.Queues.Denoise)
	}
}
