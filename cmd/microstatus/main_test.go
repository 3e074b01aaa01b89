package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"microstatus/internal/config"
	"microstatus/internal/store"
	"microstatus/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	for _, key := range []string{"NTFY_TOPIC", "SLACK_TOKEN", "SLACK_CHANNEL", "DASHBOARD_URL"} {
		t.Setenv(key, "")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithoutArchive())
	base := filepath.Dir(cfg.Paths.StateDir)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q
fast_root = %q
archive_root = ""
fast_trash = %q

[queues.stitch]
root = %q

[queues.denoise]
root = %q

[queues.build]
root = %q

[storage]
probe_timeout = 2

[[storage.resources]]
name = "fast"
path = %q

[logging]
level = "error"
`,
		cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.FastRoot, cfg.Paths.FastTrash,
		cfg.Queues.Stitch.Root, cfg.Queues.Denoise.Root, cfg.Queues.Build.Root,
		filepath.Dir(cfg.Paths.StateDir),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliTestEnv) openStore(t *testing.T) *store.Store {
	t.Helper()
	cfg, _, _, err := config.Load(e.configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return testsupport.MustOpenStore(t, cfg)
}

func TestStatusOnEmptyStore(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No datasets match") {
		t.Fatalf("expected empty listing, got:\n%s", out)
	}
	if !strings.Contains(out, "Built Volume") {
		t.Fatalf("expected title-cased phase labels, got:\n%s", out)
	}
}

func TestStatusListsDatasets(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.openStore(t)
	ds := testsupport.NewDataset(t, st, "smithlab", "CL0007", "brain_01")
	ds.ProcessingPhase = store.ProcessingPaused
	ds.PausedFrom = store.ProcessingDenoised
	ds.PauseReason = "broken_artifact"
	if err := st.Save(context.Background(), ds); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := env.run(t, "status", "--phase", "paused")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"smithlab/CL0007/brain_01", "Paused", "from Denoised: broken_artifact"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	out, err = env.run(t, "status", "--phase", "finished")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Contains(out, "brain_01") {
		t.Fatalf("finished filter should exclude the paused dataset:\n%s", out)
	}
}

func TestStatusRejectsUnknownPhase(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "status", "--phase", "bogus"); err == nil {
		t.Fatal("expected error for unknown phase")
	}
}

func TestWarningsListsRecords(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "warnings")
	if err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if !strings.Contains(out, "No storage warnings recorded") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	st := env.openStore(t)
	if err := st.UpsertWarning(context.Background(), store.Warning{Resource: "fast", Tier: "thr1", Active: true, MessageSent: true, UsedPercent: 91.5}); err != nil {
		t.Fatalf("UpsertWarning: %v", err)
	}
	out, err = env.run(t, "warnings")
	if err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if !strings.Contains(out, "thr1") || !strings.Contains(out, "91.5%") {
		t.Fatalf("expected warning row, got:\n%s", out)
	}
}

func TestTickDiscoversDataset(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := filepath.Join(env.cfg.Paths.FastRoot, "smithlab", "CL0007", "brain_01")
	testsupport.MustMkdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "vs_series.dat"), []byte("z_layers=1\nchannels=1\nunits_per_layer=2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "tick")
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !strings.Contains(out, "1 discovered") {
		t.Fatalf("expected one discovered dataset, got:\n%s", out)
	}

	st := env.openStore(t)
	got, err := st.FindByRelPath(context.Background(), filepath.Join("smithlab", "CL0007", "brain_01"))
	if err != nil {
		t.Fatalf("FindByRelPath: %v", err)
	}
	if got.ImagingPhase != store.ImagingInProgress {
		t.Fatalf("expected imaging in progress, got %s", got.ImagingPhase)
	}
}

func TestTestNotifyWithoutChannel(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "no notification channel configured") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestConfigValidateRunsPreflight(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "config", "validate", "--skip-checks")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = env.run(t, "config", "validate")
	if err == nil {
		t.Fatal("expected preflight failures before directories exist")
	}
	if !strings.Contains(out, "FAIL") {
		t.Fatalf("expected failing rows, got:\n%s", out)
	}
}
