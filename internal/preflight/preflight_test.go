package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"microstatus/internal/config"
	"microstatus/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckQueueReportsEachDirectory(t *testing.T) {
	root := t.TempDir()
	q := config.Queue{Root: root, Queued: "queued", Processing: "processing", Complete: "complete", Error: "error"}
	for _, name := range []string{"queued", "processing", "complete"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := CheckQueue("Stitch", q)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if Failed(results) != 1 || results[3].Passed {
		t.Fatalf("expected only the error directory to fail, got %+v", results)
	}
	if results[3].Name != "Stitch error" {
		t.Fatalf("unexpected name %q", results[3].Name)
	}
}

func TestCheckDashboard_NotConfigured(t *testing.T) {
	result := CheckDashboard(context.Background(), config.Dashboard{})
	if !result.Passed {
		t.Fatalf("expected pass when no dashboard configured, got: %s", result.Detail)
	}
}

func TestCheckDashboard_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := CheckDashboard(context.Background(), config.Dashboard{URL: srv.URL + "/", RequestTimeout: 2})
	if result.Passed {
		t.Fatal("expected failure for failing dashboard")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MissingDirectoriesFail(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutArchive())

	results := RunAll(context.Background(), cfg)
	// fast root, fast trash and twelve queue directories; move shares stitch
	if len(results) != 14 {
		t.Fatalf("expected 14 results, got %d", len(results))
	}
	if Failed(results) != len(results) {
		t.Fatalf("expected every check to fail before directories exist, %d passed", len(results)-Failed(results))
	}
}

func TestRunAll_PassesOnPreparedTree(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dirs := []string{cfg.Paths.FastRoot, cfg.Paths.FastTrash, cfg.Paths.ArchiveRoot, cfg.Paths.ArchiveTrash}
	for _, q := range []config.Queue{cfg.Queues.Stitch, cfg.Queues.Denoise, cfg.Queues.Build} {
		dirs = append(dirs,
			filepath.Join(q.Root, q.Queued),
			filepath.Join(q.Root, q.Processing),
			filepath.Join(q.Root, q.Complete),
			filepath.Join(q.Root, q.Error),
		)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), cfg)
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}
