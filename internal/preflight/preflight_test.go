package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hopper/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.QueueDir = filepath.Join(root, "queue")
	cfg.Paths.StagingDir = filepath.Join(root, "staging")
	cfg.Paths.DraftsDir = filepath.Join(root, "drafts")
	cfg.Paths.CompletedDir = filepath.Join(root, "completed")
	cfg.Paths.FailedDir = filepath.Join(root, "failed")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.StateFile = filepath.Join(root, "state.json")
	cfg.API.Key = "sk-test"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return cfg
}

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

func TestCheckFreeSpace(t *testing.T) {
	result := CheckFreeSpace("space", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass on temp filesystem, got: %s", result.Detail)
	}
	if result.Detail == "" {
		t.Fatal("expected detail with free space")
	}
}

func TestCheckFreeSpace_MissingPath(t *testing.T) {
	result := CheckFreeSpace("space", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckAPICredential(t *testing.T) {
	cfg := testConfig(t)
	if result := CheckAPICredential(&cfg); !result.Passed {
		t.Fatalf("expected pass with key set, got: %s", result.Detail)
	}
	cfg.API.Key = "   "
	if result := CheckAPICredential(&cfg); result.Passed {
		t.Fatal("expected failure with blank key")
	}
}

func TestCheckStateFile_MissingIsFine(t *testing.T) {
	cfg := testConfig(t)
	result := CheckStateFile(&cfg)
	if !result.Passed {
		t.Fatalf("expected pass for missing state file, got: %s", result.Detail)
	}
}

func TestCheckCollaborators(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.Collector = "sh"
	cfg.Tools.Builder = "sh"
	cfg.Tools.Submitter = "definitely-not-a-real-binary"

	statuses := CheckCollaborators(&cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 collaborator statuses, got %d", len(statuses))
	}
	if !statuses[0].Available || !statuses[1].Available {
		t.Fatalf("expected sh to resolve: %+v", statuses[:2])
	}
	if statuses[2].Available {
		t.Fatal("expected missing submitter to be unavailable")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_HealthyConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.Collector = "sh"
	cfg.Tools.Builder = "sh"
	cfg.Tools.Submitter = "sh"

	results := RunAll(context.Background(), &cfg)
	if len(results) != 12 {
		t.Fatalf("expected 12 results, got %d", len(results))
	}
	if failure, failed := FirstFailure(results); failed {
		t.Fatalf("check %q failed: %s", failure.Name, failure.Detail)
	}
}

func TestRunAll_ReportsMissingDirectory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.Collector = "sh"
	cfg.Tools.Builder = "sh"
	cfg.Tools.Submitter = "sh"
	if err := os.RemoveAll(cfg.Paths.QueueDir); err != nil {
		t.Fatalf("remove queue dir: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	failure, failed := FirstFailure(results)
	if !failed {
		t.Fatal("expected a failing check")
	}
	if failure.Name != "Queue directory" {
		t.Fatalf("first failure = %q, want queue directory", failure.Name)
	}
}
