package daemon_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"hopper/internal/daemon"
)

func TestLockAcquireReleaseCycle(t *testing.T) {
	dir := t.TempDir()
	lock := daemon.NewLock(dir)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "hopper.pid"))
	if err != nil {
		t.Fatalf("expected pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid != os.Getpid() {
		t.Fatalf("pid file content %q, want %d", data, os.Getpid())
	}

	rival := daemon.NewLock(dir)
	if err := rival.Acquire(); err == nil {
		t.Fatal("expected rival acquire to fail while lock held")
	} else if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected rival error: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "hopper.pid")); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, stat err %v", err)
	}
	if err := rival.Acquire(); err != nil {
		t.Fatalf("expected rival acquire after release: %v", err)
	}
	if err := rival.Release(); err != nil {
		t.Fatalf("rival Release failed: %v", err)
	}
}

func TestLockCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	lock := daemon.NewLock(dir)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()

	if running, _ := daemon.Probe(dir); running {
		t.Fatal("expected no running instance in fresh directory")
	}

	lock := daemon.NewLock(dir)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	running, pid := daemon.Probe(dir)
	if !running {
		t.Fatal("expected probe to see held lock")
	}
	if pid != os.Getpid() {
		t.Fatalf("probe pid = %d, want %d", pid, os.Getpid())
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if running, _ := daemon.Probe(dir); running {
		t.Fatal("expected no running instance after release")
	}
}
