package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hopper/internal/config"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv builds an isolated install: stub collaborator binaries on
// PATH, a config file pointing every path into a temp dir, and the directory
// tree created. Commands run against it through the real root command.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	binDir := filepath.Join(base, "bin")
	writeToolStubs(t, binDir)
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	configPath := filepath.Join(base, "hopper.toml")
	writeTestConfig(t, configPath, base, 10)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path, base string, maxPerHour int) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
queue_dir = %q
staging_dir = %q
drafts_dir = %q
completed_dir = %q
failed_dir = %q
log_dir = %q
state_file = %q

[api]
key = "sk-test"
poll_interval = 1

[rate_limit]
max_per_hour = %d
min_interval_minutes = 0

[workflow]
queue_poll_interval = 1

[tools]
collector = "fake-collector"
builder = "fake-builder"
submitter = "fake-submitter"
timeout = 30

[logging]
level = "error"
`,
		filepath.Join(base, "queue"),
		filepath.Join(base, "staging"),
		filepath.Join(base, "drafts"),
		filepath.Join(base, "completed"),
		filepath.Join(base, "failed"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "state.json"),
		maxPerHour,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeToolStubs installs shell-script stand-ins for the three collaborator
// commands. Each parses just enough flags to produce the artifact the
// pipeline expects next.
func writeToolStubs(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}

	stubs := map[string]string{
		"fake-collector": `#!/bin/sh
prp=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --prp-file) prp="$2"; shift 2 ;;
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if grep -q FAILME "$prp" 2>/dev/null; then
  echo "collector cannot parse definition" >&2
  exit 3
fi
printf '{"context": "stub"}\n' > "$out"
`,
		"fake-builder": `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '{"custom_id": "stub"}\n' > "$out"
`,
		"fake-submitter": `#!/bin/sh
dir=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output-dir) dir="$2"; shift 2 ;;
    *) shift ;;
  esac
done
mkdir -p "$dir"
printf '# Generated\n' > "$dir/result-001.md"
`,
	}
	for name, body := range stubs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
}

func queueDefinition(t *testing.T, env *cliTestEnv, name string) string {
	t.Helper()
	path := filepath.Join(env.cfg.Paths.QueueDir, name)
	content := "# " + name + "\n\nDescribe the artifact to generate.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func fileExistsAt(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
