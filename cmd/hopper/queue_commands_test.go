package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestCLIQueueAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(env.baseDir, "widget.md")
	if err := os.WriteFile(source, []byte("# widget\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "add", source}, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "Queued widget.md")

	_, _, err = runCLI(t, []string{"queue", "add", source}, env.configPath)
	if err == nil {
		t.Fatal("expected duplicate add to fail")
	}
	requireContains(t, err.Error(), "already queued")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "widget.md")
}

func TestCLIQueueAddRejectsWrongExtension(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(env.baseDir, "widget.txt")
	if err := os.WriteFile(source, []byte("nope"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	_, _, err := runCLI(t, []string{"queue", "add", source}, env.configPath)
	if err == nil {
		t.Fatal("expected extension rejection")
	}
	requireContains(t, err.Error(), ".md")
}

func TestCLIQueueListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestCLIQueueListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	queueDefinition(t, env, "machine.md")

	out, _, err := runCLI(t, []string{"queue", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}

	var items []struct {
		Name     string `json:"name"`
		Modified string `json:"modified"`
	}
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("parse JSON output: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0].Name != "machine.md" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestCLIQueueCompletedListsArtifacts(t *testing.T) {
	env := setupCLITestEnv(t)
	queueDefinition(t, env, "done.md")

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "completed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue completed: %v", err)
	}
	requireContains(t, out, "done.md")

	out, _, err = runCLI(t, []string{"queue", "completed", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue completed --json: %v", err)
	}
	var entries []struct {
		Name      string `json:"name"`
		Artifacts int    `json:"artifacts"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("parse JSON output: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Name != "done.md" || entries[0].Artifacts != 1 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestCLIQueueFailedAndRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	badPath := filepath.Join(env.cfg.Paths.QueueDir, "broken.md")
	if err := os.WriteFile(badPath, []byte("# broken\n\nFAILME\n"), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	requireContains(t, out, "broken.md")
	requireContains(t, out, "collect")

	out, _, err = runCLI(t, []string{"queue", "retry", "broken.md"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Requeued broken.md")

	if !fileExistsAt(filepath.Join(env.cfg.Paths.QueueDir, "broken.md")) {
		t.Fatal("expected definition back in queue")
	}
	if fileExistsAt(filepath.Join(env.cfg.Paths.FailedDir, "broken-error.txt")) {
		t.Fatal("expected error note removed on retry")
	}

	out, _, err = runCLI(t, []string{"queue", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue failed after retry: %v", err)
	}
	requireContains(t, out, "No failed definitions")
}

func TestCLIQueueRetryAll(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, name := range []string{"first.md", "second.md"} {
		path := filepath.Join(env.cfg.Paths.QueueDir, name)
		if err := os.WriteFile(path, []byte("# x\n\nFAILME\n"), 0o644); err != nil {
			t.Fatalf("write definition: %v", err)
		}
	}

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "retry", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry --all: %v", err)
	}
	requireContains(t, out, "Requeued first.md")
	requireContains(t, out, "Requeued second.md")
}

func TestCLIQueueRetryRequiresTarget(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "retry"}, env.configPath)
	if err == nil {
		t.Fatal("expected retry without target to fail")
	}
	requireContains(t, err.Error(), "--all")
}

func TestCLIQueueRetryUnknownName(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "retry", "ghost.md"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "ghost.md is not in the failed directory")
}

func TestCLIQueueCleanPrunesStaging(t *testing.T) {
	env := setupCLITestEnv(t)
	queueDefinition(t, env, "messy.md")

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !fileExistsAt(filepath.Join(env.cfg.Paths.StagingDir, "messy-context.json")) {
		t.Fatal("expected staging artifacts before clean")
	}

	out, _, err := runCLI(t, []string{"queue", "clean"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clean: %v", err)
	}
	requireContains(t, out, "Removed 6 staging artifact(s)")

	if fileExistsAt(filepath.Join(env.cfg.Paths.StagingDir, "messy-context.json")) {
		t.Fatal("expected staging context pruned")
	}
	if !fileExistsAt(filepath.Join(env.cfg.Paths.CompletedDir, "messy", "result-001.md")) {
		t.Fatal("expected completed artifact untouched")
	}
}
