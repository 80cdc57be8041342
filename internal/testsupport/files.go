package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteDefinition drops a definition file into dir and pins its modification
// time so scan ordering is deterministic. A zero modTime keeps the current
// time.
func WriteDefinition(t testing.TB, dir, name string, modTime time.Time) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	content := "# " + name + "\n\nDescribe the artifact to generate.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
	return path
}
