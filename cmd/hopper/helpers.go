package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hopper/internal/config"
)

const durationDisplayUnit = time.Second

func formatModTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil {
		return "never"
	}
	return formatModTime(*ts)
}

// failedEntry pairs a parked definition with the first line of its error note.
type failedEntry struct {
	Name   string
	Reason string
}

// listFailedEntries scans the failed directory for parked definitions and
// reads the sibling error notes the pipeline leaves next to them.
func listFailedEntries(cfg *config.Config) ([]failedEntry, error) {
	entries, err := os.ReadDir(cfg.Paths.FailedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read failed directory: %w", err)
	}

	ext := cfg.Workflow.DefinitionExt
	failed := make([]failedEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		if strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), "-error") {
			continue
		}
		failed = append(failed, failedEntry{
			Name:   name,
			Reason: failureReason(cfg, name),
		})
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Name < failed[j].Name })
	return failed, nil
}

// failureReason extracts the error message line from a definition's error
// note, or an empty string when the note is missing.
func failureReason(cfg *config.Config, name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	data, err := os.ReadFile(filepath.Join(cfg.Paths.FailedDir, stem+"-error.txt"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "Error: "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
