package queue

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hopper/internal/logging"
)

// Scanner lists definition files in the queue directory.
type Scanner struct {
	dir    string
	ext    string
	logger *slog.Logger
}

// NewScanner builds a scanner over dir for files with the given extension
// (including the leading dot).
func NewScanner(dir, ext string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{dir: dir, ext: ext, logger: logger}
}

// List returns pending items: every regular file in the queue directory with
// the definition extension whose name is not in the completed set. Hidden
// files and subdirectories are skipped. Items are ordered oldest first by
// modification time, ties broken by name.
func (s *Scanner) List(completed map[string]struct{}) ([]Item, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan queue directory %q: %w", s.dir, err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if filepath.Ext(name) != s.ext {
			continue
		}
		if _, done := completed[name]; done {
			continue
		}
		path := filepath.Join(s.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			s.logger.Debug("skipping unreadable queue entry",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		items = append(items, Item{Name: name, Path: path, ModTime: info.ModTime()})
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].ModTime.Equal(items[j].ModTime) {
			return items[i].ModTime.Before(items[j].ModTime)
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}
