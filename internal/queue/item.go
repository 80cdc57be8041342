package queue

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Item is one definition file awaiting processing. The file's base name is
// the dedup key; the modification time is the ordering key.
type Item struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Stem returns the item name without its extension. Derived artifact names
// are built from the stem.
func (i Item) Stem() string {
	return strings.TrimSuffix(i.Name, filepath.Ext(i.Name))
}

// DisplayTitle renders a human-friendly title from the item name for status
// output and notifications.
func (i Item) DisplayTitle() string {
	stem := i.Stem()
	if stem == "" {
		return "Untitled Item"
	}
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range stem {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Item"
	}
	return cases.Title(language.Und).String(title)
}
