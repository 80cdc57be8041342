package pipeline

import (
	"os"
	"path/filepath"
)

// Layout resolves the artifact paths one queue item produces as it moves
// through the pipeline. Every path is derived from the item's stem, which is
// what makes resume decisions per-item rather than global.
type Layout struct {
	stem      string
	staging   string
	drafts    string
	completed string
}

// NewLayout builds the artifact layout for a definition stem.
func NewLayout(stem, stagingDir, draftsDir, completedDir string) Layout {
	return Layout{
		stem:      stem,
		staging:   stagingDir,
		drafts:    draftsDir,
		completed: completedDir,
	}
}

// Stem returns the definition stem the layout was built for.
func (l Layout) Stem() string {
	return l.stem
}

// ContextPath is the collector output for the draft phase.
func (l Layout) ContextPath() string {
	return filepath.Join(l.staging, l.stem+"-context.json")
}

// DraftRequestPath is the builder output for the draft phase.
func (l Layout) DraftRequestPath() string {
	return filepath.Join(l.staging, l.stem+"-draft-request.jsonl")
}

// DraftResultsDir receives the submitter's draft batch output.
func (l Layout) DraftResultsDir() string {
	return filepath.Join(l.staging, l.stem+"-draft-results")
}

// DraftPath is the relocated draft artifact with its deterministic name.
func (l Layout) DraftPath() string {
	return filepath.Join(l.drafts, l.stem+"-draft.md")
}

// FinalContextPath is the collector output for the final phase.
func (l Layout) FinalContextPath() string {
	return filepath.Join(l.staging, l.stem+"-final-context.json")
}

// FinalRequestPath is the builder output for the final phase.
func (l Layout) FinalRequestPath() string {
	return filepath.Join(l.staging, l.stem+"-final-request.jsonl")
}

// FinalResultsDir receives the submitter's final batch output.
func (l Layout) FinalResultsDir() string {
	return filepath.Join(l.staging, l.stem+"-final-results")
}

// CompletedDir holds the relocated final artifacts.
func (l Layout) CompletedDir() string {
	return filepath.Join(l.completed, l.stem)
}

// StagingArtifacts lists every staging path the item may leave behind, in no
// particular order. Used when pruning finished items.
func (l Layout) StagingArtifacts() []string {
	return []string{
		l.ContextPath(),
		l.DraftRequestPath(),
		l.DraftResultsDir(),
		l.FinalContextPath(),
		l.FinalRequestPath(),
		l.FinalResultsDir(),
	}
}

// StartPhase inspects which artifacts already exist on disk and elects the
// most advanced phase the item can resume from without redoing finished work.
// A completed item short-circuits straight to done; otherwise the newest
// surviving artifact wins and everything before it is skipped.
func (l Layout) StartPhase() Phase {
	switch {
	case dirHasEntries(l.CompletedDir()):
		return PhaseDone
	case fileExists(l.FinalRequestPath()):
		return PhaseFinalRateGate
	case fileExists(l.FinalContextPath()):
		return PhaseBuildFinalRequest
	case fileExists(l.DraftPath()):
		return PhaseCollectDraftContext
	case fileExists(l.DraftRequestPath()):
		return PhaseDraftRateGate
	case fileExists(l.ContextPath()):
		return PhaseBuildDraftRequest
	default:
		return PhaseCollectContext
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func dirHasEntries(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	return len(entries) > 0
}
