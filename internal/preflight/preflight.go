package preflight

import (
	"context"

	"hopper/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check the run loop depends on: work
// directories, free disk space, the API credential, collaborator binaries,
// and the state file. Results are advisory; callers decide fatality.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Queue directory", cfg.Paths.QueueDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Drafts directory", cfg.Paths.DraftsDir),
		CheckDirectoryAccess("Completed directory", cfg.Paths.CompletedDir),
		CheckDirectoryAccess("Failed directory", cfg.Paths.FailedDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir),
		CheckAPICredential(cfg),
		CheckStateFile(cfg),
	}
	for _, status := range CheckCollaborators(cfg) {
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available,
			Detail: collaboratorDetail(status),
		})
	}
	return results
}

// FirstFailure returns the first failed check, if any.
func FirstFailure(results []Result) (Result, bool) {
	for _, result := range results {
		if !result.Passed {
			return result, true
		}
	}
	return Result{}, false
}
