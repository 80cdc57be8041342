package preflight

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"hopper/internal/config"
	"hopper/internal/deps"
	"hopper/internal/logging"
	"hopper/internal/state"
)

// minFreeBytes is the little headroom the staging directory needs for
// context, request, and result artifacts.
const minFreeBytes = 100 << 20

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has room for staging
// artifacts.
func CheckFreeSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%s free)", path, formatBytes(free))
	if free < minFreeBytes {
		return Result{Name: name, Detail: detail + " below minimum"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckAPICredential verifies the batch API key is present. Validity is only
// proven by the submitter; this catches the common unset-environment case
// before any collaborator runs.
func CheckAPICredential(cfg *config.Config) Result {
	const name = "API credential"
	if strings.TrimSpace(cfg.API.Key) == "" {
		return Result{Name: name, Detail: "missing (set ANTHROPIC_API_KEY or [api] key)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckStateFile verifies the state file can be loaded. A missing file is
// fine (the store starts fresh); only real I/O trouble fails the check.
func CheckStateFile(cfg *config.Config) Result {
	const name = "State file"
	path := cfg.Paths.StateFile
	store, err := state.Open(path, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	snapshot := store.Snapshot()
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d completed items)", path, len(snapshot.CompletedItems))}
}

// CheckCollaborators evaluates the three external commands the pipeline
// shells out to. Both the run preflight and the status command use this.
func CheckCollaborators(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Collector",
			Command:     cfg.Tools.Collector,
			Description: "Gathers generation context for a definition",
		},
		{
			Name:        "Builder",
			Command:     cfg.Tools.Builder,
			Description: "Builds batch request files from context",
		},
		{
			Name:        "Submitter",
			Command:     cfg.Tools.Submitter,
			Description: "Submits batches and polls for results",
		},
	}
	return deps.CheckBinaries(requirements)
}

func collaboratorDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	return status.Detail
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
