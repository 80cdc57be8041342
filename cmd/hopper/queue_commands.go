package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"hopper/internal/config"
	"hopper/internal/fileutil"
	"hopper/internal/logging"
	"hopper/internal/pipeline"
	"hopper/internal/queue"
	"hopper/internal/state"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the definition queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueCompletedCommand(ctx))
	queueCmd.AddCommand(newQueueFailedCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueCleanCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending definitions in processing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			items, err := listPending(cfg)
			if err != nil {
				return err
			}

			if jsonOutput {
				payload := make([]statusItemJSON, 0, len(items))
				for _, item := range items {
					payload = append(payload, statusItemJSON{Name: item.Name, Modified: formatModTime(item.ModTime)})
				}
				return writeJSON(cmd, payload)
			}

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for i, item := range items {
				rows = append(rows, []string{strconv.Itoa(i + 1), item.Name, formatModTime(item.ModTime)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "Definition", "Modified"}, rows, 0))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newQueueCompletedCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	type completedJSON struct {
		Name      string `json:"name"`
		Artifacts int    `json:"artifacts"`
	}

	cmd := &cobra.Command{
		Use:   "completed",
		Short: "List definitions that finished the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.Paths.StateFile, logging.NewNop())
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			snapshot := store.Snapshot()

			entries := make([]completedJSON, 0, len(snapshot.CompletedItems))
			for _, name := range snapshot.CompletedItems {
				entries = append(entries, completedJSON{
					Name:      name,
					Artifacts: countArtifacts(cfg, name),
				})
			}

			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No completed definitions")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{entry.Name, strconv.Itoa(entry.Artifacts)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Definition", "Artifacts"}, rows, 1))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newQueueFailedCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	type failedJSON struct {
		Name   string `json:"name"`
		Reason string `json:"reason,omitempty"`
	}

	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List definitions parked in the failed directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := listFailedEntries(cfg)
			if err != nil {
				return err
			}

			if jsonOutput {
				payload := make([]failedJSON, 0, len(entries))
				for _, entry := range entries {
					payload = append(payload, failedJSON{Name: entry.Name, Reason: entry.Reason})
				}
				return writeJSON(cmd, payload)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No failed definitions")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{entry.Name, entry.Reason})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Definition", "Error"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>",
		Short: "Copy a definition file into the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			src, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(src)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", src)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", src)
			}
			if !strings.EqualFold(filepath.Ext(src), cfg.Workflow.DefinitionExt) {
				return fmt.Errorf("definition must have the %s extension", cfg.Workflow.DefinitionExt)
			}

			dest := filepath.Join(cfg.Paths.QueueDir, filepath.Base(src))
			if _, err := os.Stat(dest); err == nil {
				return fmt.Errorf("definition %s is already queued", filepath.Base(src))
			}
			if err := fileutil.CopyFile(src, dest); err != nil {
				return fmt.Errorf("copy definition: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", filepath.Base(dest))
			return nil
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var retryAll bool

	cmd := &cobra.Command{
		Use:   "retry [name...]",
		Short: "Move failed definitions back into the queue",
		Long: "Moves parked definitions from the failed directory back into the queue and " +
			"drops their error notes. Staged artifacts survive, so a retried definition " +
			"resumes from the last phase it finished.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !retryAll && len(args) == 0 {
				return errors.New("name at least one failed definition or pass --all")
			}

			entries, err := listFailedEntries(cfg)
			if err != nil {
				return err
			}
			byName := make(map[string]failedEntry, len(entries))
			for _, entry := range entries {
				byName[entry.Name] = entry
			}

			names := args
			if retryAll {
				names = make([]string, 0, len(entries))
				for _, entry := range entries {
					names = append(names, entry.Name)
				}
			}

			out := cmd.OutOrStdout()
			retried := 0
			for _, name := range names {
				if _, ok := byName[name]; !ok {
					fmt.Fprintf(out, "%s is not in the failed directory\n", name)
					continue
				}
				if err := requeueFailed(cfg, name); err != nil {
					return err
				}
				fmt.Fprintf(out, "Requeued %s\n", name)
				retried++
			}
			if retryAll && retried == 0 {
				fmt.Fprintln(out, "No failed definitions")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&retryAll, "all", false, "Retry every failed definition")
	return cmd
}

func newQueueCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Prune staging artifacts left by completed definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.Paths.StateFile, logging.NewNop())
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			snapshot := store.Snapshot()

			removed := 0
			for _, name := range snapshot.CompletedItems {
				stem := strings.TrimSuffix(name, filepath.Ext(name))
				layout := pipeline.NewLayout(stem, cfg.Paths.StagingDir, cfg.Paths.DraftsDir, cfg.Paths.CompletedDir)
				for _, path := range layout.StagingArtifacts() {
					if _, err := os.Stat(path); err != nil {
						continue
					}
					if err := os.RemoveAll(path); err != nil {
						return fmt.Errorf("remove %s: %w", path, err)
					}
					removed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d staging artifact(s)\n", removed)
			return nil
		},
	}
}

func listPending(cfg *config.Config) ([]queue.Item, error) {
	store, err := state.Open(cfg.Paths.StateFile, logging.NewNop())
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	snapshot := store.Snapshot()
	scanner := queue.NewScanner(cfg.Paths.QueueDir, cfg.Workflow.DefinitionExt, logging.NewNop())
	return scanner.List(snapshot.CompletedSet())
}

// requeueFailed moves a parked definition back into the queue and removes its
// error note.
func requeueFailed(cfg *config.Config, name string) error {
	src := filepath.Join(cfg.Paths.FailedDir, name)
	dest := filepath.Join(cfg.Paths.QueueDir, name)
	if err := fileutil.MoveFile(src, dest); err != nil {
		return fmt.Errorf("requeue %s: %w", name, err)
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	notePath := filepath.Join(cfg.Paths.FailedDir, stem+"-error.txt")
	if err := os.Remove(notePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove error note for %s: %w", name, err)
	}
	return nil
}

// countArtifacts reports how many files a completed definition produced.
func countArtifacts(cfg *config.Config, name string) int {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	entries, err := os.ReadDir(filepath.Join(cfg.Paths.CompletedDir, stem))
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}
	return count
}
