package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hopper/internal/daemon"
	"hopper/internal/logging"
	"hopper/internal/preflight"
	"hopper/internal/state"
	"hopper/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every pending definition once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOncePass(cmd, ctx)
		},
	}
}

// runOncePass drains the queue a single time. Item failures are contained by
// the workflow and reported in the summary; the pass itself only fails on
// configuration, lock, or state-store problems.
func runOncePass(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	if err := gatePreflight(cmd.Context(), ctx); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock := daemon.NewLock(cfg.Paths.LogDir)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	store, err := state.Open(cfg.Paths.StateFile, logger)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	mgr, err := workflow.NewManager(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("create workflow manager: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, runErr := mgr.RunOnce(signalCtx)
	out := cmd.OutOrStdout()
	printRunSummary(out, summary)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			fmt.Fprintln(out, "Interrupted; remaining definitions stay queued for the next run")
			return nil
		}
		return runErr
	}
	return nil
}

// gatePreflight runs the preflight checks and fails the command on the first
// problem so a misconfigured install never reaches the processing loop.
func gatePreflight(cmdCtx context.Context, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	results := preflight.RunAll(cmdCtx, cfg)
	if failure, failed := preflight.FirstFailure(results); failed {
		return fmt.Errorf("preflight check failed: %s: %s", failure.Name, failure.Detail)
	}
	return nil
}

func printRunSummary(out io.Writer, summary workflow.Summary) {
	if summary.Scanned == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprintf(out, "Processed %d definition(s) in %s: %d completed, %d deferred, %d failed\n",
		summary.Scanned,
		summary.Duration().Round(durationDisplayUnit),
		summary.TotalCompleted(),
		summary.Deferred,
		summary.Failed,
	)
}
