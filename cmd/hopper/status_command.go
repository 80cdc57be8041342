package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hopper/internal/daemon"
	"hopper/internal/logging"
	"hopper/internal/preflight"
	"hopper/internal/state"
	"hopper/internal/workflow"
)

type statusItemJSON struct {
	Name     string `json:"name"`
	Modified string `json:"modified"`
}

type statusRateJSON struct {
	Allowed             bool   `json:"allowed"`
	Reason              string `json:"reason,omitempty"`
	WaitMinutes         int    `json:"wait_minutes,omitempty"`
	SubmissionsInWindow int    `json:"submissions_in_window"`
	LastSubmission      string `json:"last_submission,omitempty"`
}

type statusCheckJSON struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type statusReportJSON struct {
	DaemonRunning  bool              `json:"daemon_running"`
	DaemonPID      int               `json:"daemon_pid,omitempty"`
	ConfigPath     string            `json:"config_path"`
	StateFile      string            `json:"state_file"`
	QueueDir       string            `json:"queue_dir"`
	CurrentItem    string            `json:"current_item,omitempty"`
	Pending        []statusItemJSON  `json:"pending"`
	CompletedCount int               `json:"completed_count"`
	FailedCount    int               `json:"failed_count"`
	RateLimit      statusRateJSON    `json:"rate_limit"`
	Preflight      []statusCheckJSON `json:"preflight"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue, rate limit, and daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := state.Open(cfg.Paths.StateFile, logging.NewNop())
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			mgr, err := workflow.NewManager(cfg, store, logging.NewNop())
			if err != nil {
				return fmt.Errorf("create workflow manager: %w", err)
			}

			summary := mgr.Status()
			running, pid := daemon.Probe(cfg.Paths.LogDir)
			checks := preflight.RunAll(cmd.Context(), cfg)
			failed, err := listFailedEntries(cfg)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, buildStatusReport(ctx, summary, running, pid, checks, len(failed)))
			}

			renderStatus(cmd, ctx, summary, running, pid, checks, len(failed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func buildStatusReport(ctx *commandContext, summary workflow.StatusSummary, running bool, pid int, checks []preflight.Result, failedCount int) statusReportJSON {
	cfg := ctx.config
	report := statusReportJSON{
		DaemonRunning:  running,
		DaemonPID:      pid,
		ConfigPath:     ctx.configPath,
		StateFile:      cfg.Paths.StateFile,
		QueueDir:       cfg.Paths.QueueDir,
		CurrentItem:    summary.CurrentItem,
		Pending:        make([]statusItemJSON, 0, len(summary.Pending)),
		CompletedCount: summary.CompletedCount,
		FailedCount:    failedCount,
		RateLimit: statusRateJSON{
			Allowed:             summary.Gate.Allowed,
			Reason:              summary.Gate.Reason,
			WaitMinutes:         summary.Gate.WaitMinutes(),
			SubmissionsInWindow: summary.SubmissionsInWindow,
		},
		Preflight: make([]statusCheckJSON, 0, len(checks)),
	}
	if summary.LastSubmission != nil {
		report.RateLimit.LastSubmission = formatTimePtr(summary.LastSubmission)
	}
	for _, item := range summary.Pending {
		report.Pending = append(report.Pending, statusItemJSON{
			Name:     item.Name,
			Modified: formatModTime(item.ModTime),
		})
	}
	for _, check := range checks {
		report.Preflight = append(report.Preflight, statusCheckJSON{
			Name:   check.Name,
			Passed: check.Passed,
			Detail: check.Detail,
		})
	}
	return report
}

func renderStatus(cmd *cobra.Command, ctx *commandContext, summary workflow.StatusSummary, running bool, pid int, checks []preflight.Result, failedCount int) {
	printer := newStatusPrinter(cmd.OutOrStdout())

	printer.section("Hopper")
	if running {
		printer.line("Daemon", statusOK, fmt.Sprintf("running (pid %d)", pid))
	} else {
		printer.line("Daemon", statusInfo, "not running")
	}
	printer.line("Config", statusInfo, ctx.configPath)
	printer.line("State file", statusInfo, ctx.config.Paths.StateFile)
	printer.blank()

	printer.section("Queue")
	printer.line("Pending", statusInfo, strconv.Itoa(len(summary.Pending)))
	printer.line("Completed", statusInfo, strconv.Itoa(summary.CompletedCount))
	failedKind := statusInfo
	if failedCount > 0 {
		failedKind = statusWarn
	}
	printer.line("Failed", failedKind, strconv.Itoa(failedCount))
	if summary.CurrentItem != "" {
		printer.line("In flight", statusInfo, summary.CurrentItem)
	}
	if len(summary.Pending) > 0 {
		rows := make([][]string, 0, len(summary.Pending))
		for i, item := range summary.Pending {
			rows = append(rows, []string{strconv.Itoa(i + 1), item.Name, formatModTime(item.ModTime)})
		}
		printer.raw(renderTable([]string{"#", "Definition", "Modified"}, rows, 0))
	}
	printer.blank()

	printer.section("Rate limit")
	printer.line("Submissions (1h)", statusInfo, strconv.Itoa(summary.SubmissionsInWindow))
	printer.line("Last submission", statusInfo, formatTimePtr(summary.LastSubmission))
	if summary.Gate.Allowed {
		printer.line("Next submission", statusOK, "allowed")
	} else {
		message := summary.Gate.Reason
		if wait := summary.Gate.WaitMinutes(); wait > 0 {
			message = fmt.Sprintf("%s (wait %dm)", message, wait)
		}
		printer.line("Next submission", statusWarn, message)
	}
	printer.blank()

	printer.section("Preflight")
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		printer.line(check.Name, kind, check.Detail)
	}
}
