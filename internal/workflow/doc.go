// Package workflow coordinates queue passes over pending definition files.
//
// A pass scans the queue directory for definitions not yet completed and
// feeds each one to the pipeline in modification-time order. Shutdown is
// cooperative and coarse: cancellation is honored between items and between
// daemon polls, never in the middle of an item, so a definition that has
// started processing always reaches a terminal outcome before the loop
// yields. RunOnce performs a single pass; RunDaemon repeats passes on the
// configured poll interval until canceled.
//
// Per-item failures are contained by the pipeline and counted in the pass
// Summary; only state-store corruption, configuration errors, and
// cancellation stop a pass early. Notifications mirror the pass lifecycle
// (queue started, per-item outcomes, queue completed) and are best-effort.
package workflow
