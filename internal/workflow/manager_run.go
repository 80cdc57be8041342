package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"hopper/internal/logging"
	"hopper/internal/pipeline"
	"hopper/internal/services"
)

// Summary tallies the outcomes of one queue pass.
type Summary struct {
	Started        time.Time
	Finished       time.Time
	Scanned        int
	Completed      int
	ShortCircuited int
	Deferred       int
	Failed         int
}

// Duration returns the wall-clock length of the pass.
func (s Summary) Duration() time.Duration {
	if s.Finished.IsZero() || s.Started.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// TotalCompleted counts items that finished, whether processed this pass or
// recognized as already done.
func (s Summary) TotalCompleted() int {
	return s.Completed + s.ShortCircuited
}

// RunOnce performs a single queue pass: scan, then process every pending item
// in modification-time order. Shutdown is checked between items only, so the
// item in flight always runs to its own terminal outcome. The returned error
// is non-nil when the pass stopped early: cancellation, a scan failure, or a
// fatal pipeline error.
func (m *Manager) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{Started: m.now()}

	snapshot := m.store.Snapshot()
	items, err := m.scanner.List(snapshot.CompletedSet())
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "queue scan failed", "queue_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue directory permissions"),
		)
		summary.Finished = m.now()
		return summary, err
	}
	summary.Scanned = len(items)

	if len(items) == 0 {
		m.logger.Debug("queue empty, nothing to process")
		summary.Finished = m.now()
		m.storeLastPass(summary)
		return summary, nil
	}

	m.logger.Info("queue pass started",
		logging.String(logging.FieldEventType, "queue_start"),
		logging.Int("pending", len(items)))
	m.notifyQueueStarted(ctx, len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			m.logger.Info("queue pass interrupted, remaining items left for next run",
				logging.Int("remaining", summary.Scanned-summary.TotalCompleted()-summary.Deferred-summary.Failed))
			summary.Finished = m.now()
			m.storeLastPass(summary)
			return summary, err
		}

		// The item context is detached from run cancellation so an item that
		// has started always reaches a terminal outcome.
		itemCtx := services.WithRequestID(context.WithoutCancel(ctx), uuid.NewString())
		result, err := m.pipe.Process(itemCtx, item)
		if err != nil {
			m.setLastError(err)
			summary.Finished = m.now()
			m.storeLastPass(summary)
			return summary, err
		}
		summary.record(result)
		m.notifyResult(ctx, result)
	}

	summary.Finished = m.now()
	m.logger.Info("queue pass completed",
		logging.String(logging.FieldEventType, "queue_complete"),
		logging.Int("completed", summary.TotalCompleted()),
		logging.Int("deferred", summary.Deferred),
		logging.Int("failed", summary.Failed),
		logging.Duration("pass_duration", summary.Duration()))
	m.notifyQueueCompleted(ctx, summary)
	m.storeLastPass(summary)
	return summary, nil
}

// RunDaemon loops queue passes until the context is canceled. Pass-level
// failures that are not fatal are logged and retried on the next poll; fatal
// errors stop the loop.
func (m *Manager) RunDaemon(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.logger.Info("daemon processing started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.Duration("poll_interval", m.pollInterval))

	for {
		if _, err := m.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				m.logger.Info("daemon processing stopped", logging.String(logging.FieldEventType, "daemon_stop"))
				return nil
			}
			if services.IsFatal(err) {
				logging.ErrorWithContext(m.logger, "daemon stopping on unrecoverable error", "daemon_fatal",
					logging.Error(err))
				return err
			}
			// Scan and similar pass-level errors: retry on the next poll.
		}

		select {
		case <-ctx.Done():
			m.logger.Info("daemon processing stopped", logging.String(logging.FieldEventType, "daemon_stop"))
			return nil
		case <-time.After(m.pollInterval):
		}
	}
}

func (s *Summary) record(result pipeline.Result) {
	switch result.Outcome {
	case pipeline.OutcomeCompleted:
		s.Completed++
	case pipeline.OutcomeShortCircuited:
		s.ShortCircuited++
	case pipeline.OutcomeDeferred:
		s.Deferred++
	case pipeline.OutcomeFailed:
		s.Failed++
	}
}
