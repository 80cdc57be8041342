package workflow

import (
	"time"

	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/ratelimit"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running             bool
	LastError           string
	Pending             []queue.Item
	CurrentItem         string
	CompletedCount      int
	SubmissionsInWindow int
	LastSubmission      *time.Time
	Gate                ratelimit.Decision
	LastPass            *Summary
}

// Status returns the latest workflow information. It is read-only: the scan
// and the rate check leave the persisted state untouched.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	var lastPass *Summary
	if m.lastPass != nil {
		copied := *m.lastPass
		lastPass = &copied
	}
	m.mu.RUnlock()

	snapshot := m.store.Snapshot()
	now := m.now()

	summary := StatusSummary{
		Running:        running,
		CurrentItem:    snapshot.CurrentItem,
		CompletedCount: len(snapshot.CompletedItems),
		LastPass:       lastPass,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if snapshot.LastSubmissionTime != nil {
		ts := *snapshot.LastSubmissionTime
		summary.LastSubmission = &ts
	}

	items, err := m.scanner.List(snapshot.CompletedSet())
	if err != nil {
		m.logger.Warn("failed to scan queue for status", logging.Error(err))
	} else {
		summary.Pending = items
	}

	gateState := snapshot.Clone()
	summary.Gate = ratelimit.Check(&gateState, m.limits, now)
	summary.SubmissionsInWindow = len(gateState.SubmissionTimes)

	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) storeLastPass(summary Summary) {
	m.mu.Lock()
	m.lastPass = &summary
	m.mu.Unlock()
}
