package state

import "time"

// State is the single persistent orchestrator record. It carries the
// rate-limit submission window, the set of completed item names, and the
// item currently mid-pipeline.
type State struct {
	LastSubmissionTime *time.Time  `json:"last_submission_time,omitempty"`
	SubmissionTimes    []time.Time `json:"submission_times"`
	CompletedItems     []string    `json:"completed_items"`
	CurrentItem        string      `json:"current_item,omitempty"`
}

// CompletedSet returns completed item names as a set for scan filtering.
func (s *State) CompletedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.CompletedItems))
	for _, name := range s.CompletedItems {
		set[name] = struct{}{}
	}
	return set
}

// IsCompleted reports whether the named item is in the completed set.
func (s *State) IsCompleted(name string) bool {
	for _, existing := range s.CompletedItems {
		if existing == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate without affecting the receiver.
func (s *State) Clone() State {
	clone := State{CurrentItem: s.CurrentItem}
	if s.LastSubmissionTime != nil {
		ts := *s.LastSubmissionTime
		clone.LastSubmissionTime = &ts
	}
	if len(s.SubmissionTimes) > 0 {
		clone.SubmissionTimes = make([]time.Time, len(s.SubmissionTimes))
		copy(clone.SubmissionTimes, s.SubmissionTimes)
	}
	if len(s.CompletedItems) > 0 {
		clone.CompletedItems = make([]string, len(s.CompletedItems))
		copy(clone.CompletedItems, s.CompletedItems)
	}
	return clone
}

// PruneWindow drops submission timestamps at or older than now minus the
// window. Entries exactly one window old no longer count against the limit.
func (s *State) PruneWindow(now time.Time, window time.Duration) {
	if len(s.SubmissionTimes) == 0 {
		return
	}
	cutoff := now.Add(-window)
	kept := s.SubmissionTimes[:0]
	for _, ts := range s.SubmissionTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.SubmissionTimes = kept
}
