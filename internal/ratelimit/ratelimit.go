// Package ratelimit decides whether a submission may proceed right now.
//
// Check is a pure function over a state snapshot: it never performs I/O, so
// callers that proceed to submit must persist the outcome through the state
// store afterwards.
package ratelimit

import (
	"fmt"
	"time"

	"hopper/internal/state"
)

// Limits carries the submission throttling thresholds.
type Limits struct {
	MaxPerHour  int
	MinInterval time.Duration
}

// Decision is the outcome of a rate check. Wait is advisory, truncated to
// whole minutes for operator-facing messages; it is not a scheduling promise.
type Decision struct {
	Allowed bool
	Reason  string
	Wait    time.Duration
}

// WaitMinutes returns the advisory wait in whole minutes.
func (d Decision) WaitMinutes() int {
	return int(d.Wait / time.Minute)
}

// Check prunes the snapshot's submission window in place and reports whether
// a new submission is allowed at the given instant. Boundary instants are
// inclusive: a submission exactly one window old no longer counts, and a
// check exactly at the end of the minimum interval is allowed.
func Check(st *state.State, limits Limits, now time.Time) Decision {
	st.PruneWindow(now, state.Window)

	if limits.MaxPerHour <= 0 {
		return Decision{
			Allowed: false,
			Reason:  "max_per_hour is not positive; submissions disabled",
		}
	}

	if len(st.SubmissionTimes) >= limits.MaxPerHour {
		oldest := st.SubmissionTimes[0]
		for _, ts := range st.SubmissionTimes[1:] {
			if ts.Before(oldest) {
				oldest = ts
			}
		}
		wait := oldest.Add(state.Window).Sub(now).Truncate(time.Minute)
		if wait < 0 {
			wait = 0
		}
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("hourly cap of %d reached", limits.MaxPerHour),
			Wait:    wait,
		}
	}

	if limits.MinInterval > 0 && st.LastSubmissionTime != nil {
		nextAllowed := st.LastSubmissionTime.Add(limits.MinInterval)
		if now.Before(nextAllowed) {
			wait := nextAllowed.Sub(now).Truncate(time.Minute)
			return Decision{
				Allowed: false,
				Reason:  fmt.Sprintf("minimum interval of %s between submissions not met", limits.MinInterval),
				Wait:    wait,
			}
		}
	}

	return Decision{Allowed: true}
}
