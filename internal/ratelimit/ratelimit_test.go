package ratelimit_test

import (
	"strings"
	"testing"
	"time"

	"hopper/internal/ratelimit"
	"hopper/internal/state"
)

var testNow = time.Date(2028, 3, 14, 12, 0, 0, 0, time.UTC)

func limits(maxPerHour int, minInterval time.Duration) ratelimit.Limits {
	return ratelimit.Limits{MaxPerHour: maxPerHour, MinInterval: minInterval}
}

func TestCheckAllowsEmptyState(t *testing.T) {
	st := &state.State{}
	decision := ratelimit.Check(st, limits(1, time.Hour), testNow)
	if !decision.Allowed {
		t.Fatalf("expected allow, got %+v", decision)
	}
}

func TestCheckDeniesWhenWindowFull(t *testing.T) {
	oldest := testNow.Add(-20 * time.Minute)
	st := &state.State{SubmissionTimes: []time.Time{oldest}}

	decision := ratelimit.Check(st, limits(1, 0), testNow)
	if decision.Allowed {
		t.Fatal("expected deny when window is full")
	}
	if !strings.Contains(decision.Reason, "hourly cap") {
		t.Fatalf("unexpected reason: %q", decision.Reason)
	}
	if decision.WaitMinutes() != 40 {
		t.Fatalf("expected 40 minute wait, got %d", decision.WaitMinutes())
	}
}

func TestCheckWaitTruncatesToWholeMinutes(t *testing.T) {
	oldest := testNow.Add(-20*time.Minute - 30*time.Second)
	st := &state.State{SubmissionTimes: []time.Time{oldest}}

	decision := ratelimit.Check(st, limits(1, 0), testNow)
	if decision.Allowed {
		t.Fatal("expected deny")
	}
	if decision.WaitMinutes() != 39 {
		t.Fatalf("expected truncation to 39 minutes, got %d", decision.WaitMinutes())
	}
}

func TestCheckPrunesWindowBeforeCounting(t *testing.T) {
	st := &state.State{
		SubmissionTimes: []time.Time{
			testNow.Add(-2 * time.Hour),
			testNow.Add(-time.Hour),
		},
	}

	decision := ratelimit.Check(st, limits(1, 0), testNow)
	if !decision.Allowed {
		t.Fatalf("expected stale entries to be pruned, got %+v", decision)
	}
	if len(st.SubmissionTimes) != 0 {
		t.Fatalf("expected snapshot pruned in place, got %v", st.SubmissionTimes)
	}
}

func TestCheckWindowBoundaryIsInclusive(t *testing.T) {
	st := &state.State{SubmissionTimes: []time.Time{testNow.Add(-state.Window)}}

	decision := ratelimit.Check(st, limits(1, 0), testNow)
	if !decision.Allowed {
		t.Fatalf("expected entry exactly one window old to free a slot, got %+v", decision)
	}
}

func TestCheckMinIntervalDenies(t *testing.T) {
	last := testNow.Add(-10 * time.Minute)
	st := &state.State{LastSubmissionTime: &last}

	decision := ratelimit.Check(st, limits(5, 30*time.Minute), testNow)
	if decision.Allowed {
		t.Fatal("expected deny inside minimum interval")
	}
	if !strings.Contains(decision.Reason, "minimum interval") {
		t.Fatalf("unexpected reason: %q", decision.Reason)
	}
	if decision.WaitMinutes() != 20 {
		t.Fatalf("expected 20 minute wait, got %d", decision.WaitMinutes())
	}
}

func TestCheckMinIntervalBoundaryIsInclusive(t *testing.T) {
	last := testNow.Add(-30 * time.Minute)
	st := &state.State{LastSubmissionTime: &last}

	decision := ratelimit.Check(st, limits(5, 30*time.Minute), testNow)
	if !decision.Allowed {
		t.Fatalf("expected allow exactly at interval end, got %+v", decision)
	}
}

func TestCheckMinIntervalZeroDisablesSpacing(t *testing.T) {
	last := testNow.Add(-time.Second)
	st := &state.State{
		LastSubmissionTime: &last,
		SubmissionTimes:    []time.Time{last},
	}

	decision := ratelimit.Check(st, limits(5, 0), testNow)
	if !decision.Allowed {
		t.Fatalf("expected allow with zero interval, got %+v", decision)
	}
}

func TestCheckZeroMaxPerHourAlwaysDenies(t *testing.T) {
	st := &state.State{}
	decision := ratelimit.Check(st, limits(0, 0), testNow)
	if decision.Allowed {
		t.Fatal("expected deny for non-positive cap")
	}
}

func TestCheckWindowTakesPrecedenceOverInterval(t *testing.T) {
	last := testNow.Add(-5 * time.Minute)
	st := &state.State{
		LastSubmissionTime: &last,
		SubmissionTimes:    []time.Time{last},
	}

	decision := ratelimit.Check(st, limits(1, time.Minute), testNow)
	if decision.Allowed {
		t.Fatal("expected deny")
	}
	if !strings.Contains(decision.Reason, "hourly cap") {
		t.Fatalf("expected window reason to win, got %q", decision.Reason)
	}
	if decision.WaitMinutes() != 55 {
		t.Fatalf("expected 55 minute wait, got %d", decision.WaitMinutes())
	}
}
