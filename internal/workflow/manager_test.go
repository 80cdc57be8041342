package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/services"
	"hopper/internal/state"
	"hopper/internal/testsupport"
	"hopper/internal/workflow"
)

// stubTools implements the collector, builder, and submitter seams with
// filesystem side effects matching the real toolchain.
type stubTools struct {
	mu            sync.Mutex
	collectInputs []string
	buildPhases   []string
	submitDirs    []string
	failCollect   map[string]error
	onSubmit      func(outputDir string)
}

func (s *stubTools) CollectContext(_ context.Context, inputPath, outputPath string) error {
	s.mu.Lock()
	s.collectInputs = append(s.collectInputs, inputPath)
	err := s.failCollect[filepath.Base(inputPath)]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("{}\n"), 0o644)
}

func (s *stubTools) BuildRequest(_ context.Context, _, phase, outputPath string) error {
	s.mu.Lock()
	s.buildPhases = append(s.buildPhases, phase)
	s.mu.Unlock()
	return os.WriteFile(outputPath, []byte("{\"phase\":\""+phase+"\"}\n"), 0o644)
}

func (s *stubTools) Submit(_ context.Context, _, outputDir string) error {
	s.mu.Lock()
	s.submitDirs = append(s.submitDirs, filepath.Base(outputDir))
	hook := s.onSubmit
	s.mu.Unlock()
	if hook != nil {
		hook(outputDir)
	}
	return os.WriteFile(filepath.Join(outputDir, "result-001.md"), []byte("# artifact\n"), 0o644)
}

type recordedEvent struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []recordedEvent
	sendErr error
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := notifications.Payload{}
	for k, v := range payload {
		copied[k] = v
	}
	r.sent = append(r.sent, recordedEvent{event: event, payload: copied})
	return r.sendErr
}

func (r *recordingNotifier) events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]notifications.Event, len(r.sent))
	for i, rec := range r.sent {
		events[i] = rec.event
	}
	return events
}

func (r *recordingNotifier) count(event notifications.Event) int {
	total := 0
	for _, got := range r.events() {
		if got == event {
			total++
		}
	}
	return total
}

func newTestManager(t *testing.T, opts ...testsupport.ConfigOption) (*workflow.Manager, *stubTools, *recordingNotifier, *managerFixture) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	tools := &stubTools{failCollect: map[string]error{}}
	notifier := &recordingNotifier{}

	mgr, err := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier,
		workflow.WithCollaborators(tools, tools, tools))
	if err != nil {
		t.Fatalf("NewManagerWithNotifier: %v", err)
	}
	return mgr, tools, notifier, &managerFixture{cfg: cfg, store: store}
}

type managerFixture struct {
	cfg   *config.Config
	store *state.Store
}

func itemCompleted(store *state.Store, name string) bool {
	snapshot := store.Snapshot()
	return snapshot.IsCompleted(name)
}

func TestRunOnceProcessesQueueInOrder(t *testing.T) {
	mgr, tools, notifier, f := newTestManager(t, testsupport.WithRateLimit(10, 0))

	now := time.Now()
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "alpha.md", now.Add(-2*time.Hour))
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "beta.md", now.Add(-time.Hour))

	summary, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Scanned != 2 || summary.Completed != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if len(tools.collectInputs) != 4 {
		t.Fatalf("expected 4 collect calls, got %d", len(tools.collectInputs))
	}
	if filepath.Base(tools.collectInputs[0]) != "alpha.md" {
		t.Fatalf("expected alpha.md processed first, got %s", tools.collectInputs[0])
	}
	if filepath.Base(tools.collectInputs[2]) != "beta.md" {
		t.Fatalf("expected beta.md processed second, got %s", tools.collectInputs[2])
	}

	snapshot := f.store.Snapshot()
	for _, name := range []string{"alpha.md", "beta.md"} {
		if !snapshot.IsCompleted(name) {
			t.Fatalf("expected %s marked completed", name)
		}
	}
	for _, stem := range []string{"alpha", "beta"} {
		artifact := filepath.Join(f.cfg.Paths.CompletedDir, stem, "result-001.md")
		if _, err := os.Stat(artifact); err != nil {
			t.Fatalf("expected final artifact %s: %v", artifact, err)
		}
	}

	if got := notifier.count(notifications.EventQueueStarted); got != 1 {
		t.Fatalf("expected one queue start notification, got %d", got)
	}
	if got := notifier.count(notifications.EventItemCompleted); got != 2 {
		t.Fatalf("expected two item completion notifications, got %d", got)
	}
	if got := notifier.count(notifications.EventQueueCompleted); got != 1 {
		t.Fatalf("expected one queue completion notification, got %d", got)
	}
}

func TestRunOnceContainsItemFailure(t *testing.T) {
	mgr, tools, notifier, f := newTestManager(t, testsupport.WithRateLimit(10, 0))

	now := time.Now()
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "bad.md", now.Add(-2*time.Hour))
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "good.md", now.Add(-time.Hour))
	tools.failCollect["bad.md"] = services.Wrap(services.ErrExternalTool, "", "collect", "context collector failed", nil)

	summary, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Failed != 1 || summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if _, err := os.Stat(filepath.Join(f.cfg.Paths.FailedDir, "bad.md")); err != nil {
		t.Fatalf("expected bad.md moved to failed dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Paths.FailedDir, "bad-error.txt")); err != nil {
		t.Fatalf("expected failure note: %v", err)
	}
	if !itemCompleted(f.store, "good.md") {
		t.Fatalf("expected good.md completed despite earlier failure")
	}
	if got := notifier.count(notifications.EventItemFailed); got != 1 {
		t.Fatalf("expected one failure notification, got %d", got)
	}
	if got := notifier.count(notifications.EventItemCompleted); got != 1 {
		t.Fatalf("expected one completion notification, got %d", got)
	}
}

func TestRunOnceDefersWhenWindowExhausted(t *testing.T) {
	mgr, tools, notifier, f := newTestManager(t, testsupport.WithRateLimit(2, 0))

	now := time.Now()
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "first.md", now.Add(-2*time.Hour))
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "second.md", now.Add(-time.Hour))

	summary, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Completed != 1 || summary.Deferred != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if len(tools.submitDirs) != 2 {
		t.Fatalf("expected both submissions to belong to first item, got %v", tools.submitDirs)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Paths.QueueDir, "second.md")); err != nil {
		t.Fatalf("deferred definition must stay in queue: %v", err)
	}
	if got := notifier.count(notifications.EventItemDeferred); got != 1 {
		t.Fatalf("expected one deferral notification, got %d", got)
	}

	snapshot := f.store.Snapshot()
	if snapshot.IsCompleted("second.md") {
		t.Fatalf("deferred item must not be marked completed")
	}
	if snapshot.CurrentItem != "second.md" {
		t.Fatalf("expected deferred item to stay current, got %q", snapshot.CurrentItem)
	}
}

func TestRunOnceEmptyQueue(t *testing.T) {
	mgr, _, notifier, _ := newTestManager(t)

	summary, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Scanned != 0 {
		t.Fatalf("expected empty scan, got %+v", summary)
	}
	if events := notifier.events(); len(events) != 0 {
		t.Fatalf("expected no notifications for empty queue, got %v", events)
	}
}

func TestRunOnceStopsBetweenItemsOnCancel(t *testing.T) {
	mgr, tools, _, f := newTestManager(t, testsupport.WithRateLimit(10, 0))

	now := time.Now()
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "alpha.md", now.Add(-2*time.Hour))
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "beta.md", now.Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tools.onSubmit = func(string) { cancel() }

	summary, err := mgr.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Completed != 1 {
		t.Fatalf("in-flight item must finish before shutdown, got %+v", summary)
	}

	snapshot := f.store.Snapshot()
	if !snapshot.IsCompleted("alpha.md") {
		t.Fatalf("expected alpha.md to complete despite cancellation")
	}
	if snapshot.IsCompleted("beta.md") {
		t.Fatalf("beta.md must not start after cancellation")
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Paths.StagingDir, "beta-context.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("beta.md must not produce artifacts, stat err %v", err)
	}
}

func TestRunOnceNotifierFailureDoesNotAffectProcessing(t *testing.T) {
	mgr, _, notifier, f := newTestManager(t, testsupport.WithRateLimit(10, 0))
	notifier.sendErr = errors.New("ntfy unreachable")

	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "alpha.md", time.Now().Add(-time.Hour))

	summary, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunOnceAbortsOnStateFailure(t *testing.T) {
	mgr, _, _, f := newTestManager(t, testsupport.WithRateLimit(10, 0))

	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "alpha.md", time.Now().Add(-time.Hour))
	if err := os.Mkdir(f.cfg.Paths.StateFile, 0o755); err != nil {
		t.Fatalf("block state file: %v", err)
	}

	_, err := mgr.RunOnce(context.Background())
	if !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(f.cfg.Paths.QueueDir, "alpha.md")); statErr != nil {
		t.Fatalf("definition must stay queued after state failure: %v", statErr)
	}
}

func TestRunDaemonProcessesAndStopsOnCancel(t *testing.T) {
	mgr, _, _, f := newTestManager(t, testsupport.WithRateLimit(10, 0))

	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "alpha.md", time.Now().Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.RunDaemon(ctx) }()

	deadline := time.After(30 * time.Second)
	for !mgr.Status().Running {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for daemon to report running")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	for !itemCompleted(f.store, "alpha.md") {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for item completion")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunDaemon returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
	if mgr.Status().Running {
		t.Fatal("daemon still reports running after stop")
	}
}

func TestRunDaemonReturnsFatalError(t *testing.T) {
	mgr, _, _, f := newTestManager(t, testsupport.WithRateLimit(10, 0))

	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "alpha.md", time.Now().Add(-time.Hour))
	if err := os.Mkdir(f.cfg.Paths.StateFile, 0o755); err != nil {
		t.Fatalf("block state file: %v", err)
	}

	err := mgr.RunDaemon(context.Background())
	if !errors.Is(err, services.ErrState) {
		t.Fatalf("expected daemon to stop on state error, got %v", err)
	}
}

func TestStatusReflectsStateAndQueue(t *testing.T) {
	mgr, _, _, f := newTestManager(t, testsupport.WithRateLimit(1, 0))

	now := time.Now()
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "pending.md", now.Add(-time.Hour))
	testsupport.WriteDefinition(t, f.cfg.Paths.QueueDir, "done.md", now.Add(-2*time.Hour))
	if err := f.store.MarkCompleted("done.md"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := f.store.RecordSubmission(now.Add(-30 * time.Minute)); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}
	if err := f.store.MarkCurrent("pending.md"); err != nil {
		t.Fatalf("MarkCurrent: %v", err)
	}

	status := mgr.Status()
	if status.Running {
		t.Fatal("expected not running")
	}
	if len(status.Pending) != 1 || status.Pending[0].Name != "pending.md" {
		t.Fatalf("unexpected pending items: %+v", status.Pending)
	}
	if status.CurrentItem != "pending.md" {
		t.Fatalf("expected current item pending.md, got %q", status.CurrentItem)
	}
	if status.CompletedCount != 1 {
		t.Fatalf("expected one completed item, got %d", status.CompletedCount)
	}
	if status.SubmissionsInWindow != 1 {
		t.Fatalf("expected one submission in window, got %d", status.SubmissionsInWindow)
	}
	if status.LastSubmission == nil {
		t.Fatal("expected last submission timestamp")
	}
	if status.Gate.Allowed {
		t.Fatalf("expected gate closed at cap, got %+v", status.Gate)
	}
}

func TestNewManagerUsesConfiguredToolchain(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIKey("sk-unit"),
		testsupport.WithStubbedBinaries(),
	)
	store := testsupport.MustOpenStore(t, cfg)

	mgr, err := workflow.NewManager(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got, want := mgr.PollInterval(), cfg.QueuePollInterval(); got != want {
		t.Fatalf("poll interval = %v, want %v", got, want)
	}

	status := mgr.Status()
	if status.Running {
		t.Fatal("expected idle manager")
	}
	if len(status.Pending) != 0 {
		t.Fatalf("expected empty queue, got %+v", status.Pending)
	}
}
