package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hopper/internal/fileutil"
	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/ratelimit"
	"hopper/internal/services"
	"hopper/internal/state"
)

// Builder phase labels handed to the request builder.
const (
	builderPhaseDraft = "draft"
	builderPhaseFinal = "final"
)

// Collector gathers generation context for a definition or draft file.
type Collector interface {
	CollectContext(ctx context.Context, inputPath, outputPath string) error
}

// Builder turns collected context into a batch request file.
type Builder interface {
	BuildRequest(ctx context.Context, contextPath, phase, outputPath string) error
}

// Submitter uploads a request and blocks until result files are on disk.
type Submitter interface {
	Submit(ctx context.Context, requestPath, outputDir string) error
}

// Outcome classifies how a pipeline run ended.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeShortCircuited Outcome = "short_circuited"
	OutcomeDeferred       Outcome = "deferred"
	OutcomeFailed         Outcome = "failed"
)

// Result reports what happened to one queue item.
type Result struct {
	Item    queue.Item
	Outcome Outcome
	Phase   Phase
	Reason  string
	Wait    time.Duration
	Err     error
}

// Settings fixes the directories and submission limits a pipeline operates on.
type Settings struct {
	StagingDir   string
	DraftsDir    string
	CompletedDir string
	FailedDir    string
	Limits       ratelimit.Limits
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline drives a single queue item through the phase sequence, skipping
// phases whose artifacts already exist and containing failures to the item.
type Pipeline struct {
	settings  Settings
	store     *state.Store
	collector Collector
	builder   Builder
	submitter Submitter
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a pipeline.
func New(settings Settings, store *state.Store, collector Collector, builder Builder, submitter Submitter, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	switch {
	case store == nil:
		return nil, errors.New("state store required")
	case collector == nil:
		return nil, errors.New("collector required")
	case builder == nil:
		return nil, errors.New("builder required")
	case submitter == nil:
		return nil, errors.New("submitter required")
	}
	for _, dir := range []string{settings.StagingDir, settings.DraftsDir, settings.CompletedDir, settings.FailedDir} {
		if strings.TrimSpace(dir) == "" {
			return nil, errors.New("pipeline directories must be set")
		}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		settings:  settings,
		store:     store,
		collector: collector,
		builder:   builder,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// LayoutFor returns the artifact layout for an item.
func (p *Pipeline) LayoutFor(item queue.Item) Layout {
	return NewLayout(item.Stem(), p.settings.StagingDir, p.settings.DraftsDir, p.settings.CompletedDir)
}

// Process runs one item from its elected start phase to a terminal result.
// The returned error is non-nil only for conditions that must stop the whole
// run: state-store write failures and context cancellation. Collaborator and
// filesystem failures are contained, recorded under the failed directory, and
// reported through the Result instead.
func (p *Pipeline) Process(ctx context.Context, item queue.Item) (Result, error) {
	ctx = services.WithItem(ctx, item.Name)
	layout := p.LayoutFor(item)
	result := Result{Item: item}

	logger := logging.WithContext(ctx, p.logger)
	logger.Info("processing item",
		logging.String(logging.FieldEventType, "item_start"),
		logging.String("definition", item.Path))

	if err := p.store.MarkCurrent(item.Name); err != nil {
		return result, err
	}

	start := layout.StartPhase()
	if start == PhaseDone {
		logger.Info("artifacts already complete, skipping all phases",
			logging.String("completed_dir", layout.CompletedDir()))
		if err := p.finishItem(item); err != nil {
			return result, err
		}
		result.Outcome = OutcomeShortCircuited
		result.Phase = PhaseDone
		return result, nil
	}
	if start != PhaseCollectContext {
		logger.Info("resuming from existing artifacts",
			logging.String(logging.FieldPhase, start.String()))
	}

	for _, phase := range workingPhases[phaseIndex(start):] {
		phaseCtx := services.WithPhase(ctx, phase.String())
		gate, err := p.runPhase(phaseCtx, phase, item, layout)
		if err != nil {
			if errors.Is(err, context.Canceled) || services.IsFatal(err) {
				return result, err
			}
			return p.failItem(ctx, item, layout, phase, result, err)
		}
		if gate.deferred {
			logger.Info("submission deferred by rate limit",
				logging.String(logging.FieldEventType, "item_deferred"),
				logging.String(logging.FieldPhase, phase.String()),
				logging.String("reason", gate.reason),
				logging.Int("retry_minutes", int(gate.wait/time.Minute)))
			result.Outcome = OutcomeDeferred
			result.Phase = phase
			result.Reason = gate.reason
			result.Wait = gate.wait
			return result, nil
		}
	}

	if err := p.finishItem(item); err != nil {
		return result, err
	}
	logger.Info("item completed",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.String("completed_dir", layout.CompletedDir()))
	result.Outcome = OutcomeCompleted
	result.Phase = PhaseDone
	return result, nil
}

// gateDecision carries a rate-gate verdict out of runPhase. The zero value
// means "proceed".
type gateDecision struct {
	deferred bool
	reason   string
	wait     time.Duration
}

func (p *Pipeline) runPhase(ctx context.Context, phase Phase, item queue.Item, layout Layout) (gateDecision, error) {
	logger := logging.WithContext(ctx, p.logger)
	started := p.now()
	logger.Info("phase started", logging.String(logging.FieldEventType, "phase_start"))

	var err error
	switch phase {
	case PhaseCollectContext:
		err = p.collector.CollectContext(ctx, item.Path, layout.ContextPath())
	case PhaseBuildDraftRequest:
		err = p.builder.BuildRequest(ctx, layout.ContextPath(), builderPhaseDraft, layout.DraftRequestPath())
	case PhaseDraftRateGate, PhaseFinalRateGate:
		if decision := p.checkGate(); !decision.Allowed {
			return gateDecision{deferred: true, reason: decision.Reason, wait: decision.Wait}, nil
		}
	case PhaseSubmitDraft:
		err = p.submit(ctx, phase, layout.DraftRequestPath(), layout.DraftResultsDir())
	case PhaseRelocateDraft:
		err = p.relocateDraft(phase, layout)
	case PhaseCollectDraftContext:
		err = p.collector.CollectContext(ctx, layout.DraftPath(), layout.FinalContextPath())
	case PhaseBuildFinalRequest:
		err = p.builder.BuildRequest(ctx, layout.FinalContextPath(), builderPhaseFinal, layout.FinalRequestPath())
	case PhaseSubmitFinal:
		err = p.submit(ctx, phase, layout.FinalRequestPath(), layout.FinalResultsDir())
	case PhaseRelocateFinal:
		err = p.relocateFinal(phase, layout)
	default:
		err = services.Wrap(services.ErrConfiguration, phase.String(), "run", "phase has no handler", nil)
	}
	if err != nil {
		return gateDecision{}, err
	}

	logger.Info("phase completed",
		logging.String(logging.FieldEventType, "phase_complete"),
		logging.Duration("phase_duration", p.now().Sub(started)))
	return gateDecision{}, nil
}

func (p *Pipeline) checkGate() ratelimit.Decision {
	snapshot := p.store.Snapshot()
	return ratelimit.Check(&snapshot, p.settings.Limits, p.now())
}

// submit runs the submitter and records the consumed submission slot. The
// slot is recorded only after the call returns success; a deferral or a
// submitter failure leaves the window untouched.
func (p *Pipeline) submit(ctx context.Context, phase Phase, requestPath, resultsDir string) error {
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, phase.String(), "submit", "create results directory", err)
	}
	if err := p.submitter.Submit(ctx, requestPath, resultsDir); err != nil {
		return err
	}
	return p.store.RecordSubmission(p.now())
}

func (p *Pipeline) relocateDraft(phase Phase, layout Layout) error {
	names, err := markdownEntries(layout.DraftResultsDir())
	if err != nil {
		return services.Wrap(services.ErrTransient, phase.String(), "relocate", "inspect draft results", err)
	}
	if len(names) == 0 {
		return services.Wrap(services.ErrNotFound, phase.String(), "relocate", "batch produced no draft artifact", nil)
	}
	src := filepath.Join(layout.DraftResultsDir(), names[0])
	if err := os.MkdirAll(filepath.Dir(layout.DraftPath()), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, phase.String(), "relocate", "create drafts directory", err)
	}
	if err := fileutil.MoveFile(src, layout.DraftPath()); err != nil {
		return services.Wrap(services.ErrTransient, phase.String(), "relocate", "move draft artifact", err)
	}
	return nil
}

func (p *Pipeline) relocateFinal(phase Phase, layout Layout) error {
	names, err := markdownEntries(layout.FinalResultsDir())
	if err != nil {
		return services.Wrap(services.ErrTransient, phase.String(), "relocate", "inspect final results", err)
	}
	if len(names) == 0 {
		return services.Wrap(services.ErrNotFound, phase.String(), "relocate", "batch produced no final artifacts", nil)
	}
	if err := os.MkdirAll(layout.CompletedDir(), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, phase.String(), "relocate", "create completed directory", err)
	}
	for _, name := range names {
		src := filepath.Join(layout.FinalResultsDir(), name)
		dst := filepath.Join(layout.CompletedDir(), name)
		if err := fileutil.MoveFile(src, dst); err != nil {
			return services.Wrap(services.ErrTransient, phase.String(), "relocate", fmt.Sprintf("move final artifact %s", name), err)
		}
	}
	return nil
}

// finishItem records completion. MarkCompleted before ClearCurrent so a crash
// between the two cannot lose the completion.
func (p *Pipeline) finishItem(item queue.Item) error {
	if err := p.store.MarkCompleted(item.Name); err != nil {
		return err
	}
	return p.store.ClearCurrent()
}

func (p *Pipeline) failItem(ctx context.Context, item queue.Item, layout Layout, phase Phase, result Result, cause error) (Result, error) {
	logger := logging.WithContext(ctx, p.logger)
	logger.Error("item failed",
		logging.String(logging.FieldEventType, "item_failed"),
		logging.String(logging.FieldPhase, phase.String()),
		logging.String("error_kind", string(services.KindOf(cause))),
		logging.Error(cause))

	if err := p.recordFailure(item, layout, cause); err != nil {
		logger.Error("failed to move item into failed directory", logging.Error(err))
	}
	if err := p.store.ClearCurrent(); err != nil {
		return result, err
	}

	result.Outcome = OutcomeFailed
	result.Phase = phase
	result.Reason = cause.Error()
	result.Err = cause
	return result, nil
}

// recordFailure parks the definition in the failed directory next to a note
// explaining when and why it failed.
func (p *Pipeline) recordFailure(item queue.Item, layout Layout, cause error) error {
	if err := os.MkdirAll(p.settings.FailedDir, 0o755); err != nil {
		return fmt.Errorf("create failed directory: %w", err)
	}
	dest := filepath.Join(p.settings.FailedDir, item.Name)
	if err := fileutil.MoveFile(item.Path, dest); err != nil {
		return fmt.Errorf("move definition: %w", err)
	}
	note := fmt.Sprintf("Failed at: %s\nError: %s\n", p.now().UTC().Format(time.RFC3339), cause.Error())
	notePath := filepath.Join(p.settings.FailedDir, layout.Stem()+"-error.txt")
	if err := os.WriteFile(notePath, []byte(note), 0o644); err != nil {
		return fmt.Errorf("write error note: %w", err)
	}
	return nil
}

// markdownEntries lists the markdown files directly inside dir, sorted by
// name so artifact selection is deterministic.
func markdownEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
