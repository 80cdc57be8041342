package workflow

import (
	"log/slog"
	"sync"
	"time"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/pipeline"
	"hopper/internal/queue"
	"hopper/internal/ratelimit"
	"hopper/internal/services/toolchain"
	"hopper/internal/state"
)

// Manager coordinates queue passes: it scans for pending definitions, drives
// each one through the pipeline, and reports outcomes.
type Manager struct {
	cfg          *config.Config
	store        *state.Store
	scanner      *queue.Scanner
	pipe         *pipeline.Pipeline
	notifier     notifications.Service
	logger       *slog.Logger
	limits       ratelimit.Limits
	pollInterval time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	running  bool
	lastErr  error
	lastPass *Summary
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	collector pipeline.Collector
	builder   pipeline.Builder
	submitter pipeline.Submitter
	clock     func() time.Time
}

// WithCollaborators overrides the external tool adapters (used in tests).
func WithCollaborators(collector pipeline.Collector, builder pipeline.Builder, submitter pipeline.Submitter) ManagerOption {
	return func(o *managerOptions) {
		o.collector = collector
		o.builder = builder
		o.submitter = submitter
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(o *managerOptions) {
		o.clock = now
	}
}

// NewManager constructs a workflow manager wired to the real collaborator
// toolchain.
func NewManager(cfg *config.Config, store *state.Store, logger *slog.Logger) (*Manager, error) {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *state.Store, logger *slog.Logger, notifier notifications.Service, opts ...ManagerOption) (*Manager, error) {
	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	overrides := cfg.Logging.ComponentOverrides

	collector, builder, submitter := options.collector, options.builder, options.submitter
	if collector == nil || builder == nil || submitter == nil {
		tc, err := toolchain.New(toolchain.Settings{
			Collector:    cfg.Tools.Collector,
			Builder:      cfg.Tools.Builder,
			Submitter:    cfg.Tools.Submitter,
			APIKey:       cfg.API.Key,
			ToolTimeout:  cfg.ToolTimeout(),
			PollInterval: time.Duration(cfg.API.PollInterval) * time.Second,
			BatchTimeout: cfg.BatchTimeout(),
		}, logging.ComponentLogger(logger, "toolchain", overrides))
		if err != nil {
			return nil, err
		}
		if collector == nil {
			collector = tc
		}
		if builder == nil {
			builder = tc
		}
		if submitter == nil {
			submitter = tc
		}
	}

	limits := ratelimit.Limits{
		MaxPerHour:  cfg.RateLimit.MaxPerHour,
		MinInterval: cfg.MinInterval(),
	}
	clock := options.clock
	if clock == nil {
		clock = time.Now
	}

	pipeOpts := []pipeline.Option{pipeline.WithClock(clock)}
	pipe, err := pipeline.New(pipeline.Settings{
		StagingDir:   cfg.Paths.StagingDir,
		DraftsDir:    cfg.Paths.DraftsDir,
		CompletedDir: cfg.Paths.CompletedDir,
		FailedDir:    cfg.Paths.FailedDir,
		Limits:       limits,
	}, store, collector, builder, submitter, logging.ComponentLogger(logger, "pipeline", overrides), pipeOpts...)
	if err != nil {
		return nil, err
	}

	pollInterval := cfg.QueuePollInterval()
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}

	return &Manager{
		cfg:          cfg,
		store:        store,
		scanner:      queue.NewScanner(cfg.Paths.QueueDir, cfg.Workflow.DefinitionExt, logging.ComponentLogger(logger, "queue", overrides)),
		pipe:         pipe,
		notifier:     notifier,
		logger:       logging.ComponentLogger(logger, "workflow", overrides),
		limits:       limits,
		pollInterval: pollInterval,
		now:          clock,
	}, nil
}

// PollInterval returns the pause between daemon queue passes.
func (m *Manager) PollInterval() time.Duration {
	return m.pollInterval
}
