package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/state"
	"hopper/internal/workflow"
)

// Daemon runs the workflow manager in the background and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *state.Store
	workflow *workflow.Manager
	lock     *Lock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	StateFile    string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *state.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		lock:     NewLock(cfg.Paths.LogDir),
	}, nil
}

// Start acquires the instance lock and launches the processing loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.lock.Acquire(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)

	go func() {
		d.runErr = d.workflow.RunDaemon(runCtx)
		close(d.done)
	}()

	d.logger.Info("hopper daemon started", logging.String("lock", d.lock.Path()))
	return nil
}

// Done is closed when the processing loop exits, whether from Stop or from a
// fatal error. Err reports the loop outcome afterwards.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Err returns the processing loop error. Valid only after Done is closed.
func (d *Daemon) Err() error {
	return d.runErr
}

// Stop cancels the processing loop, waits for the item in flight to finish,
// and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.done
	if err := d.lock.Release(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("hopper daemon stopped")
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(),
		StateFile:    d.cfg.Paths.StateFile,
		LockFilePath: d.lock.Path(),
	}
}
