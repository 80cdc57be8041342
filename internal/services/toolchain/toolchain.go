package toolchain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"hopper/internal/logging"
	"hopper/internal/services"
)

// Phase labels accepted by the builder command.
const (
	PhaseDraft = "draft"
	PhaseFinal = "final"
)

// submitGrace pads the submitter's context deadline past its own --timeout so
// the command gets to report the remote failure itself before being killed.
const submitGrace = 5 * time.Minute

// outputTailLines bounds how much trailing command output is folded into an
// error message.
const outputTailLines = 8

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Settings carries the command names and submission tuning for the three
// collaborator executables.
type Settings struct {
	Collector    string
	Builder      string
	Submitter    string
	APIKey       string
	ToolTimeout  time.Duration
	PollInterval time.Duration
	BatchTimeout time.Duration
}

// Option configures the toolchain.
type Option func(*Toolchain)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *Toolchain) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// Toolchain invokes the external collaborator commands that perform the
// opaque steps of the pipeline: context collection, request construction, and
// batch submission.
type Toolchain struct {
	settings Settings
	exec     Executor
	logger   *slog.Logger
}

// New constructs a toolchain client from the given settings.
func New(settings Settings, logger *slog.Logger, opts ...Option) (*Toolchain, error) {
	settings.Collector = strings.TrimSpace(settings.Collector)
	settings.Builder = strings.TrimSpace(settings.Builder)
	settings.Submitter = strings.TrimSpace(settings.Submitter)
	if settings.Collector == "" {
		return nil, errors.New("collector command required")
	}
	if settings.Builder == "" {
		return nil, errors.New("builder command required")
	}
	if settings.Submitter == "" {
		return nil, errors.New("submitter command required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	tc := &Toolchain{
		settings: settings,
		exec:     commandExecutor{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc, nil
}

// CollectContext runs the collector against a definition (or draft) file and
// writes the gathered context JSON to outputPath.
func (t *Toolchain) CollectContext(ctx context.Context, definitionPath, outputPath string) error {
	args := []string{
		"--prp-file", definitionPath,
		"--output", outputPath,
	}
	return t.runTool(ctx, "collect", t.settings.Collector, args, t.settings.ToolTimeout)
}

// BuildRequest runs the builder to turn collected context into a batch
// request file for the given phase.
func (t *Toolchain) BuildRequest(ctx context.Context, contextPath, phase, outputPath string) error {
	if phase != PhaseDraft && phase != PhaseFinal {
		return services.Wrap(services.ErrConfiguration, "", "build_request", fmt.Sprintf("unknown builder phase %q", phase), nil)
	}
	args := []string{
		"--context", contextPath,
		"--phase", phase,
		"--output", outputPath,
	}
	return t.runTool(ctx, "build_request", t.settings.Builder, args, t.settings.ToolTimeout)
}

// Submit runs the submitter, which uploads the request, polls the remote
// batch, and writes result files into outputDir. The call blocks until the
// batch finishes or the submitter's own timeout fires; the context deadline
// applied here is only a backstop slightly past that timeout.
func (t *Toolchain) Submit(ctx context.Context, requestPath, outputDir string) error {
	if strings.TrimSpace(t.settings.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "", "submit", "api key is not configured", nil)
	}
	args := []string{
		"--request", requestPath,
		"--output-dir", outputDir,
		"--api-key", t.settings.APIKey,
		"--poll-interval", strconv.Itoa(wholeSeconds(t.settings.PollInterval)),
		"--timeout", strconv.Itoa(wholeSeconds(t.settings.BatchTimeout)),
	}
	backstop := time.Duration(0)
	if t.settings.BatchTimeout > 0 {
		backstop = t.settings.BatchTimeout + submitGrace
	}
	return t.runTool(ctx, "submit", t.settings.Submitter, args, backstop)
}

func (t *Toolchain) runTool(ctx context.Context, operation, binary string, args []string, timeout time.Duration) error {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	name := filepath.Base(binary)
	logger := t.logger.With(logging.String("tool", name))
	logger.Debug("running tool", logging.String("operation", operation), logging.Any("args", redactArgs(args)))

	tail := newOutputTail(outputTailLines)
	err := t.exec.Run(runCtx, binary, args, func(line string) {
		tail.Add(line)
		logger.Debug("tool output", logging.String("line", line))
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "", operation, fmt.Sprintf("%s timed out after %s", name, timeout), err)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	}

	message := fmt.Sprintf("%s failed", name)
	if detail := tail.String(); detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}
	return services.Wrap(services.ErrExternalTool, "", operation, message, err)
}

// redactArgs masks the API key so debug logs stay safe to share.
func redactArgs(args []string) []string {
	masked := make([]string, len(args))
	copy(masked, args)
	for i := 0; i < len(masked)-1; i++ {
		if masked[i] == "--api-key" {
			masked[i+1] = "***"
		}
	}
	return masked
}

func wholeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// outputTail retains the last few non-empty lines a command printed.
type outputTail struct {
	limit int
	lines []string
}

func newOutputTail(limit int) *outputTail {
	return &outputTail{limit: limit}
}

func (o *outputTail) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if len(o.lines) == o.limit {
		copy(o.lines, o.lines[1:])
		o.lines[len(o.lines)-1] = line
		return
	}
	o.lines = append(o.lines, line)
}

func (o *outputTail) String() string {
	return strings.Join(o.lines, " | ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text(), onOutput)
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("wait command: %w", errors.Join(err, ctxErr))
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

func forward(line string, onOutput func(string)) {
	if onOutput != nil {
		onOutput(line)
		return
	}
	fmt.Fprintln(os.Stderr, line)
}
