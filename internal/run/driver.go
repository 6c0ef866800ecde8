package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-flow/internal/executor"
	"github.com/heimdex/heimdex-flow/internal/keyword"
	"github.com/heimdex/heimdex-flow/internal/logging"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
	"github.com/heimdex/heimdex-flow/internal/registry"
)

const subscriberBuffer = 64

// Recorder persists run history. Errors are logged and never affect the run.
// Calls are made from the run goroutine and survive cancellation of the run
// context.
type Recorder interface {
	RunStarted(ctx context.Context, info RunInfo) error
	StepFinished(ctx context.Context, runID string, outcome StepOutcome) error
	LogAppended(ctx context.Context, runID string, line LogLine) error
	RunFinished(ctx context.Context, summary *Summary) error
}

// Prober reads metadata of the final output.
type Prober interface {
	Probe(ctx context.Context, path string) (*executor.ProbeResult, error)
}

type Options struct {
	Recorder Recorder
	Prober   Prober
	Logger   *slog.Logger
}

// Driver runs one pipeline at a time.
type Driver struct {
	exec     executor.StepExecutor
	reg      *registry.Registry
	recorder Recorder
	prober   Prober
	logger   *slog.Logger

	running atomic.Bool
	stop    atomic.Bool

	mu sync.RWMutex
	// finalizing is set once the run has read its stop flag for the last
	// time. Stop requests after that point are refused.
	finalizing bool
	status     Status
	logs    []LogLine
	subs    map[int]chan Event
	nextSub int
}

func NewDriver(exec executor.StepExecutor, reg *registry.Registry, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{
		exec:     exec,
		reg:      reg,
		recorder: opts.Recorder,
		prober:   opts.Prober,
		logger:   logging.WithComponent(logger, "driver"),
		status:   Status{State: StateIdle},
		subs:     make(map[int]chan Event),
	}
}

// Handle follows one run.
type Handle struct {
	RunID string

	events  chan Event
	done    chan struct{}
	summary *Summary
}

// Events yields the run's events in order and is closed after
// RunCompleted.
func (h *Handle) Events() <-chan Event { return h.events }

// Done is closed when the run has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finishes and returns its summary. Events not
// read by then are discarded with the channel.
func (h *Handle) Wait() *Summary {
	<-h.done
	return h.summary
}

// Start validates the configuration and begins executing it in the
// background. It fails with ErrAlreadyRunning while another run is active.
// Cancelling ctx stops the run and the step in flight.
func (d *Driver) Start(ctx context.Context, req Request) (*Handle, error) {
	if req.Config == nil {
		return nil, errors.New("run: no pipeline configuration")
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := Preflight(req.Config, d.reg); err != nil {
		return nil, err
	}
	if !d.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	d.stop.Store(false)
	d.mu.Lock()
	d.finalizing = false
	d.mu.Unlock()

	if req.Output == "" {
		req.Output = DefaultOutput
	}
	total := len(req.Config.Steps)
	h := &Handle{
		RunID:  uuid.NewString(),
		events: make(chan Event, 2*total+1),
		done:   make(chan struct{}),
	}
	started := time.Now()

	d.mu.Lock()
	d.logs = nil
	d.status = Status{
		RunID:     h.RunID,
		State:     StateRunning,
		Running:   true,
		Total:     total,
		StartedAt: started,
	}
	d.mu.Unlock()

	d.record(ctx, func(ctx context.Context, r Recorder) error {
		return r.RunStarted(ctx, RunInfo{
			ID:        h.RunID,
			Source:    SanitizeName(req.Source, 200),
			WorkDir:   req.WorkDir,
			Output:    req.Output,
			Steps:     req.Config.Keys(),
			StartedAt: started,
		})
	})

	go d.loop(ctx, req, h, started)
	return h, nil
}

// Stop asks the active run to finish before its next step. The step in
// flight is left to complete.
func (d *Driver) Stop() error {
	if !d.running.Load() {
		return ErrNotRunning
	}

	d.mu.Lock()
	if d.finalizing {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.stop.Store(true)
	d.status.State = StateStopped
	d.mu.Unlock()

	d.appendLog(d.currentRunID(), "Stop requested")
	return nil
}

// Status returns a snapshot of the current or most recent run.
func (d *Driver) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := d.status
	s.Running = d.running.Load()
	return s
}

// IsRunning reports whether a run is active.
func (d *Driver) IsRunning() bool {
	return d.running.Load()
}

// Logs returns a copy of the run log.
func (d *Driver) Logs() []LogLine {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]LogLine, len(d.logs))
	copy(out, d.logs)
	return out
}

// ClearLogs empties the run log. Not allowed while running.
func (d *Driver) ClearLogs() error {
	if d.running.Load() {
		return ErrRunInProgress
	}
	d.mu.Lock()
	d.logs = nil
	d.mu.Unlock()
	return nil
}

// Subscribe returns a channel receiving the events of every run until
// cancel is called. Slow subscribers miss events rather than blocking runs.
func (d *Driver) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = ch
	d.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (d *Driver) loop(ctx context.Context, req Request, h *Handle, started time.Time) {
	logger := logging.WithRunID(d.logger, h.RunID)
	steps := req.Config.Steps
	total := len(steps)

	configDir := req.ConfigDir
	if configDir == "" {
		configDir = req.WorkDir
	}
	rc := keyword.NewRunContext(configDir)
	engine := keyword.NewEngine(rc, logger)

	summary := &Summary{
		RunID:     h.RunID,
		Total:     total,
		StartedAt: started,
		Steps:     []StepOutcome{},
	}

	d.appendLog(h.RunID, fmt.Sprintf("Starting pipeline with %d steps", total))
	logger.Info("run started", "steps", total, "dir", logging.SanitizePath(req.WorkDir))

	var lastOutput string
	var produced []string
	stopped := false

	for i, step := range steps {
		if d.stop.Load() || ctx.Err() != nil {
			stopped = true
			break
		}

		percent := i * 100 / total
		d.mu.Lock()
		d.status.CurrentStep = step.Key
		d.status.StepIndex = i
		d.status.Percent = percent
		d.mu.Unlock()

		d.appendLog(h.RunID, fmt.Sprintf("Starting step %d/%d: %s", i+1, total, step.Key))
		d.emit(h, Event{Type: EventStepStarted, RunID: h.RunID, StepKey: step.Key, Index: i, Total: total, Percent: percent})

		outcome := d.runStep(ctx, logging.WithStepKey(logger, step.Key), engine, req, i, step)
		summary.Steps = append(summary.Steps, outcome)
		summary.Executed++

		ev := Event{RunID: h.RunID, StepKey: step.Key, Index: i, Total: total, Percent: percent, ExitCode: outcome.ExitCode, Output: outcome.Output}
		if outcome.Status == StepFailed {
			summary.Failed++
			ev.Type = EventStepFailed
			ev.Error = outcome.Error
			d.appendLog(h.RunID, fmt.Sprintf("ERROR: %s", outcome.Error))
		} else {
			ev.Type = EventStepCompleted
			lastOutput = outcome.Output
			produced = append(produced, outcome.Output)
			d.appendLog(h.RunID, fmt.Sprintf("Completed step %s in %s", step.Key, outcome.Duration.Round(time.Millisecond)))
		}
		d.emit(h, ev)

		d.record(ctx, func(ctx context.Context, r Recorder) error {
			return r.StepFinished(ctx, h.RunID, outcome)
		})
	}

	d.mu.Lock()
	d.finalizing = true
	if d.stop.Load() {
		stopped = true
	}
	d.mu.Unlock()

	switch {
	case stopped:
		summary.State = StateStopped
		d.appendLog(h.RunID, fmt.Sprintf("Run stopped after %d of %d steps", summary.Executed, total))

	case lastOutput == "":
		summary.NoOutput = true
		summary.State = StateFailed
		d.appendLog(h.RunID, "ERROR: no step completed successfully, no output produced")

	default:
		final := resolvePath(req.WorkDir, req.Output)
		summary.FinalOutput = final
		if err := d.finish(ctx, logger, req, lastOutput, final, produced); err != nil {
			summary.Error = err.Error()
			d.appendLog(h.RunID, fmt.Sprintf("ERROR: %v", err))
		} else if d.prober != nil {
			if media, err := d.prober.Probe(ctx, final); err != nil {
				logger.Warn("probe of final output failed", "error", err)
			} else {
				summary.Media = media
			}
		}

		summary.State = StateCompleted
		if summary.Failed > 0 || summary.Error != "" {
			summary.State = StateFailed
		}
	}

	if summary.Failed > 0 {
		d.appendLog(h.RunID, fmt.Sprintf("%d of %d steps failed", summary.Failed, total))
	} else if summary.State == StateCompleted {
		d.appendLog(h.RunID, fmt.Sprintf("Pipeline completed: %s", summary.FinalOutput))
	}
	summary.FinishedAt = time.Now()

	logger.Info("run finished",
		"state", summary.State,
		"failed", summary.Failed,
		"total", total,
		"duration_ms", summary.FinishedAt.Sub(started).Milliseconds(),
	)

	d.mu.Lock()
	d.status.State = summary.State
	d.status.CurrentStep = ""
	if summary.State == StateCompleted {
		d.status.Percent = 100
	}
	d.mu.Unlock()

	d.record(ctx, func(ctx context.Context, r Recorder) error {
		return r.RunFinished(ctx, summary)
	})

	h.summary = summary
	d.emit(h, Event{Type: EventRunCompleted, RunID: h.RunID, Index: total, Total: total, Percent: 100, Summary: summary, Error: errString(summary.Err())})
	close(h.events)
	d.running.Store(false)
	close(h.done)
}

func (d *Driver) runStep(ctx context.Context, logger *slog.Logger, engine *keyword.Engine, req Request, index int, step pipeline.Step) (outcome StepOutcome) {
	outcome = StepOutcome{Index: index, Key: step.Key, Status: StepFailed, ExitCode: -1}
	start := time.Now()
	defer func() { outcome.Duration = time.Since(start) }()

	def, ok := lookup(d.reg, step.Key)
	if !ok {
		outcome.Error = (&StepExecutionError{Key: step.Key, Err: errors.New("unknown step type")}).Error()
		return outcome
	}
	outcome.StepTypeID = def.ID

	expanded, err := engine.SubstituteStep(step)
	if err != nil {
		outcome.Error = (&StepExecutionError{Key: step.Key, Err: err}).Error()
		return outcome
	}

	output := registry.OutputName(def, expanded.ParamMap())
	res, err := d.exec.Execute(ctx, executor.Request{
		Key:        step.Key,
		StepTypeID: def.ID,
		Params:     expanded.Params,
		WorkDir:    req.WorkDir,
		Output:     output,
	})
	outcome.ExitCode = res.ExitCode
	outcome.StderrTail = res.StderrTail

	if err != nil || !res.IsSuccess() {
		stepErr := &StepExecutionError{Key: step.Key, ExitCode: res.ExitCode, Stderr: truncate(res.StderrTail, 512), Err: err}
		outcome.Error = stepErr.Error()
		logger.Warn("step failed", "exit_code", res.ExitCode, "error", err)
		return outcome
	}

	outcome.Status = StepCompleted
	outcome.Output = resolvePath(req.WorkDir, output)
	return outcome
}

// finish copies the last good output to the pipeline output and removes
// the intermediate files of the run.
func (d *Driver) finish(ctx context.Context, logger *slog.Logger, req Request, last, final string, produced []string) error {
	if !sameFile(last, final) {
		if err := copyFile(last, final); err != nil {
			return fmt.Errorf("copy final output: %w", err)
		}
		logger.Info("final output written", "output", logging.SanitizePath(final))
	}

	if req.NoCleanup {
		return nil
	}
	seen := make(map[string]bool)
	for _, p := range produced {
		if seen[p] || sameFile(p, final) {
			continue
		}
		seen[p] = true
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot remove intermediate file", "path", logging.SanitizePath(p), "error", err)
		}
	}
	return nil
}

func (d *Driver) emit(h *Handle, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.events <- ev

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (d *Driver) appendLog(runID, text string) {
	line := LogLine{Time: time.Now(), Text: text}
	d.mu.Lock()
	d.logs = append(d.logs, line)
	d.mu.Unlock()

	if runID != "" {
		d.record(context.Background(), func(ctx context.Context, r Recorder) error {
			return r.LogAppended(ctx, runID, line)
		})
	}
}

func (d *Driver) record(ctx context.Context, fn func(context.Context, Recorder) error) {
	if d.recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), d.recorder); err != nil {
		d.logger.Warn("cannot record run history", "error", err)
	}
}

func (d *Driver) currentRunID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status.RunID
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
