// Package run drives a materialized pipeline: steps execute one at a time
// in order, failures are recorded without stopping the run, and the output
// of the last successful step becomes the pipeline output.
package run

import (
	"fmt"
	"time"

	"github.com/heimdex/heimdex-flow/internal/executor"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// DefaultOutput is the pipeline output file when none is requested.
const DefaultOutput = "output.mp4"

type EventType string

const (
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventStepFailed    EventType = "step_failed"
	EventRunCompleted  EventType = "run_completed"
)

// Event is one entry of a run's event stream.
type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id"`
	StepKey  string    `json:"step,omitempty"`
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Percent  int       `json:"percent"`
	ExitCode int       `json:"exit_code,omitempty"`
	Output   string    `json:"output,omitempty"`
	Error    string    `json:"error,omitempty"`
	Summary  *Summary  `json:"summary,omitempty"`
	Time     time.Time `json:"time"`
}

// Request describes one run.
type Request struct {
	Config *pipeline.Config
	// WorkDir is the directory relative step paths resolve against.
	WorkDir string
	// ConfigDir is the directory holding the configuration. FOLDER_NAME and
	// RANDOM_FILE read it. Empty means WorkDir.
	ConfigDir string
	// Output is the final pipeline output, relative to WorkDir unless
	// absolute. Empty means DefaultOutput.
	Output    string
	NoCleanup bool
	// Source names where the configuration came from, for history only.
	Source string
}

type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// StepOutcome is the recorded result of one executed step.
type StepOutcome struct {
	Index      int           `json:"index"`
	Key        string        `json:"key"`
	StepTypeID string        `json:"step_type"`
	Status     StepStatus    `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Summary is the final report of a run.
type Summary struct {
	RunID       string                `json:"run_id"`
	State       State                 `json:"state"`
	Total       int                   `json:"total"`
	Executed    int                   `json:"executed"`
	Failed      int                   `json:"failed"`
	FinalOutput string                `json:"final_output,omitempty"`
	NoOutput    bool                  `json:"no_output"`
	Error       string                `json:"error,omitempty"`
	Steps       []StepOutcome         `json:"steps"`
	Media       *executor.ProbeResult `json:"media,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
}

// Err maps the summary onto the error taxonomy: nil for a clean run.
func (s *Summary) Err() error {
	switch {
	case s.State == StateStopped:
		return ErrStopped
	case s.NoOutput:
		return fmt.Errorf("%w: %w", ErrNoOutputProduced, &StepsFailedError{Failed: s.Failed, Total: s.Total})
	case s.Failed > 0:
		return &StepsFailedError{Failed: s.Failed, Total: s.Total}
	case s.Error != "":
		return fmt.Errorf("run %s: %s", s.RunID, s.Error)
	}
	return nil
}

// Status is a snapshot of the driver.
type Status struct {
	RunID       string    `json:"run_id,omitempty"`
	State       State     `json:"state"`
	Running     bool      `json:"is_running"`
	CurrentStep string    `json:"current_step,omitempty"`
	StepIndex   int       `json:"step_index"`
	Total       int       `json:"total"`
	Percent     int       `json:"progress_percent"`
	StartedAt   time.Time `json:"started_at,omitzero"`
}

// LogLine is one timestamped run log entry.
type LogLine struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

func (l LogLine) String() string {
	return fmt.Sprintf("[%s] %s", l.Time.Format("15:04:05"), l.Text)
}

// RunInfo is what a Recorder learns when a run starts.
type RunInfo struct {
	ID        string
	Source    string
	WorkDir   string
	Output    string
	Steps     []string
	StartedAt time.Time
}
