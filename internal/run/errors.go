package run

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRunning   = errors.New("a pipeline run is already in progress")
	ErrNotRunning       = errors.New("no pipeline run in progress")
	ErrRunInProgress    = errors.New("logs cannot be cleared while a run is in progress")
	ErrNoOutputProduced = errors.New("no step produced an output")
	ErrStopped          = errors.New("run stopped")
	ErrInvalidRequest   = errors.New("invalid run request")
)

// StepExecutionError records why a single step failed. The driver never
// returns it; it ends up in the step outcome and the run log.
type StepExecutionError struct {
	Key      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StepExecutionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("step %s: %v", e.Key, e.Err)
	case e.Stderr != "":
		return fmt.Sprintf("step %s exited %d: %s", e.Key, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("step %s exited %d", e.Key, e.ExitCode)
	}
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// StepsFailedError is the run level summary of step failures.
type StepsFailedError struct {
	Failed int
	Total  int
}

func (e *StepsFailedError) Error() string {
	return fmt.Sprintf("%d of %d steps failed", e.Failed, e.Total)
}
