// Package executor runs single pipeline steps as subprocesses. Each step type
// maps onto a wrapper script of the same name that turns --flag arguments
// into an ffmpeg invocation.
package executor

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/heimdex/heimdex-flow/internal/pipeline"
)

var (
	ErrScriptNotFound = errors.New("step script not found")
	ErrOutputMissing  = errors.New("step reported success but its output is missing")
)

// StepExecutor runs one fully bound, placeholder-expanded step.
// A non-nil error means the step could not be run or broke its output
// contract; a non-zero exit code is reported through Result.
type StepExecutor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Request describes one step invocation.
type Request struct {
	Key        string
	StepTypeID string
	Params     []pipeline.Param
	// WorkDir is the directory relative paths in Params are resolved
	// against: the directory holding the pipeline configuration.
	WorkDir string
	// Output is the file the step must produce on success. Empty skips
	// the check.
	Output string
}

// Result is the structured outcome of executing a step subprocess.
type Result struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StdoutTail string        `json:"stdout_tail,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r Result) IsSuccess() bool { return r.ExitCode == 0 }

// Capabilities is what the host can run, as found by the doctor probe.
type Capabilities struct {
	FFmpeg   ToolInfo            `json:"ffmpeg"`
	FFprobe  ToolInfo            `json:"ffprobe"`
	Scripts  map[string]ToolInfo `json:"scripts"`
	Summary  SummaryInfo         `json:"summary"`
	ProbedAt time.Time           `json:"probed_at"`
}

// ToolInfo represents the availability status of a single binary or script.
type ToolInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SummaryInfo summarises overall dependency status.
type SummaryInfo struct {
	Available int  `json:"available"`
	Total     int  `json:"total"`
	AllOK     bool `json:"all_ok"`
}

// Missing lists the step scripts that could not be found, sorted.
func (c *Capabilities) Missing() []string {
	var out []string
	for name, info := range c.Scripts {
		if !info.Available {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// ProbeResult is the subset of ffprobe output reported for a finished run.
type ProbeResult struct {
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Codec      string  `json:"codec,omitempty"`
	Bitrate    int64   `json:"bitrate,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
}
