// Package store keeps run history and settings in SQLite.
package store

import (
	"time"

	"github.com/heimdex/heimdex-flow/internal/run"
)

// AuthTokenKey is the config key holding the API bearer token.
const AuthTokenKey = "auth_token"

// Run is one recorded pipeline run.
type Run struct {
	ID          string            `json:"id"`
	Source      string            `json:"source,omitempty"`
	WorkDir     string            `json:"work_dir"`
	Output      string            `json:"output"`
	Status      run.State         `json:"status"`
	Total       int               `json:"total"`
	Executed    int               `json:"executed"`
	Failed      int               `json:"failed"`
	FinalOutput string            `json:"final_output,omitempty"`
	NoOutput    bool              `json:"no_output"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at,omitzero"`
	Steps       []run.StepOutcome `json:"steps,omitempty"`
}
