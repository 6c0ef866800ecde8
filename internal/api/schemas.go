package api

import (
	"encoding/json"
	"time"

	"github.com/heimdex/heimdex-flow/internal/executor"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
	"github.com/heimdex/heimdex-flow/internal/registry"
	"github.com/heimdex/heimdex-flow/internal/run"
	"github.com/heimdex/heimdex-flow/internal/store"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	Run   run.Status     `json:"run"`
	Tools *ToolsResponse `json:"tools,omitempty"`
}

type ToolsResponse struct {
	FFmpeg           bool     `json:"ffmpeg"`
	FFprobe          bool     `json:"ffprobe"`
	ScriptsAvailable int      `json:"scripts_available"`
	ScriptsTotal     int      `json:"scripts_total"`
	Missing          []string `json:"missing,omitempty"`
	LastProbeAt      string   `json:"last_probe_at,omitempty"`
}

type CategoryResponse struct {
	Name  string                     `json:"name"`
	Steps []*registry.StepDefinition `json:"steps"`
}

type StepsResponse struct {
	Categories []CategoryResponse `json:"categories"`
}

type ExportResponse struct {
	Order  []string         `json:"order"`
	Config *pipeline.Config `json:"config"`
}

// RunRequest starts a run from either a materialized configuration or a
// graph document, never both.
type RunRequest struct {
	Config    json.RawMessage `json:"config,omitempty"`
	Graph     json.RawMessage `json:"graph,omitempty"`
	WorkDir   string          `json:"work_dir"`
	Output    string          `json:"output,omitempty"`
	NoCleanup bool            `json:"no_cleanup,omitempty"`
	Source    string          `json:"source,omitempty"`
}

type RunStartedResponse struct {
	RunID string `json:"run_id"`
	Steps int    `json:"steps"`
}

type StopResponse struct {
	Status string `json:"status"`
}

type RunsResponse struct {
	Runs []*store.Run `json:"runs"`
}

type RunDetailResponse struct {
	*store.Run
	Logs []string `json:"logs"`
}

type LogsResponse struct {
	Running bool     `json:"is_running"`
	Lines   []string `json:"lines"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code,omitempty"`
	Problems []string `json:"problems,omitempty"`
	Cycle    []string `json:"cycle,omitempty"`
}

func CapabilitiesToResponse(c *executor.Capabilities) *ToolsResponse {
	resp := &ToolsResponse{
		FFmpeg:           c.FFmpeg.Available,
		FFprobe:          c.FFprobe.Available,
		ScriptsAvailable: c.Summary.Available,
		ScriptsTotal:     c.Summary.Total,
		Missing:          c.Missing(),
	}
	if !c.ProbedAt.IsZero() {
		resp.LastProbeAt = c.ProbedAt.Format(time.RFC3339)
	}
	return resp
}

func LogLinesToStrings(lines []run.LogLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return out
}
