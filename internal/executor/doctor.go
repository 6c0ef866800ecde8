package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/heimdex/heimdex-flow/internal/logging"
)

const defaultCacheTTL = 5 * time.Minute

// Doctor probes the host for the tools steps depend on.
type Doctor interface {
	RunDoctor(ctx context.Context) (*Capabilities, error)
}

// RunDoctor checks ffmpeg, ffprobe and one wrapper script per configured
// step type.
func (e *SubprocessExecutor) RunDoctor(ctx context.Context) (*Capabilities, error) {
	if e.cfg.DoctorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.DoctorTimeout)
		defer cancel()
	}

	caps := &Capabilities{
		FFmpeg:  e.probeTool(ctx, e.cfg.FFmpeg),
		FFprobe: e.probeTool(ctx, e.cfg.FFprobe),
		Scripts: make(map[string]ToolInfo, len(e.cfg.StepTypes)),
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("doctor probe: %w", err)
	}

	for _, id := range e.cfg.StepTypes {
		p, err := e.resolveScript(id)
		if err != nil {
			caps.Scripts[id] = ToolInfo{Error: err.Error()}
			continue
		}
		caps.Scripts[id] = ToolInfo{Available: true, Path: p}
	}

	caps.Summary.Total = 2 + len(caps.Scripts)
	for _, t := range []ToolInfo{caps.FFmpeg, caps.FFprobe} {
		if t.Available {
			caps.Summary.Available++
		}
	}
	for _, t := range caps.Scripts {
		if t.Available {
			caps.Summary.Available++
		}
	}
	caps.Summary.AllOK = caps.Summary.Available == caps.Summary.Total
	caps.ProbedAt = time.Now()

	e.cfg.Logger.Info("doctor probe complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ffprobe", caps.FFprobe.Available,
		"deps_available", caps.Summary.Available,
		"deps_total", caps.Summary.Total,
	)

	return caps, nil
}

func (e *SubprocessExecutor) probeTool(ctx context.Context, name string) ToolInfo {
	p, err := exec.LookPath(name)
	if err != nil {
		return ToolInfo{Error: fmt.Sprintf("%s not found", name)}
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, p, "-version")
	cmd.Stdout = &limitedWriter{w: &out, limit: maxStdoutBytes}
	if err := cmd.Run(); err != nil {
		return ToolInfo{Path: p, Error: err.Error()}
	}
	return ToolInfo{Available: true, Path: p, Version: firstLine(out.String())}
}

// CachedDoctor wraps a Doctor to cache probe results with a configurable TTL.
// This avoids re-probing the host on every status request.
type CachedDoctor struct {
	doctor Doctor
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedDoctor creates a caching wrapper around doctor probes.
func NewCachedDoctor(doctor Doctor, logger *slog.Logger) *CachedDoctor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &CachedDoctor{
		doctor: doctor,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new doctor probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.doctor.RunDoctor(ctx)
	if err != nil {
		d.logger.Warn("doctor probe failed", "error", err)
		// Return stale cache if available
		if d.cached != nil {
			d.logger.Info("returning stale capabilities cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
