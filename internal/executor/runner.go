package executor

import (
	"bytes"
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
	"time"

	"github.com/heimdex/heimdex-flow/internal/logging"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	maxStdoutBytes = 4 * 1024
)

// Config holds the executor's configuration.
type Config struct {
	ScriptsDir    string        // directory holding step scripts; empty = PATH lookup
	FFmpeg        string        // ffmpeg binary handed to scripts via $FFMPEG
	FFprobe       string        // ffprobe binary handed to scripts via $FFPROBE
	StepTimeout   time.Duration // per step; zero = none
	DoctorTimeout time.Duration
	// StepTypes are the executable step ids the doctor checks scripts for.
	StepTypes  []string
	Logger     *slog.Logger
	DebugPaths bool // if true, log full file paths; otherwise sanitise
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		FFmpeg:        "ffmpeg",
		FFprobe:       "ffprobe",
		DoctorTimeout: 15 * time.Second,
		Logger:        logger,
	}
}

// SubprocessExecutor is the production StepExecutor.
type SubprocessExecutor struct {
	cfg Config
}

func NewSubprocessExecutor(cfg Config) *SubprocessExecutor {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.FFprobe == "" {
		cfg.FFprobe = "ffprobe"
	}
	cfg.Logger = logging.WithComponent(cfg.Logger, "executor")
	return &SubprocessExecutor{cfg: cfg}
}

// Execute runs the wrapper script for req.StepTypeID inside req.WorkDir.
func (e *SubprocessExecutor) Execute(ctx context.Context, req Request) (Result, error) {
	script, err := e.resolveScript(req.StepTypeID)
	if err != nil {
		return Result{ExitCode: -1, StderrTail: err.Error()}, err
	}

	if e.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.StepTimeout)
		defer cancel()
	}

	result := e.exec(ctx, req.WorkDir, script, BuildArgs(req.Params)...)
	if !result.IsSuccess() || req.Output == "" {
		return result, nil
	}

	out := req.Output
	if !filepath.IsAbs(out) {
		out = filepath.Join(req.WorkDir, out)
	}
	result.OutputPath = out
	if _, err := os.Stat(out); err != nil {
		return result, fmt.Errorf("%w: %s", ErrOutputMissing, e.safePath(out))
	}
	return result, nil
}

// BuildArgs maps parameters onto --name value flags. A true boolean becomes
// a bare --name; a false one is left out.
func BuildArgs(params []pipeline.Param) []string {
	args := make([]string, 0, 2*len(params))
	for _, p := range params {
		flag := "--" + p.Name
		switch v := p.Value.(type) {
		case nil:
		case bool:
			if v {
				args = append(args, flag)
			}
		case string:
			args = append(args, flag, v)
		case float64:
			args = append(args, flag, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			args = append(args, flag, fmt.Sprint(v))
		}
	}
	return args
}

// resolveScript finds the wrapper for a step type: <dir>/<id> or
// <dir>/<id>.sh when a scripts directory is configured, PATH otherwise.
func (e *SubprocessExecutor) resolveScript(stepTypeID string) (string, error) {
	if e.cfg.ScriptsDir != "" {
		for _, name := range []string{stepTypeID, stepTypeID + ".sh"} {
			p := filepath.Join(e.cfg.ScriptsDir, name)
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				return p, nil
			}
		}
		return "", fmt.Errorf("%w: %s in %s", ErrScriptNotFound, stepTypeID, e.safePath(e.cfg.ScriptsDir))
	}
	p, err := exec.LookPath(stepTypeID)
	if err != nil {
		return "", fmt.Errorf("%w: %s on PATH", ErrScriptNotFound, stepTypeID)
	}
	return p, nil
}

// exec is the core subprocess execution helper.
func (e *SubprocessExecutor) exec(ctx context.Context, dir, name string, args ...string) Result {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "FFMPEG="+e.cfg.FFmpeg, "FFPROBE="+e.cfg.FFprobe)

	// Capture output with bounded buffers
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.Writer(&limitedWriter{w: &stdoutBuf, limit: maxStdoutBytes})
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	e.cfg.Logger.Info("executing step command",
		"command", e.safePath(name),
		"args", args,
		"dir", e.safePath(dir),
	)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			stderrBuf.WriteString(err.Error())
		}
	}

	stderrTail := stderrBuf.String()

	if exitCode != 0 {
		e.cfg.Logger.Warn("step command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		e.cfg.Logger.Info("step command succeeded",
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return Result{
		ExitCode:   exitCode,
		StdoutTail: stdoutBuf.String(),
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func (e *SubprocessExecutor) safePath(path string) string {
	if e.cfg.DebugPaths {
		return path
	}
	return logging.SanitizePath(path)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

// firstLine returns the first non-empty line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
