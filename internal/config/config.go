// Package config provides configuration management for heimdex-flow.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort      = 8797
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultDataDir   = ".heimdex-flow"
	DefaultFFmpeg    = "ffmpeg"
	DefaultFFprobe   = "ffprobe"

	// Environment variable names
	EnvPort        = "FLOW_PORT"
	EnvLogLevel    = "FLOW_LOG_LEVEL"
	EnvLogFormat   = "FLOW_LOG_FORMAT"
	EnvDataDir     = "FLOW_DATA_DIR"
	EnvScriptsDir  = "FLOW_SCRIPTS_DIR"
	EnvFFmpeg      = "FLOW_FFMPEG"
	EnvFFprobe     = "FLOW_FFPROBE"
	EnvStepTimeout = "FLOW_STEP_TIMEOUT"
	EnvTray        = "FLOW_TRAY"

	// Database filename
	DBFilename = "flow.db"

	DefaultDoctorTimeout = 15 // seconds
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	ScriptsDir() string
	FFmpeg() string
	FFprobe() string
	StepTimeout() time.Duration
	DoctorTimeout() time.Duration
	TrayEnabled() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port        int
	logLevel    string
	logFormat   string
	dataDir     string
	scriptsDir  string
	ffmpeg      string
	ffprobe     string
	stepTimeout time.Duration
	tray        bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:      DefaultPort,
		logLevel:  DefaultLogLevel,
		logFormat: DefaultLogFormat,
		dataDir:   defaultDataDir(),
		ffmpeg:    DefaultFFmpeg,
		ffprobe:   DefaultFFprobe,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if lf := os.Getenv(EnvLogFormat); lf != "" {
		lf = strings.ToLower(lf)
		if lf != "json" && lf != "text" {
			return nil, fmt.Errorf("invalid %s: must be json or text", EnvLogFormat)
		}
		cfg.logFormat = lf
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.scriptsDir = os.Getenv(EnvScriptsDir)

	if v := os.Getenv(EnvFFmpeg); v != "" {
		cfg.ffmpeg = v
	}
	if v := os.Getenv(EnvFFprobe); v != "" {
		cfg.ffprobe = v
	}

	if st := os.Getenv(EnvStepTimeout); st != "" {
		secs, err := strconv.Atoi(st)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvStepTimeout, err)
		}
		if secs < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvStepTimeout)
		}
		cfg.stepTimeout = time.Duration(secs) * time.Second
	}

	if tr := os.Getenv(EnvTray); tr != "" {
		on, err := strconv.ParseBool(tr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTray, err)
		}
		cfg.tray = on
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns json or text
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) ScriptsDir() string {
	return c.scriptsDir
}

func (c *EnvConfig) FFmpeg() string {
	return c.ffmpeg
}

func (c *EnvConfig) FFprobe() string {
	return c.ffprobe
}

// StepTimeout is the per-step limit; zero means none.
func (c *EnvConfig) StepTimeout() time.Duration {
	return c.stepTimeout
}

func (c *EnvConfig) DoctorTimeout() time.Duration {
	return time.Duration(DefaultDoctorTimeout) * time.Second
}

func (c *EnvConfig) TrayEnabled() bool {
	return c.tray
}

// Overrides carries command-line values that win over the environment for
// one invocation. Zero values leave the environment value in place.
type Overrides struct {
	Port        int
	LogLevel    string
	ScriptsDir  string
	DataDir     string
	StepTimeout time.Duration
	Tray        *bool
}

// Apply copies the non-zero override values into c.
func (c *EnvConfig) Apply(o Overrides) {
	if o.Port != 0 {
		c.port = o.Port
	}
	if o.LogLevel != "" {
		c.logLevel = o.LogLevel
	}
	if o.ScriptsDir != "" {
		c.scriptsDir = o.ScriptsDir
	}
	if o.DataDir != "" {
		c.dataDir = o.DataDir
	}
	if o.StepTimeout != 0 {
		c.stepTimeout = o.StepTimeout
	}
	if o.Tray != nil {
		c.tray = *o.Tray
	}
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
