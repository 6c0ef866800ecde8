package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/heimdex/heimdex-flow/internal/config"
	"github.com/heimdex/heimdex-flow/internal/db"
	"github.com/heimdex/heimdex-flow/internal/executor"
	"github.com/heimdex/heimdex-flow/internal/export"
	"github.com/heimdex/heimdex-flow/internal/graph"
	"github.com/heimdex/heimdex-flow/internal/logging"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
	"github.com/heimdex/heimdex-flow/internal/registry"
	"github.com/heimdex/heimdex-flow/internal/store"
)

// env is what a command needs from configuration, resolved once.
type env struct {
	cfg    *config.EnvConfig
	logger *slog.Logger
	reg    *registry.Registry
}

func (g *globalFlags) load(logOut io.Writer, extra config.Overrides) (*env, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, &usageError{fmt.Errorf("load config: %w", err)}
	}
	extra.LogLevel = g.logLevel
	extra.DataDir = g.dataDir
	extra.ScriptsDir = g.scriptsDir
	extra.StepTimeout = g.stepTimeout
	cfg.Apply(extra)

	format := cfg.LogFormat()
	if g.logFormat != "" {
		format = g.logFormat
	}

	return &env{
		cfg:    cfg,
		logger: logging.NewLogger(logOut, cfg.LogLevel(), format),
		reg:    registry.Default(),
	}, nil
}

func (e *env) executor() *executor.SubprocessExecutor {
	return executor.NewSubprocessExecutor(executor.Config{
		ScriptsDir:    e.cfg.ScriptsDir(),
		FFmpeg:        e.cfg.FFmpeg(),
		FFprobe:       e.cfg.FFprobe(),
		StepTimeout:   e.cfg.StepTimeout(),
		DoctorTimeout: e.cfg.DoctorTimeout(),
		StepTypes:     executableSteps(e.reg),
		Logger:        e.logger,
	})
}

// openStore opens the run history database, creating the data dir.
func (e *env) openStore() (*db.DB, store.Repository, error) {
	if err := os.MkdirAll(e.cfg.DataDir(), 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	database, err := db.New(e.cfg.DBPath(), e.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return database, store.NewRepository(database.Conn()), nil
}

func executableSteps(reg *registry.Registry) []string {
	var ids []string
	for _, def := range reg.All() {
		if def.Executable() {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// loadPipeline reads either a graph document, which is exported on the fly,
// or an already materialized pipeline configuration.
func loadPipeline(path string, reg *registry.Registry) (*pipeline.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !graph.IsDocument(data) {
		return pipeline.Parse(data)
	}

	doc, err := graph.Parse(data)
	if err != nil {
		return nil, err
	}
	res, err := export.Export(doc, reg)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}
