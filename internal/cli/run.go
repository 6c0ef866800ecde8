package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-flow/internal/config"
	"github.com/heimdex/heimdex-flow/internal/executor"
	"github.com/heimdex/heimdex-flow/internal/run"
	"github.com/heimdex/heimdex-flow/internal/watcher"
)

type runFlags struct {
	workDir   string
	output    string
	noCleanup bool
	noHistory bool
	quiet     bool
	watch     bool
}

func newRunCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <pipeline.json|graph.json>",
		Short: "Execute a pipeline configuration or graph document",
		Long: "Run executes every step in order. A failed step does not stop the run; " +
			"the output of the last successful step becomes the pipeline output.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load(cmd.ErrOrStderr(), config.Overrides{})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exec := e.executor()
			if f.watch {
				return watchPipeline(ctx, cmd, e, exec, args[0], f, watcher.NewPollWatcher(watcher.DefaultInterval, e.logger))
			}
			return runPipeline(ctx, cmd, e, exec, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.workDir, "work-dir", "C", "", "working directory (default: the configuration's directory)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "final output path (default: "+run.DefaultOutput+")")
	cmd.Flags().BoolVar(&f.noCleanup, "no-cleanup", false, "keep intermediate step outputs")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record the run in the history database")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "only print failures and the summary")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "run again whenever the file changes")
	return cmd
}

// stepRunner is an executor that can also probe the final output.
type stepRunner interface {
	executor.StepExecutor
	run.Prober
}

func runPipeline(ctx context.Context, cmd *cobra.Command, e *env, exec stepRunner, path string, f *runFlags) error {
	pcfg, err := loadPipeline(path, e.reg)
	if err != nil {
		return err
	}

	workDir, err := resolveWorkDir(path, f.workDir)
	if err != nil {
		return err
	}
	configDir, err := resolveWorkDir(path, "")
	if err != nil {
		return err
	}

	opts := run.Options{Prober: exec, Logger: e.logger}
	if !f.noHistory {
		database, repo, err := e.openStore()
		if err != nil {
			e.logger.Warn("run history unavailable", "error", err)
		} else {
			defer database.Close()
			opts.Recorder = repo
		}
	}

	driver := run.NewDriver(exec, e.reg, opts)
	h, err := driver.Start(ctx, run.Request{
		Config:    pcfg,
		WorkDir:   workDir,
		ConfigDir: configDir,
		Output:    f.output,
		NoCleanup: f.noCleanup,
		Source:    filepath.Base(path),
	})
	if err != nil {
		return err
	}

	p := &printer{w: cmd.OutOrStdout(), quiet: f.quiet}
	for ev := range h.Events() {
		p.event(ev)
	}
	return h.Wait().Err()
}

// watchPipeline runs once and then again after every change to path until
// ctx is cancelled. Run failures are reported and do not end the watch.
func watchPipeline(ctx context.Context, cmd *cobra.Command, e *env, exec stepRunner, path string, f *runFlags, w watcher.Watcher) error {
	out := cmd.OutOrStdout()
	once := func() {
		if err := runPipeline(ctx, cmd, e, exec, path, f); err != nil {
			fmt.Fprintln(out, color.RedString("Error:"), err)
		}
		fmt.Fprintf(out, "\nwatching %s for changes\n", path)
	}

	w.OnChange(func(p string, ev watcher.EventType) {
		if ev == watcher.EventDelete || ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "\n%s changed\n", p)
		once()
	})

	once()
	return w.Watch(ctx, path)
}

func resolveWorkDir(configPath, flag string) (string, error) {
	dir := flag
	if dir == "" {
		dir = filepath.Dir(configPath)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: work dir: %v", run.ErrInvalidRequest, err)
	}
	return abs, nil
}
