package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-flow/internal/api"
	"github.com/heimdex/heimdex-flow/internal/config"
	"github.com/heimdex/heimdex-flow/internal/executor"
	"github.com/heimdex/heimdex-flow/internal/playback"
	"github.com/heimdex/heimdex-flow/internal/run"
	"github.com/heimdex/heimdex-flow/internal/store"
	"github.com/heimdex/heimdex-flow/internal/ui"
)

func newServeCommand(g *globalFlags, version string) *cobra.Command {
	var (
		port int
		tray bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the node editor API on localhost",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			over := config.Overrides{Port: port}
			if cmd.Flags().Changed("tray") {
				over.Tray = &tray
			}
			e, err := g.load(cmd.ErrOrStderr(), over)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cmd.OutOrStdout(), e, version)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, fmt.Sprintf("listen port (default %d)", config.DefaultPort))
	cmd.Flags().BoolVar(&tray, "tray", false, "show the system tray icon")
	return cmd
}

func serve(ctx context.Context, out io.Writer, e *env, version string) error {
	startTime := time.Now()
	logger := e.logger
	cfg := e.cfg

	logger.Info("starting heimdex flow", "version", version, "data_dir", cfg.DataDir())

	database, repo, err := e.openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	authToken, err := store.EnsureAuthToken(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(out, "║  HEIMDEX FLOW %-63s ║\n", version)
	fmt.Fprintln(out, "╠═══════════════════════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(out, "║  API URL:    http://127.0.0.1:%-47d ║\n", cfg.Port())
	fmt.Fprintf(out, "║  Auth Token: %-64s ║\n", authToken)
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	exec := e.executor()
	doctor := executor.NewCachedDoctor(exec, logger)

	initCtx, initCancel := context.WithTimeout(ctx, cfg.DoctorTimeout())
	if caps, err := doctor.Refresh(initCtx); err != nil {
		logger.Warn("initial doctor probe failed", "error", err)
	} else {
		logger.Info("step dependencies detected",
			"deps", fmt.Sprintf("%d/%d", caps.Summary.Available, caps.Summary.Total),
			"missing", caps.Missing(),
		)
	}
	initCancel()

	driver := run.NewDriver(exec, e.reg, run.Options{
		Recorder: repo,
		Prober:   exec,
		Logger:   logger,
	})

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Registry:   e.reg,
		Driver:     driver,
		Repository: repo,
		Doctor:     doctor,
		Playback:   playback.NewServer(logger),
		Logger:     logger,
		StartTime:  startTime,
		Version:    version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})

	if !cfg.TrayEnabled() {
		logger.Info("running without system tray")
	} else {
		t := ui.NewTray(ui.TrayConfig{
			Runs:   driver,
			Logger: logger,
			OnOpenEditor: func() error {
				logger.Info("open the node editor and connect it to the API", "url", fmt.Sprintf("http://127.0.0.1:%d", cfg.Port()))
				return nil
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go t.Run()
	}

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-quitCh:
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	logger.Info("initiating graceful shutdown")
	if driver.IsRunning() {
		if err := driver.Stop(); err != nil {
			logger.Warn("failed to stop active run", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return serveErr
}
