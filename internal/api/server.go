// Package api is the local HTTP service used by the node editor: it exports
// and validates graphs, starts and stops runs, and streams run progress.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-flow/internal/executor"
	"github.com/heimdex/heimdex-flow/internal/logging"
	"github.com/heimdex/heimdex-flow/internal/playback"
	"github.com/heimdex/heimdex-flow/internal/registry"
	"github.com/heimdex/heimdex-flow/internal/run"
	"github.com/heimdex/heimdex-flow/internal/store"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Registry   *registry.Registry
	Driver     *run.Driver
	Repository store.Repository
	Doctor     *executor.CachedDoctor
	Playback   playback.Service
	Logger     *slog.Logger
	StartTime  time.Time
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Event streams and media responses are long lived.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: logging.WithComponent(cfg.Logger, "api"),
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
