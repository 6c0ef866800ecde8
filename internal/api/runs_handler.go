package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-flow/internal/export"
	"github.com/heimdex/heimdex-flow/internal/graph"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
	"github.com/heimdex/heimdex-flow/internal/run"
	"github.com/heimdex/heimdex-flow/internal/store"
)

const maxRunsLimit = 500

func startRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		hasConfig, hasGraph := len(req.Config) > 0, len(req.Graph) > 0
		if hasConfig == hasGraph {
			WriteError(w, http.StatusBadRequest, "exactly one of config or graph is required", "BAD_REQUEST")
			return
		}

		var (
			pcfg *pipeline.Config
			err  error
		)
		if hasGraph {
			pcfg, err = configFromGraph(cfg, req.Graph)
		} else {
			pcfg, err = pipeline.Parse(req.Config)
		}
		if err != nil {
			writePipelineError(w, err)
			return
		}

		// The run outlives this request.
		ctx := context.WithoutCancel(r.Context())
		h, err := cfg.Driver.Start(ctx, run.Request{
			Config:    pcfg,
			WorkDir:   req.WorkDir,
			Output:    req.Output,
			NoCleanup: req.NoCleanup,
			Source:    req.Source,
		})
		if err != nil {
			writePipelineError(w, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, RunStartedResponse{RunID: h.RunID, Steps: len(pcfg.Steps)})
	}
}

func configFromGraph(cfg ServerConfig, raw json.RawMessage) (*pipeline.Config, error) {
	doc, err := graph.Parse(raw)
	if err != nil {
		return nil, err
	}
	res, err := export.Export(doc, cfg.Registry)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

func stopRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Driver.Stop(); err != nil {
			if errors.Is(err, run.ErrNotRunning) {
				WriteError(w, http.StatusConflict, err.Error(), "NOT_RUNNING")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusAccepted, StopResponse{Status: "stopping"})
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = min(n, maxRunsLimit)
		}

		runs, err := cfg.Repository.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}
		if runs == nil {
			runs = []*store.Run{}
		}
		WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs})
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := cfg.Repository.GetRun(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if rec == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}

		lines, err := cfg.Repository.GetRunLogs(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, RunDetailResponse{Run: rec, Logs: LogLinesToStrings(lines)})
	}
}

func runOutputHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := cfg.Repository.GetRun(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if rec == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}
		if rec.FinalOutput == "" {
			WriteError(w, http.StatusNotFound, "run produced no output", "NO_OUTPUT")
			return
		}

		if err := cfg.Playback.ServeFile(w, r, rec.FinalOutput); err != nil {
			cfg.Logger.Error("playback error", "error", err, "run_id", id)
		}
	}
}

func logsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, LogsResponse{
			Running: cfg.Driver.IsRunning(),
			Lines:   LogLinesToStrings(cfg.Driver.Logs()),
		})
	}
}

func clearLogsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Driver.ClearLogs(); err != nil {
			if errors.Is(err, run.ErrRunInProgress) {
				WriteError(w, http.StatusConflict, err.Error(), "RUN_IN_PROGRESS")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
