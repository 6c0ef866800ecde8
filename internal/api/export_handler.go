package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/heimdex/heimdex-flow/internal/export"
	"github.com/heimdex/heimdex-flow/internal/graph"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
	"github.com/heimdex/heimdex-flow/internal/run"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := readGraph(w, r)
		if !ok {
			return
		}

		res, err := export.Export(doc, cfg.Registry)
		if err != nil {
			writePipelineError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, ExportResponse{Order: res.Order, Config: res.Config})
	}
}

func validateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := readGraph(w, r)
		if !ok {
			return
		}

		report, err := export.Validate(doc, cfg.Registry)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		if report.Problems == nil {
			report.Problems = []string{}
		}

		WriteJSON(w, http.StatusOK, report)
	}
}

func readGraph(w http.ResponseWriter, r *http.Request) (*graph.Document, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return nil, false
	}

	doc, err := graph.Parse(body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_GRAPH")
		return nil, false
	}
	return doc, true
}

// writePipelineError maps the export and run error taxonomy onto HTTP
// responses.
func writePipelineError(w http.ResponseWriter, err error) {
	var (
		cycleErr *export.CycleError
		validErr *export.ValidationError
		cfgErr   *export.ConfigError
	)

	switch {
	case errors.As(err, &cycleErr):
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "CIRCULAR_DEPENDENCY",
			Cycle: cycleErr.Path,
		})
	case errors.As(err, &validErr):
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "graph failed validation",
			Code:     "VALIDATION_FAILED",
			Problems: validErr.Problems,
		})
	case errors.As(err, &cfgErr):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "CONFIGURATION_ERROR")
	case errors.Is(err, graph.ErrInvalidDocument):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_GRAPH")
	case errors.Is(err, pipeline.ErrMalformed):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_CONFIG")
	case errors.Is(err, run.ErrInvalidRequest):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, run.ErrAlreadyRunning):
		WriteError(w, http.StatusConflict, err.Error(), "RUN_IN_PROGRESS")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
