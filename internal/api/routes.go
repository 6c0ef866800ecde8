package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds graph and configuration uploads.
const maxBodyBytes = 8 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	// Players cannot send a bearer token, so media is limited to local
	// clients instead.
	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())

		r.Get("/runs/{id}/output", runOutputHandler(cfg))
		r.Head("/runs/{id}/output", runOutputHandler(cfg))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/steps", stepsHandler(cfg))
		r.Post("/export", exportHandler(cfg))
		r.Post("/validate", validateHandler(cfg))

		r.Post("/runs", startRunHandler(cfg))
		r.Post("/runs/stop", stopRunHandler(cfg))
		r.Get("/runs", listRunsHandler(cfg))
		r.Get("/runs/{id}", getRunHandler(cfg))

		r.Get("/logs", logsHandler(cfg))
		r.Delete("/logs", clearLogsHandler(cfg))
		r.Get("/events", eventsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{Run: cfg.Driver.Status()}

		// Peek keeps status cheap; the cache is filled at startup and by
		// the doctor command.
		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Peek(); caps != nil {
				resp.Tools = CapabilitiesToResponse(caps)
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func stepsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats := cfg.Registry.Categories()
		resp := StepsResponse{Categories: make([]CategoryResponse, len(cats))}
		for i, c := range cats {
			resp.Categories[i] = CategoryResponse{Name: c, Steps: cfg.Registry.ListByCategory(c)}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
