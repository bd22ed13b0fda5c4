package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/hvcrate-core/internal/auth"
)

// buildRouter mounts every endpoint under /api/v1. Health and metrics
// stay open to monitoring; everything else needs a token when auth is on.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
		s.corsMiddleware,
		middleware.RequestSize(maxRequestBodySize),
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermParamRead))

				r.Get("/crate", s.handleGetCrate)
				r.Get("/crate/info", s.handleCrateInfo)

				r.Route("/parameters", func(r chi.Router) {
					r.Get("/", s.handleListParameters)
					r.Get("/stats", s.handleParameterStats)
					r.Get("/{ref}", s.handleGetParameter)
					r.Get("/{ref}/value", s.handleReadParameter)
					r.With(s.requirePermission(auth.PermParamWrite)).
						Put("/{ref}/value", s.handleWriteParameter)
				})

				r.Get("/ws", s.handleWebSocket)
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermInventoryRead))

				r.Get("/runs", s.handleListRuns)
				r.Get("/runs/latest", s.handleLatestRun)
				r.Get("/runs/{id}/parameters", s.handleListRunParameters)
			})

			r.With(s.requirePermission(auth.PermAuditRead)).
				Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth always answers 200 while the process serves; the bridge
// field carries the crate's own health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok", "version": s.version, "crate": s.crateID}
	if s.bridge != nil {
		body["bridge"] = s.bridge.GetMetrics().Status
	}
	writeJSON(w, http.StatusOK, body)
}
