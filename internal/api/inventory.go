package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/hvcrate-core/internal/inventory"
)

// handleListRuns lists the discovery runs of this crate, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireInventory(w) {
		return
	}

	runs, err := s.inventory.ListRuns(r.Context(), s.crateID)
	if err != nil {
		s.logger.Error("listing inventory runs", "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []inventory.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleLatestRun returns the most recent run with its boards.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireInventory(w) {
		return
	}

	run, err := s.inventory.LatestRun(r.Context(), s.crateID)
	if errors.Is(err, inventory.ErrRunNotFound) {
		writeNotFound(w, "no inventory runs recorded")
		return
	}
	if err != nil {
		s.logger.Error("loading latest inventory run", "error", err)
		writeInternalError(w, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleListRunParameters returns the catalog recorded by a run.
//
// Query parameters:
//   - record: return only the parameter with this record name
func (s *Server) handleListRunParameters(w http.ResponseWriter, r *http.Request) {
	if !s.requireInventory(w) {
		return
	}
	runID := chi.URLParam(r, "id")

	if record := r.URL.Query().Get("record"); record != "" {
		p, err := s.inventory.GetParameterByRecord(r.Context(), runID, record)
		if errors.Is(err, inventory.ErrParameterNotFound) {
			writeNotFound(w, "parameter not found in run")
			return
		}
		if err != nil {
			s.logger.Error("loading inventory parameter", "run_id", runID, "error", err)
			writeInternalError(w, "failed to load parameter")
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	params, err := s.inventory.ListParameters(r.Context(), runID)
	if err != nil {
		s.logger.Error("listing inventory parameters", "run_id", runID, "error", err)
		writeInternalError(w, "failed to list parameters")
		return
	}
	if len(params) == 0 {
		writeNotFound(w, "run not found or empty")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     runID,
		"parameters": params,
		"count":      len(params),
	})
}

// requireInventory answers 503 when no inventory repository is attached.
func (s *Server) requireInventory(w http.ResponseWriter) bool {
	if s.inventory == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "inventory not configured")
		return false
	}
	return true
}
