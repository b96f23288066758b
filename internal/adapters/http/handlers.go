package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jobrunner/byoc/internal/application"
	"github.com/jobrunner/byoc/internal/domain"
)

// maxRunsLimit caps the runs endpoint.
const maxRunsLimit = 500

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":        boolToStatus(details.Healthy),
		"ready":         details.Ready,
		"collection_id": details.CollectionID,
		"last_sync":     details.LastSync,
		"last_error":    details.LastError,
		"components":    details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleReport returns the ingestion report of the collection.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingestion.Report(r.Context())
	if err != nil {
		s.handleServiceError(w, "report", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection_id":   s.ingestion.CollectionID(),
		"counts":          report.Counts,
		"failure_reasons": report.FailureReasons,
		"done":            report.Done(),
	})
}

// handlePlan returns the tiles the next ingest would submit.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	tiles, err := s.ingestion.Plan(r.Context())
	if err != nil {
		s.handleServiceError(w, "plan", err)
		return
	}

	formatted := make([]map[string]interface{}, len(tiles))
	for i, tile := range tiles {
		formatted[i] = map[string]interface{}{
			"path":         tile.Path,
			"sensing_time": tile.SensingTime.UTC().Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection_id": s.ingestion.CollectionID(),
		"tiles":         formatted,
		"count":         len(tiles),
	})
}

// handleRuns returns recent ingestion runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxRunsLimit))
			return
		}
		limit = n
	}

	runs, err := s.ingestion.Runs(r.Context(), limit)
	if err != nil {
		s.handleServiceError(w, "runs", err)
		return
	}
	if runs == nil {
		runs = []domain.IngestRun{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.sync.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(application.TriggerCooldown.Seconds())))
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.handleServiceError(w, "sync", err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := openAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// handleServiceError maps domain errors to HTTP status codes.
func (s *Server) handleServiceError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, domain.ErrNoCollection):
		s.writeError(w, http.StatusConflict, "No collection configured")
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMalformedPath):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		s.logger.Warn(operation+" failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "Upstream service unavailable")
	default:
		s.logger.Error(operation+" failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Operation failed")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
