package worker

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/obsearch/internal/search"
	"github.com/thebtf/obsearch/pkg/models"
)

// PageResponse is the body of every successful search.
type PageResponse[T any] struct {
	Data    []T `json:"data"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes data as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes {"error": msg} with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeSearchError maps a search failure to a response. Client input errors
// become 400 with their own message; anything else is logged and becomes 500.
func (s *Service) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	if search.IsClientError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().
		Err(err).
		Str("path", r.URL.Path).
		Str("request_id", GetRequestID(r.Context())).
		Msg("Search failed")
	writeError(w, http.StatusInternalServerError, "Failed to query observations")
}

// handleSession handles GET /api/session.
func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := search.ParsePage(q.Get("page"))

	result, err := s.search.SearchSessions(r.Context(), q.Get("session_id"), page)
	if err != nil {
		if errors.Is(err, search.ErrSessionIDRequired) {
			writeError(w, http.StatusBadRequest, search.ErrSessionIDRequired.Error())
			return
		}
		s.writeSearchError(w, r, err)
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = []models.SessionRow{}
	}
	writeJSON(w, http.StatusOK, PageResponse[models.SessionRow]{
		Data:    rows,
		Total:   result.Total,
		Page:    page,
		PerPage: s.search.PageSize(),
	})
}

// handleObservation handles GET /api/observation.
func (s *Service) handleObservation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := search.ParsePage(q.Get("page"))
	filter := search.ObservationFilter{
		Pattern:  q.Get("pattern"),
		Config:   q.Get("config"),
		Imaging:  q.Get("imaging"),
		CmdStart: q.Get("cmd_start"),
		CmdEnd:   q.Get("cmd_end"),
	}

	result, err := s.search.SearchObservations(r.Context(), filter, page)
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = []models.Observation{}
	}
	writeJSON(w, http.StatusOK, PageResponse[models.Observation]{
		Data:    rows,
		Total:   result.Total,
		Page:    page,
		PerPage: s.search.PageSize(),
	})
}

// handleHealth returns 200 even while the snapshot is loading.
// Use /api/ready for readiness.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.search.Ready() {
		status = "ready"
	} else if err := s.GetInitError(); err != nil {
		status = "error"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
	})
}

// handleReady returns 200 once the dataset snapshot is loaded, 503 otherwise.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.search.Ready() {
		msg := "dataset loading"
		if err := s.GetInitError(); err != nil {
			msg = "dataset load failed: " + err.Error()
		}
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMetrics is the liveness probe kept for existing monitors.
func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// poolStatser is implemented by providers that expose connection pool stats.
type poolStatser interface {
	Stats() sql.DBStats
}

// handleStats returns search, rate limiter and storage statistics.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"search":         s.search.Metrics().GetStats(),
		"per_page":       s.search.PageSize(),
	}

	if s.limiter != nil {
		stats["rate_limit"] = s.limiter.Stats()
	}

	if ds, ok := s.search.Loaded(); ok {
		stats["dataset"] = map[string]any{
			"observations": len(ds.Observations),
			"session_rows": len(ds.SessionRows),
			"loaded_at":    ds.LoadedAt.UTC().Format(time.RFC3339),
		}
	}

	if ps, ok := s.provider.(poolStatser); ok {
		dbStats := ps.Stats()
		stats["db_pool"] = map[string]any{
			"open_connections": dbStats.OpenConnections,
			"in_use":           dbStats.InUse,
			"idle":             dbStats.Idle,
			"wait_count":       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, stats)
}
