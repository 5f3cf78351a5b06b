// Package admin provides the operator API: cache inspection and control and
// request log listing and pruning. All routes require a bearer token; write
// routes require the admin scope.
package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Rorschach3/chore-chart/internal/cache"
	"github.com/Rorschach3/chore-chart/internal/requestlog"
)

// CacheAdmin is the cache surface the admin API needs.
type CacheAdmin interface {
	Stats() cache.Stats
	Clear()
}

// SweepForcer runs an out-of-band sweep pass.
type SweepForcer interface {
	Force() (int, bool)
}

// Handlers holds dependencies for admin HTTP handlers. Logs and LogAdmin are
// nil when request logging is disabled.
type Handlers struct {
	Cache        CacheAdmin
	Sweeper      SweepForcer
	Backend      string
	BreakerState func() string
	Logs         requestlog.Reader
	LogAdmin     requestlog.Maintainer

	// OnClear, when set, is called with the number of entries dropped by a
	// cache clear.
	OnClear func(removed int)
}

const maxLogsLimit = 200

// Routes returns a chi.Router with all admin endpoints mounted. Mount it
// behind AuthMiddleware.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(RequireScope(ScopeReadOnly, ScopeAdmin))
		r.Get("/dashboard", h.dashboard)
		r.Get("/cache", h.cacheStats)
		r.Get("/logs", h.listLogs)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireScope(ScopeAdmin))
		r.Delete("/cache", h.clearCache)
		r.Post("/cache/sweep", h.sweepCache)
		r.Delete("/logs", h.deleteLogs)
	})

	return r
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	breaker := "unknown"
	if h.BreakerState != nil {
		breaker = h.BreakerState()
	}

	requestLogs := map[string]interface{}{
		"enabled": false,
		"total":   0,
	}
	if h.Logs != nil {
		requestLogs["enabled"] = true
		result, err := h.Logs.List(r.Context(), requestlog.Query{Limit: 1})
		if err == nil {
			requestLogs["total"] = result.Total
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"backend":         h.Backend,
		"circuit_breaker": breaker,
		"cache":           h.Cache.Stats(),
		"request_logs":    requestLogs,
	})
}

func (h *Handlers) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

func (h *Handlers) clearCache(w http.ResponseWriter, _ *http.Request) {
	removed := h.Cache.Stats().Entries
	h.Cache.Clear()
	if h.OnClear != nil {
		h.OnClear(removed)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func (h *Handlers) sweepCache(w http.ResponseWriter, _ *http.Request) {
	if h.Sweeper == nil {
		writeError(w, http.StatusNotImplemented, "sweeper is not configured", "not_implemented_error", "not_implemented")
		return
	}
	removed, ran := h.Sweeper.Force()
	if !ran {
		writeError(w, http.StatusConflict, "a sweep is already in progress", "conflict_error", "sweep_in_progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func (h *Handlers) listLogs(w http.ResponseWriter, r *http.Request) {
	if h.Logs == nil {
		writeError(w, http.StatusNotImplemented, "request log storage is not enabled", "not_implemented_error", "not_implemented")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: must be a positive integer", "invalid_request_error", "invalid_request")
			return
		}
		limit = min(parsed, maxLogsLimit)
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset: must be a non-negative integer", "invalid_request_error", "invalid_request")
			return
		}
		offset = parsed
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since: must be RFC3339 format", "invalid_request_error", "invalid_request")
			return
		}
		since = &parsed
	}

	query := requestlog.Query{
		Limit:   limit,
		Offset:  offset,
		Outcome: r.URL.Query().Get("outcome"),
		Backend: r.URL.Query().Get("backend"),
		Since:   since,
	}
	result, err := h.Logs.List(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list request logs", "server_error", "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result.Data,
		"summary": map[string]interface{}{
			"total_entries":    result.Total,
			"returned_entries": len(result.Data),
		},
		"filters": map[string]interface{}{
			"limit":   limit,
			"offset":  offset,
			"outcome": query.Outcome,
			"backend": query.Backend,
			"since":   r.URL.Query().Get("since"),
		},
	})
}

func (h *Handlers) deleteLogs(w http.ResponseWriter, r *http.Request) {
	if h.LogAdmin == nil {
		writeError(w, http.StatusNotImplemented, "request log storage is not enabled", "not_implemented_error", "not_implemented")
		return
	}

	beforeRaw := r.URL.Query().Get("before")
	if beforeRaw == "" {
		writeError(w, http.StatusBadRequest, "before is required and must be RFC3339 format", "invalid_request_error", "invalid_request")
		return
	}
	before, err := time.Parse(time.RFC3339, beforeRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid before: must be RFC3339 format", "invalid_request_error", "invalid_request")
		return
	}

	deleted, err := h.LogAdmin.Delete(r.Context(), requestlog.MaintenanceQuery{
		Before:  &before,
		Outcome: r.URL.Query().Get("outcome"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete request logs", "server_error", "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
		"filters": map[string]interface{}{
			"before":  beforeRaw,
			"outcome": r.URL.Query().Get("outcome"),
		},
	})
}
