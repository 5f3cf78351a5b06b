package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	chorechart "github.com/Rorschach3/chore-chart"
	"github.com/Rorschach3/chore-chart/internal/admin"
	"github.com/Rorschach3/chore-chart/internal/logging"
	"github.com/Rorschach3/chore-chart/internal/metrics"
	"github.com/Rorschach3/chore-chart/internal/ratelimit"
	"github.com/Rorschach3/chore-chart/internal/requestlog"
	"github.com/Rorschach3/chore-chart/internal/version"
)

// routerDeps collects what newRouter wires together. Limiter, Logs and
// LogAdmin may be nil.
type routerDeps struct {
	Assistant    *chorechart.Assistant
	Server       chorechart.ServerConfig
	Admin        chorechart.AdminConfig
	Limiter      *ratelimit.Store
	Logs         requestlog.Reader
	LogAdmin     requestlog.Maintainer
	MetricsRoute http.Handler
}

// newRouter builds the HTTP router.
func newRouter(d routerDeps) http.Handler {
	a := d.Assistant

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(corsMiddleware(d.Server.CORSOrigins...))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "ok",
			"backend":       a.Backend(),
			"cache_entries": a.Cache().Len(),
			"version":       version.Short(),
		})
	})

	metricsHandler := d.MetricsRoute
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	tokens := admin.NewTokens(d.Admin.Token, d.Admin.ReadOnlyToken)
	if !tokens.Empty() {
		adminHandlers := &admin.Handlers{
			Cache:        a.Cache(),
			Sweeper:      a.Sweeper(),
			Backend:      a.Backend(),
			BreakerState: func() string { return a.Breaker().State().String() },
			Logs:         d.Logs,
			LogAdmin:     d.LogAdmin,
			OnClear: func(removed int) {
				metrics.CacheEvictions.WithLabelValues("admin_clear").Add(float64(removed))
			},
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.AuthMiddleware(tokens))
			r.Mount("/", adminHandlers.Routes())
		})
	}

	generate := generateHandler(a, d.Server.MaxBodyBytes)
	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(ratelimit.Middleware(d.Limiter, func(w http.ResponseWriter, r *http.Request) {
				metrics.RateLimitRejections.Inc()
				writeResult(w, a.Reject(r.Context(), chorechart.ReasonRateLimited))
			}))
		}
		r.Post("/generate-with-ai", generate)
		r.Post("/functions/v1/generate-with-ai", generate)
	})

	return r
}

// generateHandler reads the prompt body and answers it. A body over
// maxBytes is treated as invalid input.
func generateHandler(a *chorechart.Assistant, maxBytes int64) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = chorechart.DefaultMaxBodyBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logging.FromContext(r.Context()).Warn("request body too large", "limit", maxBytes)
			}
			writeResult(w, a.Reject(r.Context(), chorechart.ReasonInvalidInput))
			return
		}
		writeResult(w, a.Ask(r.Context(), body))
	}
}

func writeResult(w http.ResponseWriter, res chorechart.Result) {
	writeJSON(w, res.StatusCode(), res.Envelope())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
