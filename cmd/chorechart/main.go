package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	chorechart "github.com/Rorschach3/chore-chart"
	"github.com/Rorschach3/chore-chart/internal/logging"
	"github.com/Rorschach3/chore-chart/internal/metrics"
	"github.com/Rorschach3/chore-chart/internal/ratelimit"
	"github.com/Rorschach3/chore-chart/internal/requestlog"
	"github.com/Rorschach3/chore-chart/internal/tracing"
	"github.com/Rorschach3/chore-chart/internal/version"
	"github.com/Rorschach3/chore-chart/providers"
)

func main() {
	logCloser := logging.Setup(logging.OptionsFromEnv(os.Getenv))
	err := run()
	if err != nil {
		logging.Logger.Error("server exited", "error", err)
	}
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run() error {
	// Config file is optional; env vars overlay it either way.
	cfg, err := chorechart.Load(os.Getenv("CHORECHART_CONFIG"), os.Getenv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version.Short(),
		File:        cfg.Tracing.File,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logging.Logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	gen, err := providers.New(ctx, cfg.Upstream.Backend, cfg.Upstream.ProviderSettings())
	if err != nil {
		return fmt.Errorf("create %s backend: %w", cfg.Upstream.Backend, err)
	}
	if cfg.Upstream.Backend == providers.BackendOpenAI && cfg.Upstream.APIKey == "" {
		logging.Logger.Warn("OPENAI_API_KEY is not set; uncached prompts will return a configuration error")
	}

	a, err := chorechart.New(*cfg, gen)
	if err != nil {
		return fmt.Errorf("create assistant: %w", err)
	}
	if err := metrics.RegisterCacheSize(prometheus.DefaultRegisterer, a.Cache().Len); err != nil {
		return fmt.Errorf("register cache metrics: %w", err)
	}

	deps := routerDeps{
		Assistant: a,
		Server:    cfg.Server,
		Admin:     cfg.Admin,
	}

	if driver := cfg.RequestLog.Driver; driver != "" && driver != requestlog.DriverNone {
		store, err := requestlog.Open(driver, cfg.RequestLog.DSN)
		if err != nil {
			return fmt.Errorf("open request log: %w", err)
		}
		defer func() { _ = store.Close() }()
		a.AddHook(chorechart.RequestLogHook(store))
		deps.Logs = store
		deps.LogAdmin = store
		logging.Logger.Info("request log enabled", "driver", driver)
	}

	if cfg.Cache.BackgroundSweep {
		go a.Sweeper().Run(ctx)
	}

	if rl := cfg.RateLimit; rl.Enabled {
		deps.Limiter = ratelimit.NewStore(rl.RequestsPerSecond, rl.Burst, nil)
		go pruneLimiter(ctx, deps.Limiter, rl.IdleTimeout.Std())
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Upstream.Timeout.Std() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logging.Logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Logger.Error("shutdown error", "error", err)
		}
	}()

	logging.Logger.Info("ChoreChart assistant listening",
		"version", version.Short(),
		"addr", addr,
		"backend", a.Backend(),
		"cache_ttl", cfg.Cache.TTL.String(),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	logging.Logger.Info("server stopped")
	return nil
}

// pruneLimiter drops idle client buckets every idle interval until ctx is
// cancelled.
func pruneLimiter(ctx context.Context, s *ratelimit.Store, idle time.Duration) {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	ticker := time.NewTicker(idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Prune(idle); n > 0 {
				logging.Logger.Debug("pruned idle rate limit buckets", "removed", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
