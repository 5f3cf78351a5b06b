package chorechart

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Rorschach3/chore-chart/internal/cache"
	"github.com/Rorschach3/chore-chart/internal/requestlog"
	"github.com/Rorschach3/chore-chart/providers"
)

// Defaults not owned by another package.
const (
	DefaultPort            = "8000"
	DefaultMaxBodyBytes    = 64 << 10
	DefaultUpstreamTimeout = 20 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	temp := providers.DefaultTemperature
	return Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			CORSOrigins:     []string{"*"},
			MaxBodyBytes:    DefaultMaxBodyBytes,
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Upstream: UpstreamConfig{
			Backend:     providers.BackendOpenAI,
			MaxTokens:   providers.DefaultMaxTokens,
			Temperature: &temp,
			Timeout:     Duration(DefaultUpstreamTimeout),
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				Timeout:          Duration(30 * time.Second),
			},
		},
		Cache: CacheConfig{
			TTL:           Duration(cache.DefaultTTL),
			SweepInterval: Duration(cache.DefaultSweepInterval),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             5,
			IdleTimeout:       Duration(10 * time.Minute),
		},
		RequestLog: RequestLogConfig{Driver: requestlog.DriverNone},
	}
}

// LoadConfig reads a config file over DefaultConfig, so omitted fields keep
// their defaults. Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Non-empty variables win
// over file values.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("PORT", &cfg.Server.Port)
	set("CHORECHART_BACKEND", &cfg.Upstream.Backend)
	set("OPENAI_API_KEY", &cfg.Upstream.APIKey)
	set("OPENAI_BASE_URL", &cfg.Upstream.BaseURL)
	set("AWS_REGION", &cfg.Upstream.Region)
	set("REQUEST_LOG_DRIVER", &cfg.RequestLog.Driver)
	set("REQUEST_LOG_DSN", &cfg.RequestLog.DSN)
	set("CHORECHART_ADMIN_TOKEN", &cfg.Admin.Token)
	set("CHORECHART_READONLY_TOKEN", &cfg.Admin.ReadOnlyToken)

	if v := strings.TrimSpace(getenv("CORS_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORSOrigins = origins
	}
	if v := strings.TrimSpace(getenv("CHORECHART_CACHE_TTL")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("CHORECHART_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if v := strings.TrimSpace(getenv("CHORECHART_RATE_LIMIT_RPS")); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CHORECHART_RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.Enabled = rps > 0
		cfg.RateLimit.RequestsPerSecond = rps
	}
	return nil
}

// Load builds the effective configuration: defaults, then the file at path
// when path is non-empty, then the environment.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if err := ApplyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ValidateConfig validates a Config for correctness. A missing upstream
// credential is not an error here; it is reported per request.
func ValidateConfig(cfg Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	up := cfg.Upstream
	if !providers.Known(up.Backend) {
		return fmt.Errorf("unknown upstream backend %q (available: %s)", up.Backend, strings.Join(providers.Backends(), ", "))
	}
	if up.MaxTokens <= 0 {
		return fmt.Errorf("upstream.max_tokens must be positive")
	}
	if up.Temperature != nil && (*up.Temperature < 0 || *up.Temperature > 2) {
		return fmt.Errorf("upstream.temperature must be between 0 and 2, got %v", *up.Temperature)
	}
	if up.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if up.MaxRetries < 0 {
		return fmt.Errorf("upstream.max_retries must not be negative")
	}
	if up.Breaker.FailureThreshold < 0 || up.Breaker.SuccessThreshold < 0 || up.Breaker.Timeout < 0 {
		return fmt.Errorf("upstream.circuit_breaker values must not be negative")
	}

	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if cfg.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive")
	}

	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerSecond == 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive when enabled")
	}

	switch strings.ToLower(cfg.RequestLog.Driver) {
	case "", requestlog.DriverNone, requestlog.DriverSQLite:
	case requestlog.DriverPostgres:
		if cfg.RequestLog.DSN == "" {
			return fmt.Errorf("request_log.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown request_log.driver %q", cfg.RequestLog.Driver)
	}
	return nil
}
