package chorechart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Cache.TTL.Std() != time.Hour || cfg.Cache.SweepInterval.Std() != 10*time.Minute {
		t.Errorf("cache defaults = %v/%v", cfg.Cache.TTL, cfg.Cache.SweepInterval)
	}
	if cfg.Upstream.Backend != "openai" || cfg.Upstream.MaxTokens != 1000 || *cfg.Upstream.Temperature != 0.7 {
		t.Errorf("upstream defaults = %+v", cfg.Upstream)
	}
	if cfg.Upstream.Timeout.Std() != 20*time.Second {
		t.Errorf("timeout = %v", cfg.Upstream.Timeout)
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate limiting should be disabled by default")
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	data := `
server:
  port: "9090"
  cors_origins: ["https://chorechart.app"]
upstream:
  backend: bedrock
  region: eu-west-1
  temperature: 0
  timeout: 5s
cache:
  ttl: 30m
  sweep_interval: 120
`
	cfg, err := LoadConfig(writeTempFile(t, "config.yaml", data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9090" || len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://chorechart.app" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Upstream.Backend != "bedrock" || cfg.Upstream.Region != "eu-west-1" {
		t.Errorf("upstream = %+v", cfg.Upstream)
	}
	if *cfg.Upstream.Temperature != 0 {
		t.Errorf("temperature = %v, want explicit 0", *cfg.Upstream.Temperature)
	}
	if cfg.Upstream.Timeout.Std() != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Upstream.Timeout)
	}
	if cfg.Cache.TTL.Std() != 30*time.Minute || cfg.Cache.SweepInterval.Std() != 2*time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Upstream.MaxTokens != 1000 {
		t.Errorf("omitted max_tokens should keep default, got %d", cfg.Upstream.MaxTokens)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	data := `{
		"upstream": {"backend": "openai", "model": "gpt-4o", "max_tokens": 500},
		"cache": {"ttl": "2h"},
		"request_log": {"driver": "sqlite", "dsn": "requests.db"}
	}`
	cfg, err := LoadConfig(writeTempFile(t, "config.json", data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upstream.Model != "gpt-4o" || cfg.Upstream.MaxTokens != 500 {
		t.Errorf("upstream = %+v", cfg.Upstream)
	}
	if cfg.Cache.TTL.Std() != 2*time.Hour {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	if cfg.RequestLog.Driver != "sqlite" {
		t.Errorf("request_log = %+v", cfg.RequestLog)
	}
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	if _, err := LoadConfig(writeTempFile(t, "bad.json", `{invalid`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadConfig_BadDuration(t *testing.T) {
	if _, err := LoadConfig(writeTempFile(t, "bad.yaml", "cache:\n  ttl: soon\n")); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	if _, err := LoadConfig(writeTempFile(t, "config.toml", "")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"OPENAI_API_KEY":            "sk-env",
		"PORT":                      "7000",
		"CORS_ORIGINS":              "https://a.example, https://b.example,",
		"CHORECHART_ADMIN_TOKEN":    "admin",
		"REQUEST_LOG_DRIVER":        "sqlite",
		"REQUEST_LOG_DSN":           "/tmp/r.db",
		"AWS_REGION":                "us-west-2",
		"CHORECHART_CACHE_TTL":      "15m",
		"CHORECHART_RATE_LIMIT_RPS": "2.5",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.Upstream.APIKey != "sk-env" || cfg.Server.Port != "7000" || cfg.Admin.Token != "admin" {
		t.Errorf("cfg = %+v", cfg)
	}
	if strings.Join(cfg.Server.CORSOrigins, "|") != "https://a.example|https://b.example" {
		t.Errorf("origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.RequestLog.Driver != "sqlite" || cfg.RequestLog.DSN != "/tmp/r.db" || cfg.Upstream.Region != "us-west-2" {
		t.Errorf("request_log/region = %+v %q", cfg.RequestLog, cfg.Upstream.Region)
	}
	if cfg.Cache.TTL.Std() != 15*time.Minute {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestApplyEnv_EmptyKeepsValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.APIKey = "sk-file"
	if err := ApplyEnv(&cfg, envMap(map[string]string{"OPENAI_API_KEY": "  "})); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.Upstream.APIKey != "sk-file" {
		t.Errorf("blank env should not clear the key, got %q", cfg.Upstream.APIKey)
	}
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	for key, val := range map[string]string{
		"CHORECHART_CACHE_TTL":      "forever",
		"CHORECHART_RATE_LIMIT_RPS": "fast",
	} {
		cfg := DefaultConfig()
		if err := ApplyEnv(&cfg, envMap(map[string]string{key: val})); err == nil {
			t.Errorf("%s=%q: expected error", key, val)
		}
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "server:\n  port: \"9090\"\n")
	cfg, err := Load(path, envMap(map[string]string{"PORT": "7070"}))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env should override file, got port %q", cfg.Server.Port)
	}

	if _, err := Load(path, envMap(map[string]string{"CHORECHART_BACKEND": "nope"})); err == nil {
		t.Error("expected validation error for unknown backend")
	}
}

func TestValidateConfig_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Upstream.Backend = "llama" }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"zero sweep interval", func(c *Config) { c.Cache.SweepInterval = 0 }},
		{"zero timeout", func(c *Config) { c.Upstream.Timeout = 0 }},
		{"zero max tokens", func(c *Config) { c.Upstream.MaxTokens = 0 }},
		{"temperature too high", func(c *Config) { v := 2.5; c.Upstream.Temperature = &v }},
		{"negative retries", func(c *Config) { c.Upstream.MaxRetries = -1 }},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerSecond = -1 }},
		{"enabled without rate", func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.RequestsPerSecond = 0 }},
		{"unknown log driver", func(c *Config) { c.RequestLog.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.RequestLog.Driver = "postgres" }},
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateConfig_MissingKeyIsAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.APIKey = ""
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("missing key must not fail validation: %v", err)
	}
}

func TestProviderSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.APIKey = "sk-test"
	cfg.Upstream.Model = "gpt-4o"
	s := cfg.Upstream.ProviderSettings()
	if s.APIKey != "sk-test" || s.Model != "gpt-4o" || s.MaxTokens != 1000 || *s.Temperature != 0.7 {
		t.Errorf("settings = %+v", s)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
