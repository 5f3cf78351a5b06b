// Package chorechart implements the ChoreChart assistant: an HTTP-facing
// proxy that answers household-management prompts through an upstream
// text-generation backend and caches answers per normalized prompt.
package chorechart

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Rorschach3/chore-chart/providers"
)

// Config holds the configuration for the assistant service.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Upstream   UpstreamConfig   `json:"upstream" yaml:"upstream"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	RateLimit  RateLimitConfig  `json:"rate_limit" yaml:"rate_limit"`
	RequestLog RequestLogConfig `json:"request_log" yaml:"request_log"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing"`
	Admin      AdminConfig      `json:"admin" yaml:"admin"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port string `json:"port" yaml:"port"`
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins"`
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// UpstreamConfig selects and parameterizes the text-generation backend.
type UpstreamConfig struct {
	Backend      string   `json:"backend" yaml:"backend"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MaxTokens    int      `json:"max_tokens" yaml:"max_tokens"`
	Temperature  *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Timeout      Duration `json:"timeout" yaml:"timeout"`
	MaxRetries   int      `json:"max_retries" yaml:"max_retries"`
	BaseURL      string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey is normally supplied through OPENAI_API_KEY.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`

	Breaker BreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	FailureThreshold int      `json:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int      `json:"success_threshold" yaml:"success_threshold"`
	Timeout          Duration `json:"timeout" yaml:"timeout"`
}

// CacheConfig controls answer caching and the eviction sweeper.
type CacheConfig struct {
	TTL           Duration `json:"ttl" yaml:"ttl"`
	SweepInterval Duration `json:"sweep_interval" yaml:"sweep_interval"`
	// BackgroundSweep additionally runs the sweeper on a ticker.
	BackgroundSweep bool `json:"background_sweep" yaml:"background_sweep"`
}

// RateLimitConfig controls the per-IP token bucket.
type RateLimitConfig struct {
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64  `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             float64  `json:"burst" yaml:"burst"`
	IdleTimeout       Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// RequestLogConfig selects the request log store.
type RequestLogConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	File        string `json:"file,omitempty" yaml:"file,omitempty"`
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
}

// AdminConfig enables the admin API when a token is set.
type AdminConfig struct {
	Token         string `json:"token,omitempty" yaml:"token,omitempty"`
	ReadOnlyToken string `json:"read_only_token,omitempty" yaml:"read_only_token,omitempty"`
}

// ProviderSettings converts the upstream section to backend settings.
func (u UpstreamConfig) ProviderSettings() providers.Settings {
	return providers.Settings{
		APIKey:          u.APIKey,
		BaseURL:         u.BaseURL,
		Model:           u.Model,
		SystemPrompt:    u.SystemPrompt,
		MaxTokens:       u.MaxTokens,
		Temperature:     u.Temperature,
		MaxRetries:      u.MaxRetries,
		Region:          u.Region,
		AccessKeyID:     u.AccessKeyID,
		SecretAccessKey: u.SecretAccessKey,
	}
}

// Duration is a time.Duration written as a Go duration string ("1h", "10m")
// in config files. Plain integers are read as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(s string) (Duration, error) {
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return Duration(v), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := parseDuration(s)
		if err != nil {
			return err
		}
		*d = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds: %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" || node.Tag == "!!float" {
		var secs float64
		if err := node.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
