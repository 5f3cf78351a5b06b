// Package providers defines the Generator interface and the upstream
// text-generation backends the assistant can call on a cache miss.
//
// Backends register a Factory by name (see Register); the assistant builds
// one with New. Failures are classified so callers can tell a missing
// credential (*CredentialError) and an exhausted quota (ErrQuotaExceeded)
// apart from every other upstream failure.
package providers

import (
	"context"
	"errors"
)

// Backend names.
const (
	BackendOpenAI  = "openai"
	BackendBedrock = "bedrock"
)

// Defaults applied when Settings leave a field empty.
const (
	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultRegion       = "us-east-1"
	DefaultMaxTokens    = 1000
	DefaultTemperature  = 0.7

	DefaultSystemPrompt = "You are ChoreChart Assistant, a helpful AI that specializes in household management, " +
		"chore organization, and roommate dynamics. You provide practical advice about cleaning, maintenance, " +
		"chore scheduling, and maintaining positive relationships among housemates. Your responses should be " +
		"friendly, practical, and focused on creating harmonious living spaces."
)

// Generator produces an answer for a single prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Settings configures a backend. Fields that do not apply to a backend are
// ignored by it.
type Settings struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  *float64
	MaxRetries   int

	// AWS Bedrock only.
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// ErrQuotaExceeded is wrapped by errors that mean the upstream account is out
// of quota or rate-limited.
var ErrQuotaExceeded = errors.New("upstream quota exceeded")

// ErrEmptyCompletion is returned when the upstream answered without any text.
var ErrEmptyCompletion = errors.New("upstream returned no completion text")

// CredentialError reports a backend that cannot run because its credential
// is not configured.
type CredentialError struct {
	Backend string
	Detail  string
	Err     error
}

func (e *CredentialError) Error() string { return e.Detail }

func (e *CredentialError) Unwrap() error { return e.Err }
