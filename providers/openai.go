package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

func init() {
	Register(BackendOpenAI, func(_ context.Context, s Settings) (Generator, error) {
		return NewOpenAI(s)
	})
}

// openAIQuotaCodes are the error codes that mean the account cannot be served
// right now because of billing or usage limits.
var openAIQuotaCodes = map[string]struct{}{
	"insufficient_quota":  {},
	"rate_limit_exceeded": {},
}

// OpenAIProvider implements Generator with the OpenAI chat completions API.
type OpenAIProvider struct {
	Base
	client openai.Client
}

// NewOpenAI creates an OpenAI backend. An empty APIKey is accepted; Generate
// then reports a *CredentialError without calling the API.
func NewOpenAI(s Settings) (*OpenAIProvider, error) {
	if s.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(s.MaxRetries),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	return &OpenAIProvider{
		Base:   newBase(BackendOpenAI, DefaultOpenAIModel, s),
		client: openai.NewClient(opts...),
	}, nil
}

// Generate sends the persona system message and the prompt as one chat
// completion request and returns the first choice's text.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", &CredentialError{
			Backend: BackendOpenAI,
			Detail:  "OPENAI_API_KEY is not set in the environment variables",
		}
	}

	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(p.maxTokens)),
		Temperature: openai.Float(p.temperature),
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := completion.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai request: %w", err)
	}
	code := openAIErrorCode(apiErr)
	if _, ok := openAIQuotaCodes[code]; ok {
		return fmt.Errorf("%w: openai %s: %s", ErrQuotaExceeded, code, apiErr.Message)
	}
	return fmt.Errorf("openai API error (status %d, code %q): %w", apiErr.StatusCode, code, err)
}

// openAIErrorCode reads the error code from the parsed error, falling back to
// the raw payload, which nests it under "error".
func openAIErrorCode(apiErr *openai.Error) string {
	if apiErr.Code != "" {
		return apiErr.Code
	}
	raw := apiErr.RawJSON()
	for _, path := range []string{"error.code", "code"} {
		if v := gjson.Get(raw, path); v.Type == gjson.String {
			return v.Str
		}
	}
	return ""
}
