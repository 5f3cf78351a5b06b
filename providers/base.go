package providers

// Base holds the request parameters shared by every backend. Embed it to get
// Name and Model and the resolved defaults.
type Base struct {
	name         string
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
}

func newBase(name, defaultModel string, s Settings) Base {
	b := Base{
		name:         name,
		apiKey:       s.APIKey,
		baseURL:      s.BaseURL,
		model:        s.Model,
		systemPrompt: s.SystemPrompt,
		maxTokens:    s.MaxTokens,
		temperature:  DefaultTemperature,
	}
	if b.model == "" {
		b.model = defaultModel
	}
	if b.systemPrompt == "" {
		b.systemPrompt = DefaultSystemPrompt
	}
	if b.maxTokens <= 0 {
		b.maxTokens = DefaultMaxTokens
	}
	if s.Temperature != nil {
		b.temperature = *s.Temperature
	}
	return b
}

// Name returns the backend name.
func (b *Base) Name() string { return b.name }

// Model returns the model identifier sent upstream.
func (b *Base) Model() string { return b.model }
