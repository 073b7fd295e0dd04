package llm

import (
	"fmt"
	"strings"
	"time"
)

// Config selects and tunes the model backing thematic analysis.
type Config struct {
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Timeout   int    `mapstructure:"timeout_seconds"`
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderLiteLLM   = "litellm"

	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultLiteLLMModel   = "qwen3-14b"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"

	DefaultMaxTokens = 1024
	DefaultTimeout   = 60
)

var defaultModels = map[string]string{
	ProviderAnthropic: DefaultAnthropicModel,
	ProviderOpenAI:    DefaultOpenAIModel,
	ProviderLiteLLM:   DefaultLiteLLMModel,
}

// resolve fills unset fields and rejects configurations that can never
// reach a model.
func (c Config) resolve() (Config, error) {
	if c.Provider == "" {
		c.Provider = ProviderAnthropic
	}
	model, known := defaultModels[c.Provider]
	if !known {
		return c, fmt.Errorf("unknown LLM provider: %s", c.Provider)
	}
	if c.APIKey == "" {
		return c, fmt.Errorf("%s: API key is required", c.Provider)
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	switch c.Provider {
	case ProviderLiteLLM:
		if c.BaseURL == "" {
			return c, fmt.Errorf("litellm: base_url is required")
		}
	case ProviderOpenAI:
		if c.BaseURL == "" {
			c.BaseURL = DefaultOpenAIBaseURL
		}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c, nil
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
