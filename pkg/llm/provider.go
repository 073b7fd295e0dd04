package llm

import "context"

// Provider answers a single system/user exchange with the model's text.
// Analysis replies are expected to be a JSON object, so implementations
// ask for deterministic output where the backend allows it.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
	ProviderName() string
}

// NewProvider builds the client for cfg.Provider. An empty provider means
// Anthropic; "openai" and "litellm" share the chat completions client.
func NewProvider(cfg Config) (Provider, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	if cfg.Provider == ProviderAnthropic {
		return newAnthropic(cfg), nil
	}
	return newChatCompletions(cfg), nil
}
