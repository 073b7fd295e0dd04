package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/redhat-et/script-archive/pkg/telemetry"
)

// chatCompletions talks to any /chat/completions endpoint: OpenAI itself,
// a LiteLLM proxy, vLLM and the like.
type chatCompletions struct {
	http      *http.Client
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	provider  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatReply struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// APIError is a non-2xx answer from a chat completions endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat completions returned %d: %s", e.Status, e.Message)
}

func newChatCompletions(cfg Config) *chatCompletions {
	return &chatCompletions{
		http:      &http.Client{Transport: telemetry.WrapTransport(nil), Timeout: cfg.timeout()},
		endpoint:  cfg.BaseURL + "/chat/completions",
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		provider:  cfg.Provider,
	}
}

func (c *chatCompletions) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	// Error bodies are only read far enough to report them.
	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &APIError{Status: resp.StatusCode, Message: errorMessage(slurp)}
	}

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode chat reply: %w", err)
	}
	if len(reply.Choices) == 0 || reply.Choices[0].Message.Content == "" {
		return "", errNoText
	}
	return reply.Choices[0].Message.Content, nil
}

// errorMessage prefers the structured error message over the raw body.
func errorMessage(body []byte) string {
	var reply chatReply
	if json.Unmarshal(body, &reply) == nil && reply.Error != nil && reply.Error.Message != "" {
		return reply.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func (c *chatCompletions) Model() string        { return c.model }
func (c *chatCompletions) ProviderName() string { return c.provider }
