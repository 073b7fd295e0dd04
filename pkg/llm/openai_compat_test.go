package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletions_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"themes\":[\"Love\"]}"}}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: ProviderLiteLLM, APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, ProviderLiteLLM, p.ProviderName())
	assert.Equal(t, DefaultLiteLLMModel, p.Model())

	out, err := p.Complete(context.Background(), ThematicAnalysisPrompt, "Hamlet")
	require.NoError(t, err)
	assert.Equal(t, `{"themes":["Love"]}`, out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Hamlet", got.Messages[1].Content)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.Zero(t, got.Temperature)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestChatCompletions_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "sys", "user")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "rate limited", apiErr.Message)
}

func TestChatCompletions_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502: upstream exploded")
}

func TestChatCompletions_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, errNoText)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{Provider: ProviderAnthropic})
	assert.Error(t, err, "anthropic needs an API key")

	_, err = NewProvider(Config{Provider: ProviderLiteLLM, APIKey: "k"})
	assert.Error(t, err, "litellm needs a base URL")

	_, err = NewProvider(Config{Provider: "palm", APIKey: "k"})
	assert.ErrorContains(t, err, "unknown LLM provider")

	p, err := NewProvider(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.ProviderName())
	assert.Equal(t, DefaultAnthropicModel, p.Model())

	p, err = NewProvider(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt-4.1-mini"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", p.Model())
	assert.Equal(t, DefaultOpenAIBaseURL+"/chat/completions", p.(*chatCompletions).endpoint)
}

func TestFormatAnalysisRequest(t *testing.T) {
	assert.Equal(t, "Please analyze the following theater script from the Elizabethan era:\n\nACT I",
		FormatAnalysisRequest("Elizabethan", "ACT I"))
	assert.Equal(t, "Please analyze the following theater script:\n\nACT I",
		FormatAnalysisRequest("", "ACT I"))
}
