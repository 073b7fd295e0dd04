package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/redhat-et/script-archive/pkg/telemetry"
)

var errNoText = errors.New("model returned no text")

type anthropicClient struct {
	api       anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

func newAnthropic(cfg Config) *anthropicClient {
	return &anthropicClient{
		api: anthropic.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithHTTPClient(&http.Client{Transport: telemetry.WrapTransport(nil)}),
		),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.timeout(),
	}
}

func (c *anthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	return joinText(msg.Content)
}

// joinText concatenates the text blocks of a reply, skipping tool use and
// thinking blocks.
func joinText(blocks []anthropic.ContentBlockUnion) (string, error) {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errNoText
	}
	return sb.String(), nil
}

func (c *anthropicClient) Model() string        { return c.model }
func (c *anthropicClient) ProviderName() string { return ProviderAnthropic }
