// Package analysis holds the thematic analysis capability invoked when a
// script moves from pending to analyzed.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redhat-et/script-archive/pkg/encryption"
	"github.com/redhat-et/script-archive/pkg/llm"
	"github.com/redhat-et/script-archive/pkg/logger"
)

// Providers
const (
	ProviderStatic = "static"
	ProviderLLM    = "llm"
)

// ErrNoThemes is returned when an analysis produced no themes.
var ErrNoThemes = errors.New("analysis produced no themes")

// Result is the outcome of analyzing one script.
type Result struct {
	Themes           []string `json:"themes"`
	CharacterNetwork string   `json:"character_network"`
}

// Analyzer analyzes a ciphertext token. Implementations that need the
// plaintext carry their own Opener.
type Analyzer interface {
	Analyze(ctx context.Context, ciphertext string) (Result, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, ciphertext string) (Result, error)

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(ctx context.Context, ciphertext string) (Result, error) {
	return f(ctx, ciphertext)
}

// Static returns a fixed result after an optional delay. It stands in for a
// confidential-compute backend that never sees the plaintext.
type Static struct {
	Delay  time.Duration
	Result Result
}

// DefaultStaticResult is what Static returns when Result is zero.
var DefaultStaticResult = Result{
	Themes:           []string{"Love", "Betrayal", "Power"},
	CharacterNetwork: "Main: 5 connections | Supporting: 12 connections",
}

// Analyze implements Analyzer.
func (s Static) Analyze(ctx context.Context, ciphertext string) (Result, error) {
	if ciphertext == "" {
		return Result{}, fmt.Errorf("empty ciphertext")
	}
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	res := s.Result
	if len(res.Themes) == 0 {
		res = DefaultStaticResult
	}
	return Result{
		Themes:           append([]string(nil), res.Themes...),
		CharacterNetwork: res.CharacterNetwork,
	}, nil
}

// LLM opens the token and asks a language model for the analysis.
type LLM struct {
	provider llm.Provider
	opener   encryption.Opener
	log      *logger.Logger
}

// NewLLM creates an LLM analyzer.
func NewLLM(provider llm.Provider, opener encryption.Opener, log *logger.Logger) *LLM {
	return &LLM{provider: provider, opener: opener, log: log}
}

// Analyze implements Analyzer.
func (a *LLM) Analyze(ctx context.Context, ciphertext string) (Result, error) {
	plaintext, err := a.opener.Open(ciphertext)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open script content: %w", err)
	}

	a.log.Debug("Requesting thematic analysis",
		"provider", a.provider.ProviderName(),
		"model", a.provider.Model(),
		"bytes", len(plaintext))

	resp, err := a.provider.Complete(ctx, llm.ThematicAnalysisPrompt, llm.FormatAnalysisRequest("", plaintext))
	if err != nil {
		return Result{}, fmt.Errorf("LLM request failed: %w", err)
	}
	return ParseResponse(resp)
}

// ParseResponse extracts a Result from a model reply. Models sometimes wrap
// the object in prose or a code fence, so the outermost braces are used.
func ParseResponse(resp string) (Result, error) {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end < start {
		return Result{}, fmt.Errorf("no JSON object in analysis response")
	}

	var res Result
	if err := json.Unmarshal([]byte(resp[start:end+1]), &res); err != nil {
		return Result{}, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	themes := res.Themes[:0]
	for _, th := range res.Themes {
		if th = strings.TrimSpace(th); th != "" {
			themes = append(themes, th)
		}
	}
	res.Themes = themes
	res.CharacterNetwork = strings.TrimSpace(res.CharacterNetwork)
	if len(res.Themes) == 0 {
		return Result{}, ErrNoThemes
	}
	return res, nil
}

// New builds the analyzer named by provider.
func New(provider string, delay time.Duration, llmCfg llm.Config, opener encryption.Opener, log *logger.Logger) (Analyzer, error) {
	switch provider {
	case ProviderStatic, "":
		return Static{Delay: delay}, nil
	case ProviderLLM:
		p, err := llm.NewProvider(llmCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		return NewLLM(p, opener, log), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider: %s", provider)
	}
}
