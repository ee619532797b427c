// Package openai generates expansions and answers with the OpenAI chat
// completions API or any API compatible with it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-context/internal/adapters/driven/provider"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Defaults applied by NewLLMService.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures LLMService. Only APIKey is required.
type LLMConfig struct {
	APIKey  string
	BaseURL string // override for Azure or compatible gateways
	Model   string
	Timeout time.Duration

	// RequestsPerSecond limits outbound calls. Zero disables limiting.
	RequestsPerSecond float64
}

// LLMService sends every call through /chat/completions.
type LLMService struct {
	api   *provider.Client
	model string
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewLLMService validates cfg and fills in defaults.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		api:   provider.NewClient("openai", cfg.BaseURL, cfg.Timeout, cfg.RequestsPerSecond, provider.BearerHeader(cfg.APIKey)),
		model: cfg.Model,
	}, nil
}

// Generate sends prompt as a single user turn.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := s.request(
		[]driven.ChatMessage{{Role: driven.ChatRoleUser, Content: prompt}},
		driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature},
	)
	req.Stop = opts.StopWords
	return s.complete(ctx, req)
}

// Chat sends the conversation as is; system turns are native to the API.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.complete(ctx, s.request(messages, opts))
}

func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions) completionRequest {
	req := completionRequest{
		Model:       s.model,
		Messages:    make([]completionMessage, len(messages)),
		MaxTokens:   max(opts.MaxTokens, 0),
		Temperature: max(opts.Temperature, 0),
	}
	for i, m := range messages {
		req.Messages[i] = completionMessage{Role: m.Role, Content: m.Content}
	}
	return req
}

func (s *LLMService) complete(ctx context.Context, req completionRequest) (string, error) {
	var resp completionResponse
	if err := s.api.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", provider.GenerationError(err)
	}
	if resp.Error != nil {
		return "", provider.GenerationError(fmt.Errorf("openai error: %s", resp.Error.Message))
	}
	if len(resp.Choices) == 0 {
		return "", provider.GenerationError(errors.New("openai: no response choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which checks the key without spending tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx, "/models")
}

// Close is a no-op.
func (s *LLMService) Close() error { return nil }
