// Package anthropic generates expansions and answers with the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-context/internal/adapters/driven/provider"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Defaults applied by NewLLMService. The API rejects requests without
// max_tokens, so DefaultMaxTokens is always sent when the caller sets none.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
)

// Config configures LLMService. Only APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// RequestsPerSecond limits outbound calls. Zero disables limiting.
	RequestsPerSecond float64
}

// LLMService sends every call through /v1/messages.
type LLMService struct {
	api   *provider.Client
	model string
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	StopSeqs    []string     `json:"stop_sequences,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewLLMService validates cfg and fills in defaults.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	header := http.Header{}
	header.Set("x-api-key", cfg.APIKey)
	header.Set("anthropic-version", anthropicVersion)

	return &LLMService{
		api:   provider.NewClient("anthropic", cfg.BaseURL, cfg.Timeout, cfg.RequestsPerSecond, header),
		model: cfg.Model,
	}, nil
}

// Generate sends prompt as a single user turn.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := s.request("", []driven.ChatMessage{{Role: driven.ChatRoleUser, Content: prompt}}, opts.MaxTokens, opts.Temperature)
	req.StopSeqs = opts.StopWords
	return s.send(ctx, req)
}

// Chat lifts system turns into the system field, which is where the API
// expects them.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	var system []string
	turns := make([]driven.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == driven.ChatRoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return s.send(ctx, s.request(strings.Join(system, "\n\n"), turns, opts.MaxTokens, opts.Temperature))
}

func (s *LLMService) request(system string, turns []driven.ChatMessage, maxTokens int, temperature float64) messagesRequest {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return messagesRequest{
		Model:       s.model,
		Messages:    toAPIMessages(turns),
		MaxTokens:   maxTokens,
		System:      system,
		Temperature: max(temperature, 0),
	}
}

// toAPIMessages merges consecutive turns of the same role and drops turns
// before the first user turn. The API requires strict user/assistant alternation
// starting with the user.
func toAPIMessages(messages []driven.ChatMessage) []apiMessage {
	out := make([]apiMessage, 0, len(messages))
	for _, m := range messages {
		n := len(out)
		switch {
		case n == 0 && m.Role != driven.ChatRoleUser:
			// dropped
		case n > 0 && out[n-1].Role == m.Role:
			out[n-1].Content += "\n\n" + m.Content
		default:
			out = append(out, apiMessage{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

func (s *LLMService) send(ctx context.Context, req messagesRequest) (string, error) {
	var resp messagesResponse
	if err := s.api.PostJSON(ctx, "/v1/messages", req, &resp); err != nil {
		return "", provider.GenerationError(err)
	}
	if resp.Error != nil {
		return "", provider.GenerationError(fmt.Errorf("anthropic error: %s", resp.Error.Message))
	}
	if len(resp.Content) == 0 {
		return "", provider.GenerationError(errors.New("anthropic: no response content returned"))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which checks the key without spending tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx, "/v1/models")
}

// Close is a no-op.
func (s *LLMService) Close() error { return nil }
