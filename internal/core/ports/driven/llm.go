// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService expands vague queries and writes answers from assembled context.
// It is optional: without one, expansion is skipped and Answer returns
// domain.ErrLLMUnavailable. Adapters exist for OpenAI, Anthropic, Gemini and Ollama.
type LLMService interface {
	// Generate completes a single prompt, as used for query expansion.
	// Provider errors match domain.ErrGenerationFailed.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat continues a conversation whose first turn may be a system prompt.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName identifies the model in logs and settings output.
	ModelName() string

	// Ping makes a cheap request to confirm the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions tunes a Generate call. Zero values leave provider defaults.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords end generation early, e.g. a blank line after expansion terms.
	StopWords []string
}

// Chat message roles.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions tunes a Chat call. Zero values leave provider defaults.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
