package driven

import "github.com/custodia-labs/sercha-context/internal/core/domain"

// AIConfigValidator checks provider settings before they are saved, so a typo
// in a model name or key is reported by `settings` instead of at query time.
type AIConfigValidator interface {
	// ValidateEmbedding pings the configured embedding provider.
	// A provider of "none" is always valid.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM pings the configured LLM provider.
	// A provider of "none" is always valid.
	ValidateLLM(config *domain.LLMSettings) error
}
