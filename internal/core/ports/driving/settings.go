package driving

import "github.com/custodia-labs/sercha-context/internal/core/domain"

// SettingsService reads and persists AppSettings.
// Every write validates the complete settings before anything is saved.
type SettingsService interface {
	Get() (*domain.AppSettings, error)
	Save(settings *domain.AppSettings) error

	// Set parses value for the typed field behind key, e.g. "context.token_budget".
	Set(key, value string) error

	// Keys lists the keys Set accepts, sorted.
	Keys() []string

	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate reports the first invalid section without contacting providers.
	Validate() error

	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig and ValidateLLMConfig ping the configured provider.
	// An unconfigured provider is valid.
	ValidateEmbeddingConfig() error
	ValidateLLMConfig() error
}
