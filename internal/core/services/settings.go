package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyLLMProvider   = "llm.provider"
	keyLLMModel      = "llm.model"
	keyLLMBaseURL    = "llm.base_url"
	keyLLMAPIKey     = "llm.api_key"

	keyProviderRPS = "provider.requests_per_second"

	keyChunkTargetSize = "chunker.target_size"
	keyChunkOverlap    = "chunker.overlap"
	keyChunkTolerance  = "chunker.boundary_tolerance"

	keyVectorWeight        = "retrieval.vector_weight"
	keyMinScore            = "retrieval.min_score"
	keyMaxResults          = "retrieval.max_results"
	keyCandidateMultiplier = "retrieval.candidate_multiplier"

	keyAdjacentChunks   = "context.adjacent_chunks"
	keyTokenBudget      = "context.token_budget"
	keyFetchConcurrency = "context.fetch_concurrency"
	keyTokenCounter     = "context.token_counter"

	keyExpansionEnabled   = "expansion.enabled"
	keyExpansionMaxLength = "expansion.max_length"
	keyExpansionMaxWords  = "expansion.max_words"
	keyExpansionMaxTerms  = "expansion.max_terms"
	keyExpansionPhrases   = "expansion.vague_phrases"

	keyMaxTurns = "conversation.max_turns"

	keyCacheCapacity = "cache.capacity"
	keyCacheTTL      = "cache.ttl"
	keyCacheShards   = "cache.shards"

	keyStorageBackend = "storage.backend"
	keyStorageDataDir = "storage.data_dir"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
// Missing keys and unrecognised enum values fall back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Provider: domain.ProviderSettings{
			RequestsPerSecond: s.getFloat(keyProviderRPS, d.Provider.RequestsPerSecond),
		},
		Chunker: domain.ChunkerSettings{
			TargetSize:        s.getInt(keyChunkTargetSize, d.Chunker.TargetSize),
			Overlap:           s.getInt(keyChunkOverlap, d.Chunker.Overlap),
			BoundaryTolerance: s.getFloat(keyChunkTolerance, d.Chunker.BoundaryTolerance),
		},
		Retrieval: domain.RetrievalSettings{
			VectorWeight:        s.getFloat(keyVectorWeight, d.Retrieval.VectorWeight),
			MinScoreForAnswer:   s.getFloat(keyMinScore, d.Retrieval.MinScoreForAnswer),
			MaxResults:          s.getInt(keyMaxResults, d.Retrieval.MaxResults),
			CandidateMultiplier: s.getInt(keyCandidateMultiplier, d.Retrieval.CandidateMultiplier),
		},
		Context: domain.ContextSettings{
			AdjacentChunks:   s.getInt(keyAdjacentChunks, d.Context.AdjacentChunks),
			TokenBudget:      s.getInt(keyTokenBudget, d.Context.TokenBudget),
			FetchConcurrency: s.getInt(keyFetchConcurrency, d.Context.FetchConcurrency),
			TokenCounter:     domain.TokenCounterKind(s.getString(keyTokenCounter, string(d.Context.TokenCounter))),
		},
		Expansion: domain.ExpansionSettings{
			Enabled:      s.getBool(keyExpansionEnabled, d.Expansion.Enabled),
			MaxLength:    s.getInt(keyExpansionMaxLength, d.Expansion.MaxLength),
			MaxWords:     s.getInt(keyExpansionMaxWords, d.Expansion.MaxWords),
			MaxTerms:     s.getInt(keyExpansionMaxTerms, d.Expansion.MaxTerms),
			VaguePhrases: s.getStringSlice(keyExpansionPhrases, d.Expansion.VaguePhrases),
		},
		Conversation: domain.ConversationSettings{
			MaxTurns: s.getInt(keyMaxTurns, d.Conversation.MaxTurns),
		},
		Cache: domain.CacheSettings{
			Capacity: s.getInt(keyCacheCapacity, d.Cache.Capacity),
			TTL:      s.getDuration(keyCacheTTL, d.Cache.TTL),
			Shards:   s.getInt(keyCacheShards, d.Cache.Shards),
		},
		Storage: domain.StorageSettings{
			Backend: domain.StorageBackend(s.getString(keyStorageBackend, string(d.Storage.Backend))),
			DataDir: s.configStore.GetString(keyStorageDataDir),
		},
	}

	return settings, nil
}

// Save validates and persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyProviderRPS, settings.Provider.RequestsPerSecond},
		{keyChunkTargetSize, settings.Chunker.TargetSize},
		{keyChunkOverlap, settings.Chunker.Overlap},
		{keyChunkTolerance, settings.Chunker.BoundaryTolerance},
		{keyVectorWeight, settings.Retrieval.VectorWeight},
		{keyMinScore, settings.Retrieval.MinScoreForAnswer},
		{keyMaxResults, settings.Retrieval.MaxResults},
		{keyCandidateMultiplier, settings.Retrieval.CandidateMultiplier},
		{keyAdjacentChunks, settings.Context.AdjacentChunks},
		{keyTokenBudget, settings.Context.TokenBudget},
		{keyFetchConcurrency, settings.Context.FetchConcurrency},
		{keyTokenCounter, string(settings.Context.TokenCounter)},
		{keyExpansionEnabled, settings.Expansion.Enabled},
		{keyExpansionMaxLength, settings.Expansion.MaxLength},
		{keyExpansionMaxWords, settings.Expansion.MaxWords},
		{keyExpansionMaxTerms, settings.Expansion.MaxTerms},
		{keyExpansionPhrases, settings.Expansion.VaguePhrases},
		{keyMaxTurns, settings.Conversation.MaxTurns},
		{keyCacheCapacity, settings.Cache.Capacity},
		{keyCacheTTL, settings.Cache.TTL.String()},
		{keyCacheShards, settings.Cache.Shards},
		{keyStorageBackend, string(settings.Storage.Backend)},
		{keyStorageDataDir, settings.Storage.DataDir},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when set.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyEmbedAPIKey, err)
		}
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyLLMAPIKey, err)
		}
	}

	return nil
}

// Set parses value for the named key, applies it, validates the result and saves.
func (s *SettingsService) Set(key, value string) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := applySetting(settings, key, strings.TrimSpace(value)); err != nil {
		return err
	}
	return s.Save(settings)
}

// SettingKeys returns every key accepted by Set, sorted.
func SettingKeys() []string {
	keys := []string{
		keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey,
		keyLLMProvider, keyLLMModel, keyLLMBaseURL, keyLLMAPIKey,
		keyProviderRPS,
		keyChunkTargetSize, keyChunkOverlap, keyChunkTolerance,
		keyVectorWeight, keyMinScore, keyMaxResults, keyCandidateMultiplier,
		keyAdjacentChunks, keyTokenBudget, keyFetchConcurrency, keyTokenCounter,
		keyExpansionEnabled, keyExpansionMaxLength, keyExpansionMaxWords, keyExpansionMaxTerms, keyExpansionPhrases,
		keyMaxTurns,
		keyCacheCapacity, keyCacheTTL, keyCacheShards,
		keyStorageBackend, keyStorageDataDir,
	}
	sort.Strings(keys)
	return keys
}

// Keys returns every key accepted by Set, sorted.
func (s *SettingsService) Keys() []string {
	return SettingKeys()
}

//nolint:gocyclo // flat key dispatch
func applySetting(st *domain.AppSettings, key, value string) error {
	var err error
	switch key {
	case keyEmbedProvider:
		st.Embedding.Provider, err = parseProvider(value)
	case keyEmbedModel:
		st.Embedding.Model = value
	case keyEmbedBaseURL:
		st.Embedding.BaseURL = value
	case keyEmbedAPIKey:
		st.Embedding.APIKey = value
	case keyLLMProvider:
		st.LLM.Provider, err = parseProvider(value)
	case keyLLMModel:
		st.LLM.Model = value
	case keyLLMBaseURL:
		st.LLM.BaseURL = value
	case keyLLMAPIKey:
		st.LLM.APIKey = value
	case keyProviderRPS:
		st.Provider.RequestsPerSecond, err = strconv.ParseFloat(value, 64)
	case keyChunkTargetSize:
		st.Chunker.TargetSize, err = strconv.Atoi(value)
	case keyChunkOverlap:
		st.Chunker.Overlap, err = strconv.Atoi(value)
	case keyChunkTolerance:
		st.Chunker.BoundaryTolerance, err = strconv.ParseFloat(value, 64)
	case keyVectorWeight:
		st.Retrieval.VectorWeight, err = strconv.ParseFloat(value, 64)
	case keyMinScore:
		st.Retrieval.MinScoreForAnswer, err = strconv.ParseFloat(value, 64)
	case keyMaxResults:
		st.Retrieval.MaxResults, err = strconv.Atoi(value)
	case keyCandidateMultiplier:
		st.Retrieval.CandidateMultiplier, err = strconv.Atoi(value)
	case keyAdjacentChunks:
		st.Context.AdjacentChunks, err = strconv.Atoi(value)
	case keyTokenBudget:
		st.Context.TokenBudget, err = strconv.Atoi(value)
	case keyFetchConcurrency:
		st.Context.FetchConcurrency, err = strconv.Atoi(value)
	case keyTokenCounter:
		st.Context.TokenCounter = domain.TokenCounterKind(value)
	case keyExpansionEnabled:
		st.Expansion.Enabled, err = strconv.ParseBool(value)
	case keyExpansionMaxLength:
		st.Expansion.MaxLength, err = strconv.Atoi(value)
	case keyExpansionMaxWords:
		st.Expansion.MaxWords, err = strconv.Atoi(value)
	case keyExpansionMaxTerms:
		st.Expansion.MaxTerms, err = strconv.Atoi(value)
	case keyExpansionPhrases:
		st.Expansion.VaguePhrases = splitList(value)
	case keyMaxTurns:
		st.Conversation.MaxTurns, err = strconv.Atoi(value)
	case keyCacheCapacity:
		st.Cache.Capacity, err = strconv.Atoi(value)
	case keyCacheTTL:
		st.Cache.TTL, err = time.ParseDuration(value)
	case keyCacheShards:
		st.Cache.Shards, err = strconv.Atoi(value)
	case keyStorageBackend:
		st.Storage.Backend = domain.StorageBackend(value)
	case keyStorageDataDir:
		st.Storage.DataDir = value
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfiguration, key, err)
	}
	return nil
}

func parseProvider(value string) (domain.AIProvider, error) {
	p := domain.AIProvider(strings.ToLower(value))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown provider %q", value)
	}
	return p, nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate provider supports embeddings
	valid := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks every setting.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// GetPipelineConfig returns the post-processor pipeline configuration.
// The chunker section follows the chunker settings; pipeline.processors may
// override the processor order.
func (s *SettingsService) GetPipelineConfig() domain.PipelineConfig {
	settings, err := s.Get()
	if err != nil {
		return domain.DefaultPipelineConfig()
	}
	cfg := domain.PipelineConfigFor(settings.Chunker)
	if processors := s.configStore.GetStringSlice("pipeline.processors"); len(processors) > 0 {
		cfg.Processors = processors
	}
	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetDuration(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetStringSlice(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
