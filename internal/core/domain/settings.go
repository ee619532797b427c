package domain

import (
	"fmt"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Gemini).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic/Gemini).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ProviderSettings holds limits shared by every remote AI adapter.
type ProviderSettings struct {
	// RequestsPerSecond caps outbound calls per adapter. Zero disables limiting.
	RequestsPerSecond float64
}

// Chunker defaults.
const (
	DefaultChunkTargetSize        = 1000
	DefaultChunkOverlap           = 200
	DefaultChunkBoundaryTolerance = 0.2
)

// ChunkerSettings controls how documents are split into segments.
// Sizes are measured in runes.
type ChunkerSettings struct {
	// TargetSize is the desired segment length.
	TargetSize int

	// Overlap is the number of trailing runes repeated at the start of the next segment.
	Overlap int

	// BoundaryTolerance is the fraction of TargetSize searched backwards for a boundary.
	BoundaryTolerance float64
}

// Validate checks the chunk parameters.
func (c ChunkerSettings) Validate() error {
	if c.TargetSize <= 0 {
		return fmt.Errorf("%w: chunker.target_size must be positive, got %d", ErrInvalidConfiguration, c.TargetSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetSize {
		return fmt.Errorf("%w: chunker.overlap must be in [0,%d), got %d",
			ErrInvalidConfiguration, c.TargetSize, c.Overlap)
	}
	if c.BoundaryTolerance < 0 || c.BoundaryTolerance >= 1 {
		return fmt.Errorf("%w: chunker.boundary_tolerance must be in [0,1), got %g",
			ErrInvalidConfiguration, c.BoundaryTolerance)
	}
	return nil
}

// Retrieval defaults.
const (
	DefaultVectorWeight        = 0.7
	DefaultMinScoreForAnswer   = 0.35
	DefaultMaxResults          = 8
	DefaultCandidateMultiplier = 4
)

// RetrievalSettings controls hybrid scoring and diversification.
type RetrievalSettings struct {
	// VectorWeight is the weight of the vector sub-score; lexical gets 1-VectorWeight.
	VectorWeight float64

	// MinScoreForAnswer is the combined score a hit needs to be relevant.
	MinScoreForAnswer float64

	// MaxResults is the number of hits returned after diversification.
	MaxResults int

	// CandidateMultiplier scales MaxResults into the per-sub-query candidate depth.
	CandidateMultiplier int
}

// Validate checks the retrieval parameters.
func (r RetrievalSettings) Validate() error {
	if r.VectorWeight < 0 || r.VectorWeight > 1 {
		return fmt.Errorf("%w: retrieval.vector_weight must be in [0,1], got %g", ErrInvalidConfiguration, r.VectorWeight)
	}
	if r.MinScoreForAnswer < 0 || r.MinScoreForAnswer > 1 {
		return fmt.Errorf("%w: retrieval.min_score must be in [0,1], got %g", ErrInvalidConfiguration, r.MinScoreForAnswer)
	}
	if r.MaxResults <= 0 {
		return fmt.Errorf("%w: retrieval.max_results must be positive, got %d", ErrInvalidConfiguration, r.MaxResults)
	}
	if r.CandidateMultiplier <= 0 {
		return fmt.Errorf("%w: retrieval.candidate_multiplier must be positive, got %d",
			ErrInvalidConfiguration, r.CandidateMultiplier)
	}
	return nil
}

// TokenCounterKind selects the token estimator used for budget enforcement.
type TokenCounterKind string

// Available token counters.
const (
	// TokenCounterChars estimates one token per four runes.
	TokenCounterChars TokenCounterKind = "chars"

	// TokenCounterTiktoken counts cl100k_base tokens exactly.
	TokenCounterTiktoken TokenCounterKind = "tiktoken"
)

// IsValid returns true if the counter kind is recognised.
func (k TokenCounterKind) IsValid() bool {
	return k == TokenCounterChars || k == TokenCounterTiktoken
}

// Context assembly defaults.
const (
	DefaultAdjacentChunks   = 2
	DefaultTokenBudget      = 3000
	DefaultFetchConcurrency = 4
)

// ContextSettings controls context window assembly.
type ContextSettings struct {
	// AdjacentChunks is the number of segments loaded on each side of a relevant hit.
	AdjacentChunks int

	// TokenBudget is the upper bound on estimated tokens in a window.
	TokenBudget int

	// FetchConcurrency bounds parallel per-document segment fetches.
	FetchConcurrency int

	// TokenCounter selects the estimator.
	TokenCounter TokenCounterKind
}

// Validate checks the context parameters.
func (c ContextSettings) Validate() error {
	if c.AdjacentChunks < 0 {
		return fmt.Errorf("%w: context.adjacent_chunks must not be negative, got %d",
			ErrInvalidConfiguration, c.AdjacentChunks)
	}
	if c.TokenBudget <= 0 {
		return fmt.Errorf("%w: context.token_budget must be positive, got %d", ErrInvalidConfiguration, c.TokenBudget)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("%w: context.fetch_concurrency must be positive, got %d",
			ErrInvalidConfiguration, c.FetchConcurrency)
	}
	if !c.TokenCounter.IsValid() {
		return fmt.Errorf("%w: context.token_counter %q", ErrInvalidConfiguration, c.TokenCounter)
	}
	return nil
}

// Query expansion defaults.
const (
	DefaultExpansionMaxLength = 20
	DefaultExpansionMaxWords  = 3
	DefaultExpansionMaxTerms  = 3
)

// DefaultVaguePhrases returns the built-in multi-language list of under-specified phrasings.
func DefaultVaguePhrases() []string {
	return []string{
		// English
		"tell me", "what about", "anything about", "something about", "more about",
		"info on", "info about", "explain", "details",
		// German
		"was ist", "erzähl mir", "infos", "was gibt es", "mehr über",
		// French
		"dis-moi", "parle-moi", "quoi de", "c'est quoi",
		// Spanish
		"dime", "qué es", "háblame",
	}
}

// ExpansionSettings controls the query expansion heuristic and rewrite.
type ExpansionSettings struct {
	// Enabled turns expansion on. A forced request still expands when disabled.
	Enabled bool

	// MaxLength: queries shorter than this many runes are expanded.
	MaxLength int

	// MaxWords: queries with at most this many words are expanded.
	MaxWords int

	// MaxTerms caps the number of generated terms appended.
	MaxTerms int

	// VaguePhrases are matched case-insensitively on word boundaries.
	VaguePhrases []string
}

// Validate checks the expansion parameters.
func (e ExpansionSettings) Validate() error {
	if e.MaxLength < 0 || e.MaxWords < 0 {
		return fmt.Errorf("%w: expansion thresholds must not be negative", ErrInvalidConfiguration)
	}
	if e.MaxTerms < 1 || e.MaxTerms > 3 {
		return fmt.Errorf("%w: expansion.max_terms must be in [1,3], got %d", ErrInvalidConfiguration, e.MaxTerms)
	}
	for _, p := range e.VaguePhrases {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: expansion.vague_phrases contains a blank phrase", ErrInvalidConfiguration)
		}
	}
	return nil
}

// DefaultMaxHistoryTurns is the default conversation window.
const DefaultMaxHistoryTurns = 12

// ConversationSettings controls history trimming.
type ConversationSettings struct {
	// MaxTurns is the number of most recent turns kept.
	MaxTurns int
}

// Validate checks the conversation parameters.
func (c ConversationSettings) Validate() error {
	if c.MaxTurns < 0 {
		return fmt.Errorf("%w: conversation.max_turns must not be negative, got %d", ErrInvalidConfiguration, c.MaxTurns)
	}
	return nil
}

// Embedding cache defaults.
const (
	DefaultCacheCapacity = 10000
	DefaultCacheShards   = 16
)

// CacheSettings controls the embedding cache.
type CacheSettings struct {
	// Capacity is the total number of cached vectors across shards.
	Capacity int

	// TTL evicts entries idle for longer than this. Zero disables age eviction.
	TTL time.Duration

	// Shards is the number of independently locked partitions.
	Shards int
}

// Validate checks the cache parameters.
func (c CacheSettings) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: cache.capacity must be positive, got %d", ErrInvalidConfiguration, c.Capacity)
	}
	if c.Shards <= 0 || c.Shards > c.Capacity {
		return fmt.Errorf("%w: cache.shards must be in [1,%d], got %d", ErrInvalidConfiguration, c.Capacity, c.Shards)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// StorageBackend identifies the search backend implementation.
type StorageBackend string

// Available storage backends.
const (
	StorageBackendSQLite StorageBackend = "sqlite"
	StorageBackendMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	return b == StorageBackendSQLite || b == StorageBackendMemory
}

// StorageSettings selects and locates the search backend.
type StorageSettings struct {
	Backend StorageBackend

	// DataDir overrides the default data directory. Empty means ~/.sercha-context/data.
	DataDir string
}

// Validate checks the storage parameters.
func (s StorageSettings) Validate() error {
	if !s.Backend.IsValid() {
		return fmt.Errorf("%w: storage.backend %q", ErrInvalidConfiguration, s.Backend)
	}
	return nil
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding    EmbeddingSettings
	LLM          LLMSettings
	Provider     ProviderSettings
	Chunker      ChunkerSettings
	Retrieval    RetrievalSettings
	Context      ContextSettings
	Expansion    ExpansionSettings
	Conversation ConversationSettings
	Cache        CacheSettings
	Storage      StorageSettings
}

// Validate checks every section and returns the first failure.
func (s AppSettings) Validate() error {
	validators := []interface{ Validate() error }{
		s.Chunker, s.Retrieval, s.Context, s.Expansion, s.Conversation, s.Cache, s.Storage,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if s.Provider.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: provider.requests_per_second must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// DefaultAppSettings returns settings with sensible defaults.
// AI features (Embedding, LLM) are left unconfigured by default.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{},
		LLM:       LLMSettings{},
		Provider:  ProviderSettings{RequestsPerSecond: 10},
		Chunker: ChunkerSettings{
			TargetSize:        DefaultChunkTargetSize,
			Overlap:           DefaultChunkOverlap,
			BoundaryTolerance: DefaultChunkBoundaryTolerance,
		},
		Retrieval: RetrievalSettings{
			VectorWeight:        DefaultVectorWeight,
			MinScoreForAnswer:   DefaultMinScoreForAnswer,
			MaxResults:          DefaultMaxResults,
			CandidateMultiplier: DefaultCandidateMultiplier,
		},
		Context: ContextSettings{
			AdjacentChunks:   DefaultAdjacentChunks,
			TokenBudget:      DefaultTokenBudget,
			FetchConcurrency: DefaultFetchConcurrency,
			TokenCounter:     TokenCounterChars,
		},
		Expansion: ExpansionSettings{
			Enabled:      true,
			MaxLength:    DefaultExpansionMaxLength,
			MaxWords:     DefaultExpansionMaxWords,
			MaxTerms:     DefaultExpansionMaxTerms,
			VaguePhrases: DefaultVaguePhrases(),
		},
		Conversation: ConversationSettings{MaxTurns: DefaultMaxHistoryTurns},
		Cache: CacheSettings{
			Capacity: DefaultCacheCapacity,
			Shards:   DefaultCacheShards,
		},
		Storage: StorageSettings{Backend: StorageBackendSQLite},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// New processors can be added without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration keyed by processor name.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor builds the ingestion pipeline from chunker settings.
func PipelineConfigFor(c ChunkerSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"normalise", "chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.TargetSize,
				"overlap":    c.Overlap,
				"tolerance":  c.BoundaryTolerance,
			},
		},
	}
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfigFor(DefaultAppSettings().Chunker)
}
