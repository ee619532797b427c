// Command sercha-context imports local documents and assembles grounded
// answer context for questions about them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/sercha-context/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-context/internal/adapters/driven/cache/lru"
	"github.com/custodia-labs/sercha-context/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-context/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-context/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-context/internal/adapters/driven/tokenizer"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-context/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/core/services"
	"github.com/custodia-labs/sercha-context/internal/logger"
	"github.com/custodia-labs/sercha-context/internal/normalisers"
	"github.com/custodia-labs/sercha-context/internal/normalisers/html"
	"github.com/custodia-labs/sercha-context/internal/normalisers/markdown"
	"github.com/custodia-labs/sercha-context/internal/normalisers/plaintext"
	"github.com/custodia-labs/sercha-context/internal/postprocessors"
)

// version is set at build time.
var version = "dev"

// segmentBackend is a storage adapter serving both ingest and retrieval.
type segmentBackend interface {
	driven.SegmentStore
	driven.SearchBackend
	driven.MetadataLookup
}

// apiKeyEnv maps providers to the environment variable holding their API key.
var apiKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
	domain.AIProviderGemini:    "GEMINI_API_KEY",
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	if os.Getenv("SERCHA_CONTEXT_VERBOSE") != "" {
		logger.SetVerbose(true)
	}

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	settingsService := services.NewSettingsService(configStore,
		ai.NewConfigValidator(domain.DefaultAppSettings().Provider))

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	applyEnvKeys(settings)
	if err := settings.Validate(); err != nil {
		logger.Warn("Invalid settings, using defaults until fixed: %v", err)
		defaults := domain.DefaultAppSettings()
		defaults.Embedding, defaults.LLM = settings.Embedding, settings.LLM
		settings = &defaults
	}

	store, err := openStore(settings.Storage)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // best-effort cleanup

	aiServices := ai.Initialise(settings)
	defer aiServices.Close()

	cache, err := lru.New(settings.Cache)
	if err != nil {
		return fmt.Errorf("create embedding cache: %w", err)
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := postprocessors.BuildPipeline(registry, domain.PipelineConfigFor(settings.Chunker))
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ingestService := services.NewIngestService(pipeline, store, store, aiServices.EmbeddingService, cache)

	assembler := services.NewContextAssembler(store, tokenizer.New(settings.Context.TokenCounter), settings.Context)
	assembler.SetMetadataLookup(store)

	retrievalService := services.NewRetrievalService(
		services.NewRetriever(store, aiServices.EmbeddingService, cache, settings.Retrieval),
		services.NewQueryExpander(aiServices.LLMService, settings.Expansion),
		assembler,
		services.NewConversationManager(settings.Conversation),
		aiServices.LLMService,
		*settings,
	)
	if prompts, err := file.NewPromptStore(""); err != nil {
		logger.Warn("Custom prompts unavailable: %v", err)
	} else {
		retrievalService.SetPromptStore(prompts)
	}

	importService := services.NewImporter(
		filesystem.Builder,
		normalisers.NewRegistry(markdown.New(), html.New(), plaintext.New()),
		ingestService,
	)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Retrieval: retrievalService,
		Ingest:    ingestService,
		Import:    importService,
		Settings:  settingsService,
	})
	return cli.Execute()
}

// openStore opens the configured segment storage backend.
func openStore(cfg domain.StorageSettings) (segmentBackend, error) {
	switch cfg.Backend {
	case domain.StorageBackendMemory:
		logger.Warn("Using in-memory storage, imported documents are lost on exit")
		return memory.NewSegmentStore(), nil
	case domain.StorageBackendSQLite, "":
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open segment store: %w", err)
		}
		logger.Debug("Segment store at %s", store.Path())
		return store, nil
	default:
		return nil, errors.New("unknown storage backend: " + string(cfg.Backend))
	}
}

// applyEnvKeys fills missing API keys from the environment.
func applyEnvKeys(settings *domain.AppSettings) {
	if settings.Embedding.APIKey == "" {
		if env, ok := apiKeyEnv[settings.Embedding.Provider]; ok {
			settings.Embedding.APIKey = os.Getenv(env)
		}
	}
	if settings.LLM.APIKey == "" {
		if env, ok := apiKeyEnv[settings.LLM.Provider]; ok {
			settings.LLM.APIKey = os.Getenv(env)
		}
	}
}
