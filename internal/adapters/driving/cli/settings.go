package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, chunking, retrieval and context options.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a single setting",
	Long: `Change a single setting by its key, for example:

  sercha-context settings set context.token_budget 4000
  sercha-context settings set expansion.enabled false

Run 'sercha-context settings keys' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the embedding and LLM providers.`,
	RunE:  runSettingsWizard,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used for semantic retrieval.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used for query expansion and answers.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

// settingsSection is one bracketed block of `settings show`.
type settingsSection struct {
	title string
	rows  [][2]string
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	sections := []settingsSection{
		providerSection("Embedding", settings.Embedding.Provider, settings.Embedding.Model,
			settings.Embedding.BaseURL, settings.Embedding.APIKey, settings.Embedding.IsConfigured()),
		providerSection("LLM", settings.LLM.Provider, settings.LLM.Model,
			settings.LLM.BaseURL, settings.LLM.APIKey, settings.LLM.IsConfigured()),
		{"Chunker", [][2]string{
			{"Target size", strconv.Itoa(settings.Chunker.TargetSize)},
			{"Overlap", strconv.Itoa(settings.Chunker.Overlap)},
			{"Boundary tolerance", fmt.Sprintf("%.2f", settings.Chunker.BoundaryTolerance)},
		}},
		{"Retrieval", [][2]string{
			{"Vector weight", fmt.Sprintf("%.2f", settings.Retrieval.VectorWeight)},
			{"Min score for answer", fmt.Sprintf("%.2f", settings.Retrieval.MinScoreForAnswer)},
			{"Max results", strconv.Itoa(settings.Retrieval.MaxResults)},
			{"Candidate multiplier", strconv.Itoa(settings.Retrieval.CandidateMultiplier)},
		}},
		{"Context", [][2]string{
			{"Adjacent chunks", strconv.Itoa(settings.Context.AdjacentChunks)},
			{"Token budget", strconv.Itoa(settings.Context.TokenBudget)},
			{"Fetch concurrency", strconv.Itoa(settings.Context.FetchConcurrency)},
			{"Token counter", string(settings.Context.TokenCounter)},
		}},
		{"Expansion", [][2]string{
			{"Enabled", yesNo(settings.Expansion.Enabled)},
			{"Max length", strconv.Itoa(settings.Expansion.MaxLength)},
			{"Max words", strconv.Itoa(settings.Expansion.MaxWords)},
			{"Max terms", strconv.Itoa(settings.Expansion.MaxTerms)},
		}},
		{"Conversation", [][2]string{
			{"Max turns", strconv.Itoa(settings.Conversation.MaxTurns)},
		}},
		{"Cache", [][2]string{
			{"Capacity", strconv.Itoa(settings.Cache.Capacity)},
			{"TTL", durationOrNone(settings.Cache.TTL)},
			{"Shards", strconv.Itoa(settings.Cache.Shards)},
		}},
		storageSection(settings.Storage),
	}

	for _, section := range sections {
		cmd.Printf("[%s]\n", section.title)
		for _, row := range section.rows {
			cmd.Printf("  %s: %s\n", row[0], row[1])
		}
		cmd.Println()
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'sercha-context settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func providerSection(title string, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) settingsSection {
	if provider == "" {
		return settingsSection{title, [][2]string{{"Provider", "(none)"}}}
	}

	rows := [][2]string{
		{"Provider", provider.Description()},
		{"Model", model},
	}
	if provider.IsLocal() {
		rows = append(rows, [2]string{"Base URL", baseURL})
	}
	if provider.RequiresAPIKey() {
		key := "(not set)"
		if apiKey != "" {
			key = maskAPIKey(apiKey)
		}
		rows = append(rows, [2]string{"API Key", key})
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	return settingsSection{title, append(rows, [2]string{"Status", status})}
}

func storageSection(storage domain.StorageSettings) settingsSection {
	rows := [][2]string{{"Backend", string(storage.Backend)}}
	if storage.DataDir != "" {
		rows = append(rows, [2]string{"Data dir", storage.DataDir})
	}
	return settingsSection{"Storage", rows}
}

func durationOrNone(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	if strings.HasSuffix(key, "api_key") {
		value = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("Sercha Context Settings Wizard")
	cmd.Println("==============================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())
	steps := []struct {
		heading string
		intro   string
		kind    providerKind
	}{
		{"Step 1: Embedding Provider", "Embeddings enable semantic retrieval. Without one, keyword matching is used.", embeddingKind()},
		{"Step 2: LLM Provider", "An LLM expands vague queries and writes answers.", llmKind()},
	}

	for _, step := range steps {
		cmd.Println(step.heading)
		cmd.Println(strings.Repeat("-", len(step.heading)))
		cmd.Println(step.intro)
		cmd.Printf("Configure %s? [Y/n]: ", step.kind.article)
		if !confirm(readLine(reader), true) {
			cmd.Println("Skipped.")
			cmd.Println()
			continue
		}
		if err := configureProvider(cmd, reader, step.kind); err != nil {
			return err
		}
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), embeddingKind())
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), llmKind())
}

// providerKind describes the embedding or LLM side of provider setup.
type providerKind struct {
	name      string // "embedding", "LLM"
	article   string // "an embedding provider"
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	set       func(domain.AIProvider, string, string) error
	validate  func() error
}

func embeddingKind() providerKind {
	return providerKind{
		name:      "embedding",
		article:   "an embedding provider",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
		set:       settingsService.SetEmbeddingProvider,
		validate:  settingsService.ValidateEmbeddingConfig,
	}
}

func llmKind() providerKind {
	return providerKind{
		name:      "LLM",
		article:   "an LLM provider",
		providers: domain.AllLLMProviders(),
		models:    domain.DefaultLLMModels(),
		set:       settingsService.SetLLMProvider,
		validate:  settingsService.ValidateLLMConfig,
	}
}

// configureProvider asks for provider, model and key, saves them, then pings the provider.
func configureProvider(cmd *cobra.Command, reader *bufio.Reader, kind providerKind) error {
	label := kind.name
	if label != "LLM" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}

	cmd.Printf("Select %s Provider\n", label)
	for i, p := range kind.providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	provider := kind.providers[parseChoice(readLine(reader), len(kind.providers), 1)-1]

	model := kind.models[provider]
	cmd.Printf("Enter model name [%s]: ", model)
	if input := readLine(reader); input != "" {
		model = input
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := kind.set(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", kind.name, err)
	}

	cmd.Print("Validating configuration... ")
	if err := kind.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", kind.name, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n\n", label, provider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when stdin is a terminal, otherwise it reads
// a line from reader so keys can be piped in.
func readPassword(reader *bufio.Reader) string {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		if password, err := term.ReadPassword(fd); err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func confirm(input string, defaultVal bool) bool {
	switch strings.ToLower(input) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultVal
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
