package cli

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

var errMockService = errors.New("mock service error")

// mockRetrievalService returns canned results and records the last request.
type mockRetrievalService struct {
	result  *driving.RetrievalResult
	answer  *driving.AnswerResult
	err     error
	lastReq driving.RetrievalRequest
	lastCtx context.Context
}

func (m *mockRetrievalService) Retrieve(ctx context.Context, req driving.RetrievalRequest) (*driving.RetrievalResult, error) {
	m.lastReq = req
	m.lastCtx = ctx
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockRetrievalService) Answer(_ context.Context, req driving.RetrievalRequest) (*driving.AnswerResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

// mockIngestService serves a fixed document list.
type mockIngestService struct {
	docs      []domain.DocumentSummary
	err       error
	deleteErr error
	repairErr error
	deleted   []string
	repaired  []string
}

func (m *mockIngestService) Ingest(_ context.Context, _ *domain.Document) (int, error) {
	return 1, m.err
}

func (m *mockIngestService) Delete(_ context.Context, documentID string) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleted = append(m.deleted, documentID)
	return 3, nil
}

func (m *mockIngestService) List(_ context.Context) ([]domain.DocumentSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

func (m *mockIngestService) RepairMetadata(_ context.Context, documentID string) error {
	if m.repairErr != nil {
		return m.repairErr
	}
	m.repaired = append(m.repaired, documentID)
	return nil
}

// mockImportService reports a fixed set of results for every path.
type mockImportService struct {
	results  []driving.ImportResult
	err      error
	watchErr error
	imported []string
	watched  []string
	lastOpts driving.ImportOptions
}

func (m *mockImportService) Import(_ context.Context, root string, opts driving.ImportOptions) (*driving.ImportReport, error) {
	m.imported = append(m.imported, root)
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	report := &driving.ImportReport{}
	for _, r := range m.results {
		if opts.OnResult != nil {
			opts.OnResult(r)
		}
		report.Results = append(report.Results, r)
		switch {
		case r.Err != nil:
			report.Failed++
		case r.Skipped:
			report.Skipped++
		default:
			report.Imported++
			report.Segments += r.Segments
		}
	}
	return report, nil
}

func (m *mockImportService) Watch(_ context.Context, root string, _ driving.ImportOptions) error {
	m.watched = append(m.watched, root)
	return m.watchErr
}

// mockSettingsService keeps settings in memory.
type mockSettingsService struct {
	settings    domain.AppSettings
	setErr      error
	validateErr error
	set         map[string]string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), set: map[string]string{}}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"context.token_budget", "embedding.provider"}
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding = domain.EmbeddingSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM = domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) Validate() error                  { return m.validateErr }
func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ValidateEmbeddingConfig() error  { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error        { return nil }

func testWindow() *domain.ContextWindow {
	meta := &domain.DocumentMetadata{Title: "Backup Guide", Filename: "backup.md"}
	return &domain.ContextWindow{
		Runs: []domain.DocumentRun{{
			DocumentID: "doc-1",
			Metadata:   meta,
			BestScore:  0.82,
			Segments: []domain.ContextSegment{
				{Segment: domain.Segment{DocumentID: "doc-1", Index: 0, Text: "Backups run nightly.", Metadata: meta}, Role: domain.RoleTarget, Tokens: 5},
				{Segment: domain.Segment{DocumentID: "doc-1", Index: 1, Text: " They are kept for a week."}, Role: domain.RoleAdjacent, Tokens: 7},
			},
			Tokens: 12,
		}},
		TokenCount:  12,
		TokenBudget: 3000,
	}
}

func testRetrievalResult() *driving.RetrievalResult {
	return &driving.RetrievalResult{
		Query:          "backups",
		EffectiveQuery: "backups",
		Window:         testWindow(),
	}
}

// setupTestServices installs mocks with sample data and returns a function
// restoring the previous services.
func setupTestServices() func() {
	oldRetrieval, oldIngest, oldImport, oldSettings := retrievalService, ingestService, importService, settingsService

	retrievalService = &mockRetrievalService{
		result: testRetrievalResult(),
		answer: &driving.AnswerResult{Answer: "Backups run every night.", Retrieval: testRetrievalResult()},
	}
	ingestService = &mockIngestService{docs: []domain.DocumentSummary{
		{
			DocumentID: "doc-1",
			Metadata: domain.DocumentMetadata{
				Title:          "Backup Guide",
				Filename:       "backup.md",
				ContentType:    "text/markdown",
				Size:           2048,
				StorageLocator: "file:///notes/backup.md",
			},
			SegmentCount: 4,
			CreatedAt:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
		{DocumentID: "doc-2", SegmentCount: 1},
	}}
	importService = &mockImportService{results: []driving.ImportResult{
		{URI: "file:///notes/backup.md", DocumentID: "doc-1", Change: domain.ChangeCreated, Segments: 4},
		{URI: "file:///notes/logo.png", Skipped: true},
	}}
	settingsService = newMockSettingsService()

	return func() {
		retrievalService, ingestService, importService, settingsService = oldRetrieval, oldIngest, oldImport, oldSettings
	}
}

// resetFlags restores flag values between executions of the shared root command.
func resetFlags() {
	retrievalFlags.output = outputText
	retrievalFlags.maxResults = 0
	retrievalFlags.budget = 0
	retrievalFlags.documentIDs = nil
	retrievalFlags.contentTypes = nil
	retrievalFlags.expand = false
	retrievalFlags.noExpand = false
	retrievalFlags.historyFile = ""
	ingestWatch = false
	ingestTitle = ""
	ingestID = ""

	for _, cmd := range []*cobra.Command{contextCmd, askCmd, ingestCmd} {
		cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
}

// executeCommand runs the root command with args and returns everything it printed.
func executeCommand(args ...string) (string, error) {
	return executeCommandContext(context.Background(), args...)
}

// executeCommandContext runs the root command under ctx. Cobra keeps the
// first context a subcommand saw, so every command is reset to ctx first.
func executeCommandContext(ctx context.Context, args ...string) (string, error) {
	resetFlags()
	defer resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	setContextTree(ctx, rootCmd)
	err := ExecuteContext(ctx)
	return buf.String(), err
}

func setContextTree(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContextTree(ctx, sub)
	}
}
