package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result  *driving.RetrievalResult
	answer  *driving.AnswerResult
	err     error
	lastReq driving.RetrievalRequest
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	req driving.RetrievalRequest,
) (*driving.RetrievalResult, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockRetrievalService) Answer(
	_ context.Context,
	req driving.RetrievalRequest,
) (*driving.AnswerResult, error) {
	m.lastReq = req
	return m.answer, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	documents []domain.DocumentSummary
	err       error
}

func (m *mockIngestService) Ingest(_ context.Context, _ *domain.Document) (int, error) {
	return 0, m.err
}

func (m *mockIngestService) Delete(_ context.Context, _ string) (int, error) {
	return 0, m.err
}

func (m *mockIngestService) List(_ context.Context) ([]domain.DocumentSummary, error) {
	return m.documents, m.err
}

func (m *mockIngestService) RepairMetadata(_ context.Context, _ string) error {
	return m.err
}

func testWindow() *domain.ContextWindow {
	return &domain.ContextWindow{
		Runs: []domain.DocumentRun{
			{
				DocumentID: "doc-1",
				Metadata:   &domain.DocumentMetadata{Title: "Install Guide"},
				BestScore:  0.82,
				Segments: []domain.ContextSegment{
					{Segment: domain.Segment{DocumentID: "doc-1", Index: 2, Text: "Run make install."}, Role: domain.RoleTarget, Tokens: 4},
					{Segment: domain.Segment{DocumentID: "doc-1", Index: 3, Text: " Then restart."}, Role: domain.RoleAdjacent, Tokens: 3},
				},
				Tokens: 7,
			},
		},
		TokenCount:       7,
		TokenBudget:      100,
		DroppedDocuments: []string{"doc-9"},
	}
}
