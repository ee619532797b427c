package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// DefaultEmbedConcurrency bounds concurrent embedding calls during ingestion.
const DefaultEmbedConcurrency = 4

// IngestService chunks, embeds and stores documents.
type IngestService struct {
	pipeline driven.PostProcessorPipeline
	store    driven.SegmentStore
	backend  driven.SearchBackend
	embedder driven.EmbeddingService
	cache    driven.EmbeddingCache

	concurrency int
}

// NewIngestService creates an ingest service.
// The embedder is optional; without it segments are stored for lexical search only.
// The cache is optional.
func NewIngestService(
	pipeline driven.PostProcessorPipeline,
	store driven.SegmentStore,
	backend driven.SearchBackend,
	embedder driven.EmbeddingService,
	cache driven.EmbeddingCache,
) *IngestService {
	return &IngestService{
		pipeline:    pipeline,
		store:       store,
		backend:     backend,
		embedder:    embedder,
		cache:       cache,
		concurrency: DefaultEmbedConcurrency,
	}
}

// SetConcurrency sets the number of concurrent embedding calls.
func (s *IngestService) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Ingest processes a document and replaces any stored version of it.
// A document without an ID is assigned one.
func (s *IngestService) Ingest(ctx context.Context, doc *domain.Document) (int, error) {
	if doc == nil || strings.TrimSpace(doc.Content) == "" {
		return 0, fmt.Errorf("%w: document has no content", domain.ErrInvalidInput)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	logger.Section("Ingest")
	logger.Debug("Document %s (%q), %d bytes", doc.ID, doc.Title, len(doc.Content))

	segments, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("processing document %s: %w", doc.ID, err)
	}
	if len(segments) == 0 {
		return 0, fmt.Errorf("%w: document %s produced no segments", domain.ErrInvalidInput, doc.ID)
	}

	if err := s.embedSegments(ctx, segments); err != nil {
		return 0, fmt.Errorf("embedding document %s: %w", doc.ID, err)
	}

	if err := s.store.ReplaceDocument(ctx, doc.ID, segments); err != nil {
		return 0, fmt.Errorf("storing document %s: %w", doc.ID, err)
	}

	logger.Info("Ingested %s: %d segments", doc.ID, len(segments))
	return len(segments), nil
}

// embedSegments fills every segment's embedding with bounded concurrency.
// Any failure aborts the whole document.
func (s *IngestService) embedSegments(ctx context.Context, segments []domain.Segment) error {
	if s.embedder == nil {
		logger.Debug("No embedding service, storing segments without vectors")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range segments {
		g.Go(func() error {
			vec, err := s.embed(gctx, segments[i].Text)
			if err != nil {
				return fmt.Errorf("segment %d: %w", segments[i].Index, err)
			}
			segments[i].Embedding = vec
			return nil
		})
	}
	return g.Wait()
}

func (s *IngestService) embed(ctx context.Context, text string) ([]float32, error) {
	if s.cache != nil {
		return s.cache.GetOrCompute(ctx, text, s.embedder.Embed)
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingComputeFailed, err)
	}
	return vec, nil
}

// Delete removes a document and all of its segments.
func (s *IngestService) Delete(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("%w: document id is empty", domain.ErrInvalidInput)
	}
	n, err := s.backend.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	logger.Info("Deleted %s: %d segments", documentID, n)
	return n, nil
}

// List returns a summary of every stored document.
func (s *IngestService) List(ctx context.Context) ([]domain.DocumentSummary, error) {
	return s.store.ListDocuments(ctx)
}

// RepairMetadata ensures exactly the designated segment of a document carries
// its metadata. When several segments carry metadata, the lowest index wins.
func (s *IngestService) RepairMetadata(ctx context.Context, documentID string) error {
	holders, err := s.store.FindMetadata(ctx, documentID)
	if err != nil {
		return fmt.Errorf("finding metadata for %s: %w", documentID, err)
	}
	if len(holders) == 0 {
		return fmt.Errorf("metadata for %s: %w", documentID, domain.ErrNotFound)
	}

	source := holders[0]
	for _, h := range holders[1:] {
		if h.Index < source.Index {
			source = h
		}
	}
	if len(holders) == 1 && source.IsMetadataHolder() {
		logger.Debug("Metadata for %s already on segment %d", documentID, domain.MetadataSegmentIndex)
		return nil
	}

	if err := s.store.SetMetadata(ctx, documentID, domain.MetadataSegmentIndex, *source.Metadata); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("segment %d of %s: %w", domain.MetadataSegmentIndex, documentID, err)
		}
		return fmt.Errorf("repairing metadata for %s: %w", documentID, err)
	}
	logger.Info("Repaired metadata for %s (moved from segment %d, %d holders)", documentID, source.Index, len(holders))
	return nil
}
