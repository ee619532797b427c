package driven

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// PostProcessor transforms a document into segments during ingestion.
// PostProcessors are chained in a pipeline (e.g., normalisation, chunking).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document and returns segments.
	// A processor that creates segments (e.g., chunker) receives nil and returns new segments.
	// A processor that rewrites content runs before the chunker and may modify doc in place.
	Process(ctx context.Context, doc *domain.Document, segments []domain.Segment) ([]domain.Segment, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	// Returns the final segments after all processing.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Segment, error)
}
