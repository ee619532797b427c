package driving

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// IngestService turns documents into stored, embedded segments.
type IngestService interface {
	// Ingest chunks, embeds and stores a document, replacing any previous version.
	// Returns the number of segments stored.
	Ingest(ctx context.Context, doc *domain.Document) (int, error)

	// Delete removes a document and all of its segments.
	// Returns the number of segments removed.
	Delete(ctx context.Context, documentID string) (int, error)

	// List returns a summary of every stored document.
	List(ctx context.Context) ([]domain.DocumentSummary, error)

	// RepairMetadata moves a document's metadata onto its designated segment
	// and clears it everywhere else. Returns ErrNotFound if no segment carries metadata.
	RepairMetadata(ctx context.Context, documentID string) error
}
