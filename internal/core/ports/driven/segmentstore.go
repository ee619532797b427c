package driven

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// SegmentStore persists segments at ingestion time.
// The local backends implement it alongside SearchBackend.
type SegmentStore interface {
	// ReplaceDocument atomically replaces every segment of a document.
	// Segments must carry contiguous indices starting at 0.
	ReplaceDocument(ctx context.Context, documentID string, segments []domain.Segment) error

	// ListDocuments returns a summary per stored document, ordered by document ID.
	ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error)

	// SetMetadata writes metadata to the segment at index and clears it on every other
	// segment of the document. Returns ErrNotFound if the segment does not exist.
	SetMetadata(ctx context.Context, documentID string, index int, meta domain.DocumentMetadata) error

	// FindMetadata returns every segment of the document that currently carries metadata.
	FindMetadata(ctx context.Context, documentID string) ([]domain.Segment, error)

	// Close releases resources.
	Close() error
}

// MetadataLookup resolves a document's metadata from its designated segment.
// Returns ErrNotFound when the document has no metadata.
type MetadataLookup interface {
	LookupMetadata(ctx context.Context, documentID string) (*domain.DocumentMetadata, error)
}
