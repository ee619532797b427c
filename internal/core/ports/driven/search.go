package driven

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// SearchBackend is the external vector and keyword index the retriever queries.
// Scores are backend-native; the retriever clamps them to [0,1].
type SearchBackend interface {
	// VectorQuery returns the k segments nearest to vector, honouring filters.
	VectorQuery(ctx context.Context, vector []float32, filters domain.SearchFilters, k int) ([]SegmentHit, error)

	// LexicalQuery returns the k best keyword matches for text, honouring filters.
	LexicalQuery(ctx context.Context, text string, filters domain.SearchFilters, k int) ([]SegmentHit, error)

	// FetchSegments returns the existing segments of a document within the
	// inclusive range, ordered by ascending index. Indices past the end of
	// the document are silently absent.
	FetchSegments(ctx context.Context, documentID string, r domain.IndexRange) ([]domain.Segment, error)

	// DeleteDocument removes every segment of the document and returns how many were removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)
}

// SegmentHit is a segment matched by one sub-query, with its raw score.
type SegmentHit struct {
	// Segment is the matched segment. Embedding may be omitted.
	Segment domain.Segment

	// Score is the sub-query relevance score. Higher is better.
	Score float64
}
