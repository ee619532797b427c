package domain

// SearchFilters narrows a retrieval query.
// Empty fields do not filter.
type SearchFilters struct {
	// DocumentIDs restricts results to specific documents.
	DocumentIDs []string

	// ContentTypes restricts results to documents of these MIME types.
	ContentTypes []string
}

// IsEmpty reports whether no filter is set.
func (f SearchFilters) IsEmpty() bool {
	return len(f.DocumentIDs) == 0 && len(f.ContentTypes) == 0
}

// MatchesDocument reports whether a document passes the DocumentIDs filter.
func (f SearchFilters) MatchesDocument(documentID string) bool {
	if len(f.DocumentIDs) == 0 {
		return true
	}
	for _, id := range f.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// MatchesContentType reports whether a content type passes the ContentTypes filter.
func (f SearchFilters) MatchesContentType(contentType string) bool {
	if len(f.ContentTypes) == 0 {
		return true
	}
	for _, ct := range f.ContentTypes {
		if ct == contentType {
			return true
		}
	}
	return false
}

// ScoredHit is a query-scoped retrieval result. It is never persisted.
type ScoredHit struct {
	// Segment is the matched segment.
	Segment Segment

	// VectorScore is the vector similarity sub-score in [0,1].
	VectorScore float64

	// LexicalScore is the keyword match sub-score in [0,1].
	LexicalScore float64

	// CombinedScore is the weighted blend used for ranking.
	CombinedScore float64

	// Relevant is true when CombinedScore reaches the answer threshold.
	// Hits that are not relevant are kept for diagnostics only.
	Relevant bool
}

// RelevantHits returns the hits flagged relevant, preserving order.
func RelevantHits(hits []ScoredHit) []ScoredHit {
	out := make([]ScoredHit, 0, len(hits))
	for i := range hits {
		if hits[i].Relevant {
			out = append(out, hits[i])
		}
	}
	return out
}
