package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-context/internal/adapters/driven/storage/rank"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

// Ensure SegmentStore implements the interfaces.
var (
	_ driven.SearchBackend  = (*SegmentStore)(nil)
	_ driven.SegmentStore   = (*SegmentStore)(nil)
	_ driven.MetadataLookup = (*SegmentStore)(nil)
)

// SegmentStore is an in-memory segment index with brute-force vector search
// and BM25 keyword search. Contents are lost on Close.
type SegmentStore struct {
	mu        sync.RWMutex
	documents map[string][]entry
}

// entry is a stored segment with its precomputed term statistics.
type entry struct {
	segment domain.Segment
	tf      map[string]int
	length  int
}

// NewSegmentStore creates a new in-memory segment store.
func NewSegmentStore() *SegmentStore {
	return &SegmentStore{
		documents: make(map[string][]entry),
	}
}

// ReplaceDocument atomically replaces every segment of a document.
func (s *SegmentStore) ReplaceDocument(_ context.Context, documentID string, segments []domain.Segment) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is empty", domain.ErrInvalidInput)
	}
	if err := domain.ValidateSegmentIndices(segments); err != nil {
		return err
	}

	now := time.Now()
	entries := make([]entry, len(segments))
	for i, seg := range segments {
		if seg.DocumentID != documentID {
			return fmt.Errorf("%w: segment %d belongs to %q", domain.ErrInvalidInput, seg.Index, seg.DocumentID)
		}
		if seg.ID == "" {
			seg.ID = seg.Key().String()
		}
		if seg.CreatedAt.IsZero() {
			seg.CreatedAt = now
		}
		seg.Embedding = cloneVector(seg.Embedding)
		seg.Metadata = cloneMetadata(seg.Metadata)
		terms := rank.Terms(seg.Text)
		entries[i] = entry{segment: seg, tf: rank.TermFrequencies(terms), length: len(terms)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entries) == 0 {
		delete(s.documents, documentID)
		return nil
	}
	s.documents[documentID] = entries
	return nil
}

// ListDocuments returns a summary per stored document, ordered by document ID.
func (s *SegmentStore) ListDocuments(_ context.Context) ([]domain.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.DocumentSummary, 0, len(s.documents))
	for id, entries := range s.documents {
		summary := domain.DocumentSummary{
			DocumentID:   id,
			SegmentCount: len(entries),
			CreatedAt:    entries[0].segment.CreatedAt,
		}
		for i := range entries {
			if entries[i].segment.CreatedAt.Before(summary.CreatedAt) {
				summary.CreatedAt = entries[i].segment.CreatedAt
			}
		}
		if meta := entries[domain.MetadataSegmentIndex].segment.Metadata; meta != nil {
			summary.Metadata = *meta
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].DocumentID < summaries[j].DocumentID })
	return summaries, nil
}

// SetMetadata writes metadata to one segment and clears it on the others.
func (s *SegmentStore) SetMetadata(_ context.Context, documentID string, index int, meta domain.DocumentMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.documents[documentID]
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("segment %s/%d: %w", documentID, index, domain.ErrNotFound)
	}
	for i := range entries {
		entries[i].segment.Metadata = nil
	}
	entries[index].segment.Metadata = &meta
	return nil
}

// FindMetadata returns every segment of the document that carries metadata.
func (s *SegmentStore) FindMetadata(_ context.Context, documentID string) ([]domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var holders []domain.Segment
	for _, e := range s.documents[documentID] {
		if e.segment.Metadata != nil {
			holders = append(holders, copySegment(e.segment))
		}
	}
	return holders, nil
}

// LookupMetadata returns the metadata stored on the designated segment.
func (s *SegmentStore) LookupMetadata(_ context.Context, documentID string) (*domain.DocumentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.documents[documentID]
	if len(entries) == 0 || entries[domain.MetadataSegmentIndex].segment.Metadata == nil {
		return nil, fmt.Errorf("metadata for %s: %w", documentID, domain.ErrNotFound)
	}
	return cloneMetadata(entries[domain.MetadataSegmentIndex].segment.Metadata), nil
}

// VectorQuery returns the k most cosine-similar segments that pass the filters.
// Segments without a vector of the query's dimension are skipped.
func (s *SegmentStore) VectorQuery(ctx context.Context, vector []float32, filters domain.SearchFilters, k int) ([]driven.SegmentHit, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	top := rank.NewTopK(k)
	for id, entries := range s.documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.matches(id, entries, filters) {
			continue
		}
		for i := range entries {
			seg := entries[i].segment
			if len(seg.Embedding) != len(vector) {
				continue
			}
			top.Push(driven.SegmentHit{Segment: hitSegment(seg), Score: rank.Cosine(vector, seg.Embedding)})
		}
	}
	return top.Sorted(), nil
}

// LexicalQuery returns the k best BM25 matches for any term of text.
// Corpus statistics cover every stored segment; scores are mapped onto [0,1).
func (s *SegmentStore) LexicalQuery(ctx context.Context, text string, filters domain.SearchFilters, k int) ([]driven.SegmentHit, error) {
	query := rank.Terms(text)
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	unique := make(map[string]struct{}, len(query))
	for _, term := range query {
		unique[term] = struct{}{}
	}

	df := make(map[string]int, len(unique))
	n, total := 0, 0
	for _, entries := range s.documents {
		for i := range entries {
			n++
			total += entries[i].length
			for term := range unique {
				if entries[i].tf[term] > 0 {
					df[term]++
				}
			}
		}
	}
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(total) / float64(n)

	top := rank.NewTopK(k)
	for id, entries := range s.documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.matches(id, entries, filters) {
			continue
		}
		for i := range entries {
			e := &entries[i]
			score := rank.BM25(query, e.tf, e.length, df, n, avgLen)
			if score <= 0 {
				continue
			}
			top.Push(driven.SegmentHit{Segment: hitSegment(e.segment), Score: rank.Saturate(score)})
		}
	}
	return top.Sorted(), nil
}

// FetchSegments returns the segments of a document within r, ascending.
// r is clamped to the document's last index.
func (s *SegmentStore) FetchSegments(_ context.Context, documentID string, r domain.IndexRange) ([]domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.documents[documentID]
	r = r.ClampEnd(len(entries) - 1)
	var out []domain.Segment
	for i := max(r.Start, 0); i <= r.End; i++ {
		out = append(out, hitSegment(entries[i].segment))
	}
	return out, nil
}

// DeleteDocument removes every segment of the document.
func (s *SegmentStore) DeleteDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.documents[documentID])
	delete(s.documents, documentID)
	return n, nil
}

// Close discards all stored segments.
func (s *SegmentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = make(map[string][]entry)
	return nil
}

// matches applies filters to a document. Content types are read from the
// segment currently holding metadata.
func (s *SegmentStore) matches(documentID string, entries []entry, filters domain.SearchFilters) bool {
	if !filters.MatchesDocument(documentID) {
		return false
	}
	if len(filters.ContentTypes) == 0 {
		return true
	}
	for i := range entries {
		if meta := entries[i].segment.Metadata; meta != nil && filters.MatchesContentType(meta.ContentType) {
			return true
		}
	}
	return false
}

// hitSegment returns a copy of seg without its embedding.
func hitSegment(seg domain.Segment) domain.Segment {
	seg.Embedding = nil
	seg.Metadata = cloneMetadata(seg.Metadata)
	return seg
}

func copySegment(seg domain.Segment) domain.Segment {
	seg.Embedding = cloneVector(seg.Embedding)
	seg.Metadata = cloneMetadata(seg.Metadata)
	return seg
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	return append([]float32(nil), v...)
}

func cloneMetadata(m *domain.DocumentMetadata) *domain.DocumentMetadata {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
