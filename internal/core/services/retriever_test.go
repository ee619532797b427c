package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-context/internal/adapters/driven/cache/lru"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

func defaultRetrieval() domain.RetrievalSettings {
	return domain.DefaultAppSettings().Retrieval
}

func segHit(docID string, index int, score float64) driven.SegmentHit {
	return driven.SegmentHit{
		Segment: domain.Segment{DocumentID: docID, Index: index, Text: docID},
		Score:   score,
	}
}

func TestCombineScore(t *testing.T) {
	tests := []struct {
		name    string
		v, l, w float64
		want    float64
	}{
		{"default weight", 0.8, 0.4, 0.7, 0.68},
		{"vector only", 0.5, 1, 1, 0.5},
		{"lexical only", 0.5, 0.9, 0, 0.9},
		{"clamps above one", 2, 2, 0.7, 1},
		{"clamps negatives", -1, 0.5, 0.5, 0.25},
		{"nan is zero", math.NaN(), 1, 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CombineScore(tt.v, tt.l, tt.w), 1e-9)
		})
	}
}

func TestSortHits_TieBreaks(t *testing.T) {
	hits := []domain.ScoredHit{
		{Segment: domain.Segment{DocumentID: "b", Index: 1}, CombinedScore: 0.5},
		{Segment: domain.Segment{DocumentID: "a", Index: 1}, CombinedScore: 0.5},
		{Segment: domain.Segment{DocumentID: "c", Index: 0}, CombinedScore: 0.5},
		{Segment: domain.Segment{DocumentID: "z", Index: 9}, CombinedScore: 0.9},
	}
	SortHits(hits)

	var got []string
	for _, h := range hits {
		got = append(got, h.Segment.Key().String())
	}
	assert.Equal(t, []string{"z#9", "c#0", "a#1", "b#1"}, got)
}

func TestDiversify_RoundRobin(t *testing.T) {
	// doc A dominates the top of the ranking.
	var hits []domain.ScoredHit
	for i := 0; i < 6; i++ {
		hits = append(hits, domain.ScoredHit{
			Segment:       domain.Segment{DocumentID: "A", Index: i},
			CombinedScore: 0.9 - float64(i)*0.01,
		})
	}
	hits = append(hits,
		domain.ScoredHit{Segment: domain.Segment{DocumentID: "B", Index: 0}, CombinedScore: 0.5},
		domain.ScoredHit{Segment: domain.Segment{DocumentID: "C", Index: 0}, CombinedScore: 0.4},
	)
	SortHits(hits)

	got := Diversify(hits, 4)
	require.Len(t, got, 4)

	perDoc := map[string]int{}
	for _, h := range got {
		perDoc[h.Segment.DocumentID]++
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 1}, perDoc)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].CombinedScore, got[i].CombinedScore)
	}
}

func TestDiversify_FewerThanMax(t *testing.T) {
	hits := []domain.ScoredHit{
		{Segment: domain.Segment{DocumentID: "A", Index: 0}, CombinedScore: 0.9},
		{Segment: domain.Segment{DocumentID: "A", Index: 1}, CombinedScore: 0.8},
	}
	assert.Len(t, Diversify(hits, 10), 2)
	assert.Empty(t, Diversify(hits, 0))
}

func TestRetriever_HybridMerge(t *testing.T) {
	backend := newFakeBackend()
	backend.vectorHits = []driven.SegmentHit{segHit("A", 0, 0.9), segHit("B", 3, 0.2)}
	backend.lexicalHits = []driven.SegmentHit{segHit("A", 0, 0.5), segHit("C", 1, 0.8)}

	r := NewRetriever(backend, &fakeEmbedder{}, nil, defaultRetrieval())
	res, err := r.Retrieve(context.Background(), "query", domain.SearchFilters{}, 8)
	require.NoError(t, err)

	assert.False(t, res.LexicalOnly)
	assert.Equal(t, 3, res.Candidates)
	require.Len(t, res.Hits, 3)

	top := res.Hits[0]
	assert.Equal(t, "A", top.Segment.DocumentID)
	assert.InDelta(t, 0.9*0.7+0.5*0.3, top.CombinedScore, 1e-9)
	assert.True(t, top.Relevant)

	byDoc := map[string]domain.ScoredHit{}
	for _, h := range res.Hits {
		byDoc[h.Segment.DocumentID] = h
	}
	assert.False(t, byDoc["B"].Relevant, "0.14 is below the threshold")
	assert.False(t, byDoc["C"].Relevant, "0.24 is below the threshold")
	assert.Equal(t, 32, backend.lastDepth)
}

func TestRetriever_EmbeddingFailureDegradesToLexical(t *testing.T) {
	backend := newFakeBackend()
	backend.vectorHits = []driven.SegmentHit{segHit("A", 0, 0.9)}
	backend.lexicalHits = []driven.SegmentHit{segHit("B", 0, 0.6)}

	r := NewRetriever(backend, &fakeEmbedder{err: errors.New("quota")}, nil, defaultRetrieval())
	res, err := r.Retrieve(context.Background(), "query", domain.SearchFilters{}, 8)
	require.NoError(t, err)

	assert.True(t, res.LexicalOnly)
	assert.Equal(t, 0, backend.vectorCalls)
	require.Len(t, res.Hits, 1)
	assert.InDelta(t, 0.6, res.Hits[0].CombinedScore, 1e-9)
	assert.True(t, res.Hits[0].Relevant)
}

func TestRetriever_NoEmbedderIsLexicalOnly(t *testing.T) {
	backend := newFakeBackend()
	backend.lexicalHits = []driven.SegmentHit{segHit("B", 0, 0.6)}

	r := NewRetriever(backend, nil, nil, defaultRetrieval())
	res, err := r.Retrieve(context.Background(), "query", domain.SearchFilters{}, 0)
	require.NoError(t, err)
	assert.True(t, res.LexicalOnly)
	assert.Len(t, res.Hits, 1)
}

func TestRetriever_BackendFailure(t *testing.T) {
	tests := []struct {
		name    string
		backend func() *fakeBackend
	}{
		{"vector", func() *fakeBackend {
			b := newFakeBackend()
			b.vectorErr = errors.New("index offline")
			return b
		}},
		{"lexical", func() *fakeBackend {
			b := newFakeBackend()
			b.lexicalErr = errors.New("fts offline")
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(tt.backend(), &fakeEmbedder{}, nil, defaultRetrieval())
			_, err := r.Retrieve(context.Background(), "query", domain.SearchFilters{}, 8)
			assert.ErrorIs(t, err, domain.ErrSearchBackendUnavailable)
		})
	}
}

func TestRetriever_UsesCache(t *testing.T) {
	cache, err := lru.New(domain.CacheSettings{Capacity: 10, Shards: 1})
	require.NoError(t, err)
	embedder := &fakeEmbedder{}

	r := NewRetriever(newFakeBackend(), embedder, cache, defaultRetrieval())
	for i := 0; i < 3; i++ {
		_, err := r.Retrieve(context.Background(), "same query", domain.SearchFilters{}, 8)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, uint64(2), cache.Stats().Hits)
}

func TestRetriever_RelevantHitsFillFirst(t *testing.T) {
	backend := newFakeBackend()
	backend.lexicalHits = []driven.SegmentHit{
		segHit("A", 0, 0.2),
		segHit("A", 1, 0.1),
		segHit("B", 0, 0.9),
		segHit("C", 0, 0.8),
	}

	r := NewRetriever(backend, nil, nil, defaultRetrieval())
	res, err := r.Retrieve(context.Background(), "q", domain.SearchFilters{}, 3)
	require.NoError(t, err)

	require.Len(t, res.Hits, 3)
	assert.True(t, res.Hits[0].Relevant)
	assert.True(t, res.Hits[1].Relevant)
	assert.False(t, res.Hits[2].Relevant)
	assert.Equal(t, "A", res.Hits[2].Segment.DocumentID)
	assert.Equal(t, 0, res.Hits[2].Segment.Index)
}

func TestRetriever_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := newFakeBackend()
	backend.lexicalErr = context.Canceled
	r := NewRetriever(backend, nil, nil, defaultRetrieval())
	_, err := r.Retrieve(ctx, "q", domain.SearchFilters{}, 8)
	assert.ErrorIs(t, err, context.Canceled)
}
