package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

func newTestAssembler(backend *fakeBackend) *ContextAssembler {
	return NewContextAssembler(backend, runeCounter{}, domain.DefaultAppSettings().Context)
}

func TestMergeRanges(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.IndexRange
		want []domain.IndexRange
	}{
		{"empty", nil, nil},
		{"overlapping", []domain.IndexRange{{Start: 15, End: 19}, {Start: 13, End: 17}}, []domain.IndexRange{{Start: 13, End: 19}}},
		{"contiguous", []domain.IndexRange{{Start: 0, End: 2}, {Start: 3, End: 5}}, []domain.IndexRange{{Start: 0, End: 5}}},
		{"disjoint", []domain.IndexRange{{Start: 8, End: 9}, {Start: 0, End: 2}}, []domain.IndexRange{{Start: 0, End: 2}, {Start: 8, End: 9}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeRanges(tt.in))
		})
	}
}

func TestAssemble_SingleHitWindow(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30)
	a := newTestAssembler(backend)

	w, err := a.Assemble(context.Background(), []domain.ScoredHit{hit(segs[15], 0.8)}, 5, 10000)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	assert.Equal(t, []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, w.Runs[0].Indices())
	assert.Equal(t, 1, w.Runs[0].TargetCount())
	assert.Equal(t, 1, backend.fetchCalls["doc"])
}

func TestAssemble_OverlappingWindowsDeduplicated(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{hit(segs[15], 0.9), hit(segs[17], 0.7)}
	w, err := a.Assemble(context.Background(), hits, 2, 10000)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	assert.Equal(t, []int{13, 14, 15, 16, 17, 18, 19}, w.Runs[0].Indices())
	assert.Equal(t, 2, w.Runs[0].TargetCount())
	assert.Equal(t, 0.9, w.Runs[0].BestScore)
	assert.Equal(t, 1, backend.fetchCalls["doc"])
}

func TestAssemble_ClampsAtDocumentEdges(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 4)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{hit(segs[0], 0.9), hit(segs[3], 0.8)}
	w, err := a.Assemble(context.Background(), hits, 3, 10000)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	assert.Equal(t, []int{0, 1, 2, 3}, w.Runs[0].Indices())
	require.NotNil(t, w.Runs[0].Metadata)
	assert.Equal(t, "DOC", w.Runs[0].Metadata.Title)
}

func TestAssemble_DisjointRangesKeepGap(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{hit(segs[2], 0.9), hit(segs[20], 0.8)}
	w, err := a.Assemble(context.Background(), hits, 1, 10000)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	assert.Equal(t, []int{1, 2, 3, 19, 20, 21}, w.Runs[0].Indices())
	assert.Equal(t, 1, backend.fetchCalls["doc"])
	assert.Contains(t, w.Render(), "\n...\n")
}

func TestAssemble_IgnoresNonRelevantHits(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 5)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{{Segment: segs[2], CombinedScore: 0.1}}
	w, err := a.Assemble(context.Background(), hits, 2, 10000)
	require.NoError(t, err)

	assert.True(t, w.IsEmpty())
	assert.Empty(t, backend.fetchCalls)
}

func TestAssemble_OrdersRunsByBestScore(t *testing.T) {
	backend := newFakeBackend()
	a1 := backend.addDocument("a", 3)
	b1 := backend.addDocument("b", 3)
	c1 := backend.addDocument("c", 3)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{hit(a1[1], 0.5), hit(b1[1], 0.9), hit(c1[1], 0.5)}
	w, err := a.Assemble(context.Background(), hits, 0, 10000)
	require.NoError(t, err)

	var order []string
	for _, r := range w.Runs {
		order = append(order, r.DocumentID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, order)
}

func TestAssemble_RespectsBudget(t *testing.T) {
	backend := newFakeBackend()
	a1 := backend.addDocument("a", 10) // segment texts are 3 runes: "a-0"
	b1 := backend.addDocument("b", 10)
	c1 := backend.addDocument("c", 10)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{hit(a1[5], 0.9), hit(b1[5], 0.8), hit(c1[5], 0.7)}

	// each run is 3 segments of 3 tokens; a budget of 20 fits two runs
	w, err := a.Assemble(context.Background(), hits, 1, 20)
	require.NoError(t, err)

	require.Len(t, w.Runs, 2)
	assert.Equal(t, "a", w.Runs[0].DocumentID)
	assert.Equal(t, "b", w.Runs[1].DocumentID)
	assert.Equal(t, 18, w.TokenCount)
	assert.LessOrEqual(t, w.TokenCount, w.TokenBudget)
	assert.Equal(t, []string{"c"}, w.DroppedDocuments)
}

func TestAssemble_SkipsRunThatDoesNotFit(t *testing.T) {
	backend := newFakeBackend()
	big := backend.addDocument("big", 20)
	small := backend.addDocument("small", 3)
	a := newTestAssembler(backend)

	for i := range big {
		big[i].Text = "xxxxxxxxxx" // 10 tokens
	}
	backend.segments["big"] = big

	hits := []domain.ScoredHit{hit(small[1], 0.9), hit(big[10], 0.8)}
	w, err := a.Assemble(context.Background(), hits, 2, 30)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	assert.Equal(t, "small", w.Runs[0].DocumentID)
	assert.Equal(t, []string{"big"}, w.DroppedDocuments)
}

func TestAssemble_TrimsBestRunWhenNothingFits(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30) // segments 10..20 are 6 runes: "doc-NN"
	a := newTestAssembler(backend)

	w, err := a.Assemble(context.Background(), []domain.ScoredHit{hit(segs[15], 0.9)}, 5, 20)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	run := w.Runs[0]
	assert.Contains(t, run.Indices(), 15)
	assert.Equal(t, []int{14, 15, 16}, run.Indices())
	assert.LessOrEqual(t, w.TokenCount, 20)
	assert.Empty(t, w.DroppedDocuments)
}

// assertContiguousWithTarget checks that a trimmed run has no index gaps and
// still holds at least one target.
func assertContiguousWithTarget(t *testing.T, run domain.DocumentRun) {
	t.Helper()
	idx := run.Indices()
	for i := 1; i < len(idx); i++ {
		assert.Equal(t, idx[i-1]+1, idx[i], "gap in %v", idx)
	}
	assert.Positive(t, run.TargetCount())
}

func TestAssemble_TrimDoesNotSkipOverOversizedNeighbour(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30)
	segs[14].Text = strings.Repeat("w", 15)
	a := newTestAssembler(backend)

	w, err := a.Assemble(context.Background(), []domain.ScoredHit{hit(segs[15], 0.9)}, 5, 20)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	assert.Equal(t, []int{15, 16, 17}, w.Runs[0].Indices())
	assertContiguousWithTarget(t, w.Runs[0])
	assert.Equal(t, 18, w.TokenCount)
}

func TestAssemble_TrimKeepsSpanBetweenTargets(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{hit(segs[10], 0.9), hit(segs[12], 0.8)}
	w, err := a.Assemble(context.Background(), hits, 5, 20)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	assert.Equal(t, []int{10, 11, 12}, w.Runs[0].Indices())
	assert.Equal(t, 2, w.Runs[0].TargetCount())
	assertContiguousWithTarget(t, w.Runs[0])
}

func TestAssemble_TrimFallsBackToBestSingleTarget(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30)
	segs[11].Text = strings.Repeat("w", 30)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{hit(segs[10], 0.5), hit(segs[12], 0.9)}
	w, err := a.Assemble(context.Background(), hits, 5, 20)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	assert.Equal(t, []int{12, 13, 14}, w.Runs[0].Indices())
	assertContiguousWithTarget(t, w.Runs[0])
}

func TestAssemble_OversizedTargetLeavesWindowEmpty(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 10)
	segs[2].Text = strings.Repeat("w", 50)
	a := newTestAssembler(backend)

	w, err := a.Assemble(context.Background(), []domain.ScoredHit{hit(segs[2], 0.9)}, 1, 20)
	require.NoError(t, err)

	assert.Empty(t, w.Runs)
	assert.Zero(t, w.TokenCount)
	assert.Equal(t, []string{"doc"}, w.DroppedDocuments)
}

func TestAssemble_FetchFailureDegradesRun(t *testing.T) {
	backend := newFakeBackend()
	good := backend.addDocument("good", 10)
	bad := backend.addDocument("bad", 10)
	backend.fetchErr["bad"] = errors.New("shard offline")
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{hit(good[4], 0.9), hit(bad[4], 0.8)}
	w, err := a.Assemble(context.Background(), hits, 1, 10000)
	require.NoError(t, err)

	require.Len(t, w.Runs, 2)
	assert.False(t, w.Runs[0].Degraded)
	assert.Equal(t, []int{3, 4, 5}, w.Runs[0].Indices())
	assert.True(t, w.Runs[1].Degraded)
	assert.Equal(t, []int{4}, w.Runs[1].Indices())
}

func TestAssemble_MetadataLookup(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30)
	store := newFakeSegmentStore()
	store.docs["doc"] = segs

	a := newTestAssembler(backend)
	a.SetMetadataLookup(store)

	w, err := a.Assemble(context.Background(), []domain.ScoredHit{hit(segs[20], 0.9)}, 1, 10000)
	require.NoError(t, err)

	require.Len(t, w.Runs, 1)
	require.NotNil(t, w.Runs[0].Metadata)
	assert.Equal(t, "DOC", w.Runs[0].Metadata.Title)
	assert.Equal(t, "DOC", w.Runs[0].Label())
}

func TestAssemble_CancellationDiscardsWindow(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 10)
	backend.blockFetch = make(chan struct{})
	a := newTestAssembler(backend)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w, err := a.Assemble(ctx, []domain.ScoredHit{hit(segs[3], 0.9)}, 1, 10000)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, w)
}

func TestAssemble_NoDuplicateSegments(t *testing.T) {
	backend := newFakeBackend()
	segs := backend.addDocument("doc", 30)
	a := newTestAssembler(backend)

	hits := []domain.ScoredHit{
		hit(segs[5], 0.9), hit(segs[5], 0.6), hit(segs[6], 0.8), hit(segs[9], 0.7),
	}
	w, err := a.Assemble(context.Background(), hits, 2, 10000)
	require.NoError(t, err)

	seen := map[int]bool{}
	prev := -1
	for _, cs := range w.Segments() {
		assert.False(t, seen[cs.Segment.Index], "duplicate index %d", cs.Segment.Index)
		assert.Greater(t, cs.Segment.Index, prev)
		seen[cs.Segment.Index] = true
		prev = cs.Segment.Index
	}
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9, 10, 11}, w.Runs[0].Indices())
}
