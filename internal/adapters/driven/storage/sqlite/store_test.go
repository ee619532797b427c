package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

// makeSegments builds a contiguous document from texts. Segment 0 carries meta.
func makeSegments(docID string, meta *domain.DocumentMetadata, texts ...string) []domain.Segment {
	segs := make([]domain.Segment, len(texts))
	for i, text := range texts {
		segs[i] = domain.Segment{
			ID:         fmt.Sprintf("%s-%d", docID, i),
			DocumentID: docID,
			Index:      i,
			Text:       text,
		}
	}
	if len(segs) > 0 {
		segs[0].Metadata = meta
	}
	return segs
}

func indices(segs []domain.Segment) []int {
	out := make([]int, len(segs))
	for i := range segs {
		out[i] = segs[i].Index
	}
	return out
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "segments.db"), store.Path())
	require.NoError(t, store.Close())
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceDocument(ctx, "doc", makeSegments("doc", nil, "alpha", "beta")))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	var version int
	require.NoError(t, reopened.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	segs, err := reopened.FetchSegments(ctx, "doc", domain.IndexRange{Start: 0, End: 10})
	require.NoError(t, err)
	assert.Len(t, segs, 2)
}

func TestStore_ReplaceDocument(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	meta := &domain.DocumentMetadata{Filename: "a.txt", Title: "A", ContentType: "text/plain"}
	segs := makeSegments("doc", meta, "zero", "one", "two")
	segs[1].Embedding = []float32{0.5, -1.25, 3}
	require.NoError(t, store.ReplaceDocument(ctx, "doc", segs))

	got, err := store.FetchSegments(ctx, "doc", domain.IndexRange{Start: 0, End: 2})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 1, 2}, indices(got))
	assert.Equal(t, "doc-1", got[1].ID)
	assert.Equal(t, "one", got[1].Text)
	require.NotNil(t, got[0].Metadata)
	assert.Equal(t, *meta, *got[0].Metadata)
	assert.Nil(t, got[1].Metadata)
	assert.False(t, got[0].CreatedAt.IsZero())

	require.NoError(t, store.ReplaceDocument(ctx, "doc", makeSegments("doc", nil, "replaced")))
	got, err = store.FetchSegments(ctx, "doc", domain.IndexRange{Start: 0, End: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "replaced", got[0].Text)

	hits, err := store.LexicalQuery(ctx, "two", domain.SearchFilters{}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits, "replaced text leaves the keyword index")
}

func TestStore_ReplaceDocument_AssignsMissingIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceDocument(ctx, "doc", []domain.Segment{{DocumentID: "doc", Index: 0, Text: "x"}}))

	got, err := store.FetchSegments(ctx, "doc", domain.IndexRange{Start: 0, End: 0})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc#0", got[0].ID)
}

func TestStore_ReplaceDocument_Invalid(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		docID string
		segs  []domain.Segment
	}{
		{"empty id", "", makeSegments("", nil, "x")},
		{"gap in indices", "doc", []domain.Segment{{DocumentID: "doc", Index: 0}, {DocumentID: "doc", Index: 2}}},
		{"foreign segment", "doc", makeSegments("other", nil, "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.ReplaceDocument(ctx, tt.docID, tt.segs)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestStore_FetchSegments_Ranges(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceDocument(ctx, "doc", makeSegments("doc", nil, "a", "b", "c", "d", "e")))

	tests := []struct {
		name string
		r    domain.IndexRange
		want []int
	}{
		{"middle", domain.IndexRange{Start: 1, End: 3}, []int{1, 2, 3}},
		{"past end", domain.IndexRange{Start: 3, End: 9}, []int{3, 4}},
		{"single", domain.IndexRange{Start: 0, End: 0}, []int{0}},
		{"beyond document", domain.IndexRange{Start: 7, End: 9}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FetchSegments(ctx, "doc", tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, indices(got))
		})
	}

	got, err := store.FetchSegments(ctx, "missing", domain.IndexRange{Start: 0, End: 3})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_VectorQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	pdf := makeSegments("pdf", &domain.DocumentMetadata{ContentType: "application/pdf"}, "p0", "p1")
	pdf[0].Embedding = []float32{1, 0}
	pdf[1].Embedding = []float32{0.8, 0.6}
	txt := makeSegments("txt", &domain.DocumentMetadata{ContentType: "text/plain"}, "t0", "t1", "t2")
	txt[0].Embedding = []float32{0, 1}
	txt[1].Embedding = []float32{1, 0, 0}
	require.NoError(t, store.ReplaceDocument(ctx, "pdf", pdf))
	require.NoError(t, store.ReplaceDocument(ctx, "txt", txt))

	t.Run("nearest first", func(t *testing.T) {
		hits, err := store.VectorQuery(ctx, []float32{1, 0}, domain.SearchFilters{}, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "pdf", hits[0].Segment.DocumentID)
		assert.Equal(t, 0, hits[0].Segment.Index)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.Equal(t, 1, hits[1].Segment.Index)
		assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
		require.NotNil(t, hits[0].Segment.Metadata)
	})

	t.Run("skips other dimensions and missing vectors", func(t *testing.T) {
		hits, err := store.VectorQuery(ctx, []float32{1, 0}, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		assert.Len(t, hits, 3)
	})

	t.Run("document filter", func(t *testing.T) {
		hits, err := store.VectorQuery(ctx, []float32{1, 0}, domain.SearchFilters{DocumentIDs: []string{"txt"}}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "txt", hits[0].Segment.DocumentID)
	})

	t.Run("content type filter", func(t *testing.T) {
		hits, err := store.VectorQuery(ctx, []float32{0, 1}, domain.SearchFilters{ContentTypes: []string{"text/plain"}}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "txt", hits[0].Segment.DocumentID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})

	t.Run("zero k", func(t *testing.T) {
		hits, err := store.VectorQuery(ctx, []float32{1, 0}, domain.SearchFilters{}, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestStore_LexicalQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceDocument(ctx, "animals",
		makeSegments("animals", &domain.DocumentMetadata{ContentType: "text/plain"},
			"the quick brown fox",
			"a quick grey wolf",
			"slow turtles everywhere",
			"sleeping cats and dogs")))
	require.NoError(t, store.ReplaceDocument(ctx, "manual",
		makeSegments("manual", &domain.DocumentMetadata{ContentType: "text/markdown"},
			"Configure the Fox exporter")))

	t.Run("best match first", func(t *testing.T) {
		hits, err := store.LexicalQuery(ctx, "quick fox", domain.SearchFilters{}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "animals", hits[0].Segment.DocumentID)
		assert.Equal(t, 0, hits[0].Segment.Index)
		for _, h := range hits {
			assert.GreaterOrEqual(t, h.Score, 0.0)
			assert.Less(t, h.Score, 1.0)
		}
		assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	})

	t.Run("limit", func(t *testing.T) {
		hits, err := store.LexicalQuery(ctx, "quick fox", domain.SearchFilters{}, 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("case and punctuation insensitive", func(t *testing.T) {
		hits, err := store.LexicalQuery(ctx, `FOX?! "exporter`, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "manual", hits[0].Segment.DocumentID)
	})

	t.Run("content type filter", func(t *testing.T) {
		hits, err := store.LexicalQuery(ctx, "fox", domain.SearchFilters{ContentTypes: []string{"text/markdown"}}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "manual", hits[0].Segment.DocumentID)
	})

	t.Run("document filter", func(t *testing.T) {
		hits, err := store.LexicalQuery(ctx, "fox", domain.SearchFilters{DocumentIDs: []string{"animals"}}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "animals", hits[0].Segment.DocumentID)
	})

	t.Run("no terms", func(t *testing.T) {
		hits, err := store.LexicalQuery(ctx, " ?! ", domain.SearchFilters{}, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("no match", func(t *testing.T) {
		hits, err := store.LexicalQuery(ctx, "zebra", domain.SearchFilters{}, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestStore_DeleteDocument(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceDocument(ctx, "doc", makeSegments("doc", nil, "a", "b", "c")))

	n, err := store.DeleteDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.DeleteDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	hits, err := store.LexicalQuery(ctx, "a b c", domain.SearchFilters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_ListDocuments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, store.ReplaceDocument(ctx, "b", makeSegments("b", &domain.DocumentMetadata{Title: "Bee"}, "x", "y")))
	require.NoError(t, store.ReplaceDocument(ctx, "a", makeSegments("a", nil, "z")))

	docs, err = store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].DocumentID)
	assert.Equal(t, 1, docs[0].SegmentCount)
	assert.True(t, docs[0].Metadata.IsZero())
	assert.Equal(t, "b", docs[1].DocumentID)
	assert.Equal(t, 2, docs[1].SegmentCount)
	assert.Equal(t, "Bee", docs[1].Metadata.Title)
	assert.False(t, docs[1].CreatedAt.IsZero())
}

func TestStore_Metadata(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	segs := makeSegments("doc", nil, "a", "b", "c")
	segs[1].Metadata = &domain.DocumentMetadata{Title: "Misplaced"}
	segs[2].Metadata = &domain.DocumentMetadata{Title: "Stray"}
	require.NoError(t, store.ReplaceDocument(ctx, "doc", segs))

	holders, err := store.FindMetadata(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, indices(holders))

	_, err = store.LookupMetadata(ctx, "doc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SetMetadata(ctx, "doc", 0, domain.DocumentMetadata{Title: "Misplaced", ContentType: "text/plain"}))

	holders, err = store.FindMetadata(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, indices(holders))

	meta, err := store.LookupMetadata(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "Misplaced", meta.Title)

	hits, err := store.LexicalQuery(ctx, "c", domain.SearchFilters{ContentTypes: []string{"text/plain"}}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "content type follows the metadata segment")
}

func TestStore_Metadata_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceDocument(ctx, "doc", makeSegments("doc", nil, "a")))

	err := store.SetMetadata(ctx, "doc", 4, domain.DocumentMetadata{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.LookupMetadata(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	holders, err := store.FindMetadata(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, holders)
}

func TestFloat32Blob(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestMatchExpression(t *testing.T) {
	assert.Equal(t, `"quick" OR "fox"`, matchExpression("Quick, fox!"))
	assert.Equal(t, "", matchExpression(`" ( ) *`))
	assert.Equal(t, `"or"`, matchExpression(`" OR (`), "operators are quoted as plain terms")
}

func TestFilterClause(t *testing.T) {
	where, args := filterClause(domain.SearchFilters{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = filterClause(domain.SearchFilters{DocumentIDs: []string{"a", "b"}, ContentTypes: []string{"text/plain"}})
	assert.Contains(t, where, "s.document_id IN (?,?)")
	assert.Contains(t, where, "content_type IN (?)")
	assert.Equal(t, []any{"a", "b", "text/plain"}, args)
}
