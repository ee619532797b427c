package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// Retrieval is the outcome of one hybrid query.
type Retrieval struct {
	// Hits are diversified and ordered by descending combined score.
	Hits []domain.ScoredHit

	// LexicalOnly is true when no query vector was available.
	LexicalOnly bool

	// Candidates is the number of distinct segments scored before diversification.
	Candidates int
}

// Retriever runs hybrid vector and lexical queries and ranks the merged hits.
type Retriever struct {
	backend  driven.SearchBackend
	embedder driven.EmbeddingService
	cache    driven.EmbeddingCache
	cfg      domain.RetrievalSettings
}

// NewRetriever creates a retriever.
// The embedder is optional; without it retrieval is lexical-only.
// The cache is optional; without it the query is embedded on every call.
func NewRetriever(
	backend driven.SearchBackend,
	embedder driven.EmbeddingService,
	cache driven.EmbeddingCache,
	cfg domain.RetrievalSettings,
) *Retriever {
	return &Retriever{
		backend:  backend,
		embedder: embedder,
		cache:    cache,
		cfg:      cfg,
	}
}

// Retrieve queries both indexes concurrently, scores and diversifies the results.
// An embedding failure degrades to lexical-only; a backend failure is returned
// wrapped in ErrSearchBackendUnavailable.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, filters domain.SearchFilters, maxResults int,
) (*Retrieval, error) {
	logger.Section("Retrieval")

	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}
	multiplier := r.cfg.CandidateMultiplier
	if multiplier <= 0 {
		multiplier = domain.DefaultCandidateMultiplier
	}
	depth := maxResults * multiplier
	logger.Debug("Query: %q, maxResults: %d, candidate depth: %d", query, maxResults, depth)

	var (
		vectorHits  []driven.SegmentHit
		lexicalHits []driven.SegmentHit
		lexicalOnly = r.embedder == nil
	)

	g, gctx := errgroup.WithContext(ctx)

	if r.embedder != nil {
		g.Go(func() error {
			vec, err := r.embedQuery(gctx, query)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("Query embedding failed, continuing lexical-only: %v", err)
				lexicalOnly = true
				return nil
			}
			hits, err := r.backend.VectorQuery(gctx, vec, filters, depth)
			if err != nil {
				return fmt.Errorf("vector query: %w: %w", domain.ErrSearchBackendUnavailable, err)
			}
			vectorHits = hits
			return nil
		})
	}

	g.Go(func() error {
		hits, err := r.backend.LexicalQuery(gctx, query, filters, depth)
		if err != nil {
			return fmt.Errorf("lexical query: %w: %w", domain.ErrSearchBackendUnavailable, err)
		}
		lexicalHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	weight := r.cfg.VectorWeight
	if lexicalOnly {
		weight = 0
	}
	logger.Debug("Vector hits: %d, lexical hits: %d, vector weight: %.2f",
		len(vectorHits), len(lexicalHits), weight)

	scored := mergeHits(vectorHits, lexicalHits, weight, r.cfg.MinScoreForAnswer)
	SortHits(scored)
	hits := diversifyRelevantFirst(scored, maxResults)

	logger.Info("Retrieved %d hits (%d candidates, %d relevant)",
		len(hits), len(scored), len(domain.RelevantHits(hits)))

	return &Retrieval{Hits: hits, LexicalOnly: lexicalOnly, Candidates: len(scored)}, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.cache != nil {
		return r.cache.GetOrCompute(ctx, query, r.embedder.Embed)
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingComputeFailed, err)
	}
	return vec, nil
}

// mergeHits joins sub-query results by segment and computes combined scores.
func mergeHits(vectorHits, lexicalHits []driven.SegmentHit, weight, minScore float64) []domain.ScoredHit {
	byKey := make(map[domain.SegmentKey]*domain.ScoredHit, len(vectorHits)+len(lexicalHits))
	order := make([]domain.SegmentKey, 0, len(vectorHits)+len(lexicalHits))

	upsert := func(h driven.SegmentHit) *domain.ScoredHit {
		key := h.Segment.Key()
		if existing, ok := byKey[key]; ok {
			if existing.Segment.Text == "" {
				existing.Segment = h.Segment
			}
			return existing
		}
		sh := &domain.ScoredHit{Segment: h.Segment}
		byKey[key] = sh
		order = append(order, key)
		return sh
	}

	for _, h := range vectorHits {
		sh := upsert(h)
		sh.VectorScore = max(sh.VectorScore, clamp01(h.Score))
	}
	for _, h := range lexicalHits {
		sh := upsert(h)
		sh.LexicalScore = max(sh.LexicalScore, clamp01(h.Score))
	}

	out := make([]domain.ScoredHit, 0, len(order))
	for _, key := range order {
		sh := byKey[key]
		sh.CombinedScore = CombineScore(sh.VectorScore, sh.LexicalScore, weight)
		sh.Relevant = sh.CombinedScore >= minScore
		out = append(out, *sh)
	}
	return out
}

// CombineScore blends the sub-scores: v×w + l×(1−w), with every input clamped to [0,1].
func CombineScore(vectorScore, lexicalScore, vectorWeight float64) float64 {
	w := clamp01(vectorWeight)
	return clamp01(vectorScore)*w + clamp01(lexicalScore)*(1-w)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// SortHits orders hits by descending combined score, then ascending segment
// index, then document ID.
func SortHits(hits []domain.ScoredHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hitLess(hits[i], hits[j])
	})
}

func hitLess(a, b domain.ScoredHit) bool {
	if a.CombinedScore != b.CombinedScore {
		return a.CombinedScore > b.CombinedScore
	}
	if a.Segment.Index != b.Segment.Index {
		return a.Segment.Index < b.Segment.Index
	}
	return strings.Compare(a.Segment.DocumentID, b.Segment.DocumentID) < 0
}

// Diversify picks up to maxResults hits round-robin across documents: each pass
// takes the next best hit of every document, documents visited in order of their
// best hit. Input must be sorted with SortHits; output is sorted the same way.
func Diversify(hits []domain.ScoredHit, maxResults int) []domain.ScoredHit {
	if maxResults <= 0 || len(hits) == 0 {
		return nil
	}

	var docOrder []string
	byDoc := make(map[string][]domain.ScoredHit)
	for _, h := range hits {
		id := h.Segment.DocumentID
		if _, ok := byDoc[id]; !ok {
			docOrder = append(docOrder, id)
		}
		byDoc[id] = append(byDoc[id], h)
	}

	out := make([]domain.ScoredHit, 0, min(maxResults, len(hits)))
	for pass := 0; len(out) < maxResults; pass++ {
		took := false
		for _, id := range docOrder {
			if len(out) == maxResults {
				break
			}
			if pass < len(byDoc[id]) {
				out = append(out, byDoc[id][pass])
				took = true
			}
		}
		if !took {
			break
		}
	}

	SortHits(out)
	return out
}

// diversifyRelevantFirst fills the result with diversified relevant hits and
// only then with diversified diagnostic hits.
func diversifyRelevantFirst(sorted []domain.ScoredHit, maxResults int) []domain.ScoredHit {
	var relevant, rest []domain.ScoredHit
	for _, h := range sorted {
		if h.Relevant {
			relevant = append(relevant, h)
		} else {
			rest = append(rest, h)
		}
	}

	out := Diversify(relevant, maxResults)
	if remaining := maxResults - len(out); remaining > 0 {
		out = append(out, Diversify(rest, remaining)...)
	}
	return out
}
