package services

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// ContextAssembler expands relevant hits into deduplicated, index-ordered
// document runs and fits them to a token budget.
type ContextAssembler struct {
	backend  driven.SearchBackend
	counter  driven.TokenCounter
	metadata driven.MetadataLookup
	cfg      domain.ContextSettings
}

// NewContextAssembler creates an assembler.
func NewContextAssembler(
	backend driven.SearchBackend,
	counter driven.TokenCounter,
	cfg domain.ContextSettings,
) *ContextAssembler {
	return &ContextAssembler{
		backend: backend,
		counter: counter,
		cfg:     cfg,
	}
}

// SetMetadataLookup sets the resolver used when a run does not include the
// document's designated metadata segment.
func (a *ContextAssembler) SetMetadataLookup(lookup driven.MetadataLookup) {
	a.metadata = lookup
}

// docPlan is the per-document work derived from the relevant hits.
type docPlan struct {
	documentID string
	targets    map[int]domain.ScoredHit
	ranges     []domain.IndexRange
	bestScore  float64
}

// Assemble builds the context window for hits. Only relevant hits contribute.
// An empty window is returned when nothing is relevant. On cancellation the
// partial window is discarded and the context error returned.
func (a *ContextAssembler) Assemble(
	ctx context.Context, hits []domain.ScoredHit, adjacentCount, tokenBudget int,
) (*domain.ContextWindow, error) {
	logger.Section("Context Assembly")

	if adjacentCount < 0 {
		adjacentCount = 0
	}
	if tokenBudget <= 0 {
		tokenBudget = a.cfg.TokenBudget
	}

	window := &domain.ContextWindow{TokenBudget: tokenBudget}

	plans := planDocuments(domain.RelevantHits(hits), adjacentCount)
	if len(plans) == 0 {
		logger.Debug("No relevant hits, returning empty window")
		return window, nil
	}
	logger.Debug("Assembling %d documents, adjacent=%d, budget=%d", len(plans), adjacentCount, tokenBudget)

	runs, err := a.buildRuns(ctx, plans)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].BestScore != runs[j].BestScore {
			return runs[i].BestScore > runs[j].BestScore
		}
		return runs[i].DocumentID < runs[j].DocumentID
	})

	a.fitBudget(window, runs, tokenBudget)

	logger.Info("Context window: %d runs, %d segments, %d/%d tokens (%s), %d dropped",
		len(window.Runs), window.Len(), window.TokenCount, tokenBudget, a.counter.Name(), len(window.DroppedDocuments))
	return window, nil
}

// planDocuments groups relevant hits by document and merges their windows.
func planDocuments(relevant []domain.ScoredHit, adjacentCount int) []*docPlan {
	var plans []*docPlan
	byDoc := make(map[string]*docPlan)

	for _, h := range relevant {
		id := h.Segment.DocumentID
		p, ok := byDoc[id]
		if !ok {
			p = &docPlan{documentID: id, targets: make(map[int]domain.ScoredHit)}
			byDoc[id] = p
			plans = append(plans, p)
		}
		if prev, dup := p.targets[h.Segment.Index]; !dup || h.CombinedScore > prev.CombinedScore {
			p.targets[h.Segment.Index] = h
		}
		p.bestScore = max(p.bestScore, h.CombinedScore)
	}

	for _, p := range plans {
		ranges := make([]domain.IndexRange, 0, len(p.targets))
		for idx := range p.targets {
			ranges = append(ranges, domain.NewWindow(idx, adjacentCount))
		}
		p.ranges = MergeRanges(ranges)
	}
	return plans
}

// MergeRanges sorts ranges and merges those that overlap or are contiguous.
func MergeRanges(ranges []domain.IndexRange) []domain.IndexRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]domain.IndexRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []domain.IndexRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.Touches(r) {
			*last = last.Union(r)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// buildRuns fetches every planned document concurrently and builds its run.
func (a *ContextAssembler) buildRuns(ctx context.Context, plans []*docPlan) ([]domain.DocumentRun, error) {
	limit := a.cfg.FetchConcurrency
	if limit <= 0 {
		limit = domain.DefaultFetchConcurrency
	}

	runs := make([]domain.DocumentRun, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, p := range plans {
		g.Go(func() error {
			run, err := a.buildRun(gctx, p)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// buildRun fetches the union span of a document's ranges in one call and keeps
// the segments inside the merged ranges. A failed fetch degrades the run to the
// relevant hits themselves. Only context errors are returned.
func (a *ContextAssembler) buildRun(ctx context.Context, p *docPlan) (domain.DocumentRun, error) {
	run := domain.DocumentRun{DocumentID: p.documentID, BestScore: p.bestScore}

	span := p.ranges[0]
	for _, r := range p.ranges[1:] {
		span = span.Union(r)
	}

	fetched, err := a.backend.FetchSegments(ctx, p.documentID, span)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return run, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return run, err
		}
		pfe := &domain.PartialFetchError{DocumentID: p.documentID, Range: span, Err: err}
		logger.Warn("%v", pfe)
		run.Degraded = true
		fetched = nil
	}

	byIndex := make(map[int]domain.Segment, len(fetched)+len(p.targets))
	for _, seg := range fetched {
		if seg.DocumentID != p.documentID || !inRanges(p.ranges, seg.Index) {
			continue
		}
		byIndex[seg.Index] = seg
	}
	for idx, hit := range p.targets {
		if _, ok := byIndex[idx]; !ok {
			byIndex[idx] = hit.Segment
		}
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		seg := byIndex[idx]
		role := domain.RoleAdjacent
		var score float64
		if h, ok := p.targets[idx]; ok {
			role = domain.RoleTarget
			score = h.CombinedScore
		}
		if seg.Metadata != nil && seg.IsMetadataHolder() {
			m := *seg.Metadata
			run.Metadata = &m
		}
		cs := domain.ContextSegment{Segment: seg, Role: role, Tokens: a.counter.Count(seg.Text), Score: score}
		run.Segments = append(run.Segments, cs)
		run.Tokens += cs.Tokens
	}

	if run.Metadata == nil && a.metadata != nil {
		meta, err := a.metadata.LookupMetadata(ctx, p.documentID)
		switch {
		case err == nil:
			run.Metadata = meta
		case ctx.Err() != nil:
			return run, ctx.Err()
		default:
			logger.Debug("No metadata for %s: %v", p.documentID, err)
		}
	}

	return run, nil
}

func inRanges(ranges []domain.IndexRange, idx int) bool {
	for _, r := range ranges {
		if r.Contains(idx) {
			return true
		}
	}
	return false
}

// fitBudget appends whole runs in order while they fit, skipping runs that do
// not. If no run fits whole, the best run is trimmed to a contiguous span
// around its best target.
func (a *ContextAssembler) fitBudget(window *domain.ContextWindow, runs []domain.DocumentRun, budget int) {
	for _, run := range runs {
		if window.TokenCount+run.Tokens <= budget {
			window.Runs = append(window.Runs, run)
			window.TokenCount += run.Tokens
			continue
		}
		logger.Debug("Dropping %s (%d tokens) over budget", run.DocumentID, run.Tokens)
		window.DroppedDocuments = append(window.DroppedDocuments, run.DocumentID)
	}

	if len(window.Runs) > 0 || len(runs) == 0 {
		return
	}

	trimmed := trimRun(runs[0], budget)
	if len(trimmed.Segments) == 0 {
		logger.Warn("No segment of %s fits a budget of %d tokens", runs[0].DocumentID, budget)
		return
	}
	logger.Debug("Trimmed %s to %d segments to fit budget", trimmed.DocumentID, len(trimmed.Segments))
	window.Runs = []domain.DocumentRun{trimmed}
	window.TokenCount = trimmed.Tokens
	window.DroppedDocuments = window.DroppedDocuments[1:]
}

// trimSpan is a candidate span of run segments, by position.
type trimSpan struct {
	lo, hi int
	score  float64
}

// trimRun shrinks run to one contiguous span that holds at least one target
// and fits budget. Candidate cores are tried best score first: the targets of
// one contiguous block together with what lies between them, then single
// targets. The chosen core grows outward one neighbour at a time, left side
// first, and a side stops at the first neighbour that does not fit or is not
// index-adjacent. The result has no segments when no target fits.
func trimRun(run domain.DocumentRun, budget int) domain.DocumentRun {
	segs := run.Segments
	adjacent := func(i, j int) bool {
		return segs[j].Segment.Index == segs[i].Segment.Index+1
	}

	var cores, singles []trimSpan
	for start := 0; start < len(segs); {
		end := start
		for end+1 < len(segs) && adjacent(end, end+1) {
			end++
		}
		block := trimSpan{lo: -1}
		for i := start; i <= end; i++ {
			if !segs[i].IsTarget() {
				continue
			}
			singles = append(singles, trimSpan{lo: i, hi: i, score: segs[i].Score})
			if block.lo < 0 {
				block.lo = i
			}
			block.hi = i
			block.score = max(block.score, segs[i].Score)
		}
		if block.lo >= 0 && block.hi > block.lo {
			cores = append(cores, block)
		}
		start = end + 1
	}
	byScore := func(spans []trimSpan) {
		sort.SliceStable(spans, func(i, j int) bool { return spans[i].score > spans[j].score })
	}
	byScore(cores)
	byScore(singles)

	out := run
	out.Segments = nil
	out.Tokens = 0

	for _, c := range append(cores, singles...) {
		used := 0
		for i := c.lo; i <= c.hi; i++ {
			used += segs[i].Tokens
		}
		if used > budget {
			continue
		}

		lo, hi := c.lo, c.hi
		growLeft, growRight := true, true
		for growLeft || growRight {
			if growLeft {
				if lo > 0 && adjacent(lo-1, lo) && used+segs[lo-1].Tokens <= budget {
					lo--
					used += segs[lo].Tokens
				} else {
					growLeft = false
				}
			}
			if growRight {
				if hi+1 < len(segs) && adjacent(hi, hi+1) && used+segs[hi+1].Tokens <= budget {
					hi++
					used += segs[hi].Tokens
				} else {
					growRight = false
				}
			}
		}

		out.Segments = append([]domain.ContextSegment(nil), segs[lo:hi+1]...)
		out.Tokens = used
		return out
	}
	return out
}
