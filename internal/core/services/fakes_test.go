package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

// --- Fake implementations ---

// fakeBackend implements driven.SearchBackend over an in-memory segment table.
type fakeBackend struct {
	mu sync.Mutex

	segments    map[string][]domain.Segment
	vectorHits  []driven.SegmentHit
	lexicalHits []driven.SegmentHit

	vectorErr  error
	lexicalErr error
	fetchErr   map[string]error

	fetchCalls   map[string]int
	fetchRanges  map[string][]domain.IndexRange
	vectorCalls  int
	lexicalCalls int
	lastDepth    int
	lastLexical  string
	blockFetch   chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		segments:    make(map[string][]domain.Segment),
		fetchErr:    make(map[string]error),
		fetchCalls:  make(map[string]int),
		fetchRanges: make(map[string][]domain.IndexRange),
	}
}

// addDocument stores n segments whose text is "<doc>-<index>".
func (f *fakeBackend) addDocument(docID string, n int) []domain.Segment {
	segs := make([]domain.Segment, n)
	for i := range segs {
		segs[i] = domain.Segment{
			ID:         fmt.Sprintf("%s-%d", docID, i),
			DocumentID: docID,
			Index:      i,
			Text:       fmt.Sprintf("%s-%d", docID, i),
		}
	}
	if n > 0 {
		segs[0].Metadata = &domain.DocumentMetadata{Title: strings.ToUpper(docID)}
	}
	f.segments[docID] = segs
	return segs
}

func (f *fakeBackend) VectorQuery(_ context.Context, _ []float32, _ domain.SearchFilters, k int) ([]driven.SegmentHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorCalls++
	f.lastDepth = k
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return limitHits(f.vectorHits, k), nil
}

func (f *fakeBackend) LexicalQuery(_ context.Context, text string, _ domain.SearchFilters, k int) ([]driven.SegmentHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lexicalCalls++
	f.lastLexical = text
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return limitHits(f.lexicalHits, k), nil
}

func (f *fakeBackend) FetchSegments(ctx context.Context, docID string, r domain.IndexRange) ([]domain.Segment, error) {
	if f.blockFetch != nil {
		select {
		case <-f.blockFetch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls[docID]++
	f.fetchRanges[docID] = append(f.fetchRanges[docID], r)
	if err := f.fetchErr[docID]; err != nil {
		return nil, err
	}
	var out []domain.Segment
	for _, s := range f.segments[docID] {
		if r.Contains(s.Index) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeBackend) DeleteDocument(_ context.Context, docID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.segments[docID])
	delete(f.segments, docID)
	return n, nil
}

func limitHits(hits []driven.SegmentHit, k int) []driven.SegmentHit {
	if k < len(hits) {
		return hits[:k]
	}
	return hits
}

// fakeSegmentStore implements driven.SegmentStore and driven.MetadataLookup.
type fakeSegmentStore struct {
	mu       sync.Mutex
	docs     map[string][]domain.Segment
	replaced int
	err      error
}

func newFakeSegmentStore() *fakeSegmentStore {
	return &fakeSegmentStore{docs: make(map[string][]domain.Segment)}
}

func (s *fakeSegmentStore) ReplaceDocument(_ context.Context, docID string, segs []domain.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.replaced++
	s.docs[docID] = append([]domain.Segment(nil), segs...)
	return nil
}

func (s *fakeSegmentStore) ListDocuments(_ context.Context) ([]domain.DocumentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DocumentSummary, 0, len(s.docs))
	for id, segs := range s.docs {
		sum := domain.DocumentSummary{DocumentID: id, SegmentCount: len(segs)}
		for _, seg := range segs {
			if seg.Metadata != nil {
				sum.Metadata = *seg.Metadata
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

func (s *fakeSegmentStore) SetMetadata(_ context.Context, docID string, index int, meta domain.DocumentMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	segs, ok := s.docs[docID]
	if !ok || index >= len(segs) {
		return domain.ErrNotFound
	}
	for i := range segs {
		segs[i].Metadata = nil
	}
	m := meta
	segs[index].Metadata = &m
	return nil
}

func (s *fakeSegmentStore) FindMetadata(_ context.Context, docID string) ([]domain.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Segment
	for _, seg := range s.docs[docID] {
		if seg.Metadata != nil {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (s *fakeSegmentStore) LookupMetadata(ctx context.Context, docID string) (*domain.DocumentMetadata, error) {
	segs, err := s.FindMetadata(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, domain.ErrNotFound
	}
	return segs[0].Metadata, nil
}

func (s *fakeSegmentStore) Close() error {
	return nil
}

// fakeEmbedder implements driven.EmbeddingService.
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	calls  int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.vector != nil {
		return e.vector, nil
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int              { return 2 }
func (e *fakeEmbedder) ModelName() string            { return "fake-embed" }
func (e *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (e *fakeEmbedder) Close() error                 { return nil }

// fakeLLM implements driven.LLMService and records what it was asked.
type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error

	prompts  []string
	messages [][]driven.ChatMessage
}

func (l *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	return l.response, l.err
}

func (l *fakeLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, messages)
	return l.response, l.err
}

func (l *fakeLLM) ModelName() string            { return "fake-llm" }
func (l *fakeLLM) Ping(_ context.Context) error { return nil }
func (l *fakeLLM) Close() error                 { return nil }

func (l *fakeLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts) + len(l.messages)
}

// fakePromptStore implements driven.PromptStore from a map.
type fakePromptStore struct {
	prompts map[string]string
}

func (p *fakePromptStore) Load(name string) (string, error) {
	if s, ok := p.prompts[name]; ok {
		return s, nil
	}
	return "", domain.ErrNotFound
}

func (p *fakePromptStore) Reload() {}

// runeCounter counts one token per rune, which keeps budget arithmetic obvious.
type runeCounter struct{}

func (runeCounter) Count(text string) int { return utf8.RuneCountInString(text) }
func (runeCounter) Name() string          { return "runes" }

// hit builds a relevant scored hit for a stored segment.
func hit(seg domain.Segment, score float64) domain.ScoredHit {
	return domain.ScoredHit{Segment: seg, CombinedScore: score, Relevant: true}
}
