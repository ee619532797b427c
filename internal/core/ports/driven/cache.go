package driven

import "context"

// ComputeFunc produces the embedding for a cache miss.
type ComputeFunc func(ctx context.Context, text string) ([]float32, error)

// EmbeddingCache is a content-addressed cache of embedding vectors.
// Identical text (after whitespace collapsing) shares one entry regardless of source.
type EmbeddingCache interface {
	// GetOrCompute returns the cached vector for text, or calls compute once
	// per key even under concurrent callers. A compute failure is returned
	// wrapped in ErrEmbeddingComputeFailed and nothing is cached.
	GetOrCompute(ctx context.Context, text string, compute ComputeFunc) ([]float32, error)

	// Len returns the number of cached entries.
	Len() int

	// Purge removes every entry.
	Purge()

	// Stats returns counters since construction.
	Stats() CacheStats
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Computes  uint64
	Evictions uint64
}
