// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService turns segment and query text into vectors. It is optional:
// without one, ingest stores no vectors and retrieval is lexical-only.
//
// Query-time callers go through EmbeddingCache; ingest calls EmbedBatch directly.
// Adapters exist for OpenAI, Ollama and Gemini.
type EmbeddingService interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector size. Stored segment vectors must match it.
	Dimensions() int

	// ModelName identifies the model, and keys cached query vectors.
	ModelName() string

	// Ping makes a cheap request to confirm the provider is reachable.
	// Startup uses it to choose between hybrid and lexical-only retrieval.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
