package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, backend or processor type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidConfiguration indicates a configuration value is out of range.
	// It is fatal and rejected before any processing begins.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Provider Errors.

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Query expansion and answer generation are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Retrieval degrades to lexical-only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingComputeFailed indicates the embedding provider returned an error.
	// The cache is never populated on this failure.
	ErrEmbeddingComputeFailed = errors.New("embedding compute failed")

	// ErrGenerationFailed indicates the generative provider returned an error.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Search Errors.

	// ErrSearchBackendUnavailable indicates a vector or lexical query failed.
	// It is propagated to the caller; no results are invented.
	ErrSearchBackendUnavailable = errors.New("search backend unavailable")

	// ErrPartialFetchFailure indicates adjacent segments of one document could not be loaded.
	// It is recovered by degrading that document's run.
	ErrPartialFetchFailure = errors.New("partial fetch failure")
)

// PartialFetchError records a failed adjacent-segment fetch for one document.
// It matches both ErrPartialFetchFailure and the underlying cause.
type PartialFetchError struct {
	DocumentID string
	Range      IndexRange
	Err        error
}

// Error implements error.
func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("%s: document %s range %s: %v", ErrPartialFetchFailure, e.DocumentID, e.Range, e.Err)
}

// Unwrap returns the sentinel and the cause.
func (e *PartialFetchError) Unwrap() []error {
	return []error{ErrPartialFetchFailure, e.Err}
}
