package driving

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// RetrievalService assembles answer context for a query.
type RetrievalService interface {
	// Retrieve runs expansion, hybrid retrieval, context assembly and history
	// preparation. An empty window is a valid result, not an error.
	Retrieve(ctx context.Context, req RetrievalRequest) (*RetrievalResult, error)

	// Answer retrieves context and generates an answer from it.
	// With neither document evidence nor history it returns NoEvidence without calling the LLM.
	Answer(ctx context.Context, req RetrievalRequest) (*AnswerResult, error)
}

// RetrievalRequest is a single query with its caller-owned history.
type RetrievalRequest struct {
	// Query is the user's question.
	Query string

	// History is the conversation so far, oldest first.
	History []domain.ConversationTurn

	// Filters narrow the candidate segments.
	Filters domain.SearchFilters

	// MaxResults overrides retrieval.max_results when positive.
	MaxResults int

	// TokenBudget overrides context.token_budget when positive.
	TokenBudget int

	// ForceExpansion expands the query even when the heuristic would not.
	ForceExpansion bool

	// DisableExpansion skips expansion entirely.
	DisableExpansion bool
}

// RetrievalResult is everything the generation step needs for one query.
type RetrievalResult struct {
	// Query is the original query.
	Query string

	// EffectiveQuery is the query actually sent to the backend.
	EffectiveQuery string

	// Expanded is true when EffectiveQuery differs from Query.
	Expanded bool

	// Hits are the diversified hits, including those below the relevance threshold.
	Hits []domain.ScoredHit

	// Window is the assembled document evidence.
	Window *domain.ContextWindow

	// History is the trimmed history.
	History []domain.ConversationTurn

	// HistoryOnly signals the answer step to rely on conversation memory alone.
	HistoryOnly bool

	// LexicalOnly is true when no query vector could be obtained.
	LexicalOnly bool
}

// AnswerResult is a generated answer with the context it was grounded on.
type AnswerResult struct {
	// Answer is the generated text. Empty when NoEvidence is set.
	Answer string

	// NoEvidence is set when neither documents nor history could support an answer.
	NoEvidence bool

	// Retrieval is the context the answer was generated from.
	Retrieval *RetrievalResult
}
