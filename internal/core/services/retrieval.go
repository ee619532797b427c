package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Answer generation defaults.
const (
	answerMaxTokens   = 1024
	answerTemperature = 0.2
)

// RetrievalService runs the full query path: expansion, hybrid retrieval,
// context assembly and history preparation.
type RetrievalService struct {
	retriever    *Retriever
	expander     *QueryExpander
	assembler    *ContextAssembler
	conversation *ConversationManager
	llmService   driven.LLMService

	expansion domain.ExpansionSettings
	context   domain.ContextSettings
}

// NewRetrievalService creates a retrieval service.
// The llmService parameter is optional; without it expansion is skipped and
// Answer returns ErrLLMUnavailable.
func NewRetrievalService(
	retriever *Retriever,
	expander *QueryExpander,
	assembler *ContextAssembler,
	conversation *ConversationManager,
	llmService driven.LLMService,
	settings domain.AppSettings,
) *RetrievalService {
	return &RetrievalService{
		retriever:    retriever,
		expander:     expander,
		assembler:    assembler,
		conversation: conversation,
		llmService:   llmService,
		expansion:    settings.Expansion,
		context:      settings.Context,
	}
}

// SetPromptStore passes the prompt store to the components that load prompts.
func (s *RetrievalService) SetPromptStore(store driven.PromptStore) {
	if s.expander != nil {
		s.expander.SetPromptStore(store)
	}
	s.conversation.SetPromptStore(store)
}

// Retrieve assembles the context for a query.
func (s *RetrievalService) Retrieve(
	ctx context.Context, req driving.RetrievalRequest,
) (*driving.RetrievalResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	history := s.conversation.Prepare(req.History)
	logger.Debug("History: %d of %d turns kept", len(history), len(req.History))

	effective := query
	if s.shouldExpand(req, query) {
		effective = s.expander.Expand(ctx, query, history)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	retrieval, err := s.retriever.Retrieve(ctx, effective, req.Filters, req.MaxResults)
	if err != nil {
		return nil, err
	}

	window, err := s.assembler.Assemble(ctx, retrieval.Hits, s.context.AdjacentChunks, req.TokenBudget)
	if err != nil {
		return nil, err
	}

	historyOnly := ShouldFallbackToHistoryOnly(window, history)
	if historyOnly {
		logger.Info("No document evidence, falling back to conversation history")
	}

	return &driving.RetrievalResult{
		Query:          query,
		EffectiveQuery: effective,
		Expanded:       effective != query,
		Hits:           retrieval.Hits,
		Window:         window,
		History:        history,
		HistoryOnly:    historyOnly,
		LexicalOnly:    retrieval.LexicalOnly,
	}, nil
}

func (s *RetrievalService) shouldExpand(req driving.RetrievalRequest, query string) bool {
	if s.expander == nil || req.DisableExpansion {
		return false
	}
	if req.ForceExpansion {
		return true
	}
	return s.expansion.Enabled && s.expander.ShouldExpand(query)
}

// Answer retrieves context and generates an answer grounded on it.
func (s *RetrievalService) Answer(
	ctx context.Context, req driving.RetrievalRequest,
) (*driving.AnswerResult, error) {
	res, err := s.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	if res.Window.IsEmpty() && len(res.History) == 0 {
		logger.Info("No evidence and no history, skipping generation")
		return &driving.AnswerResult{NoEvidence: true, Retrieval: res}, nil
	}

	if s.llmService == nil {
		return nil, domain.ErrLLMUnavailable
	}

	logger.Section("Answer Generation")
	messages := s.conversation.BuildMessages(res.Query, res.Window, res.History)
	logger.Debug("Sending %d messages to %s", len(messages), s.llmService.ModelName())

	answer, err := s.llmService.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, domain.ErrGenerationFailed) {
			return nil, fmt.Errorf("answer: %w", err)
		}
		return nil, fmt.Errorf("answer: %w: %w", domain.ErrGenerationFailed, err)
	}

	return &driving.AnswerResult{Answer: strings.TrimSpace(answer), Retrieval: res}, nil
}
