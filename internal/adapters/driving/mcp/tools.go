package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

// TurnInput is one prior conversation message supplied by the client.
type TurnInput struct {
	Role    string `json:"role" jsonschema:"who wrote the message: user or assistant"`
	Content string `json:"content" jsonschema:"the message text"`
}

// RetrieveInput is the input schema for the retrieve_context and ask tools.
type RetrieveInput struct {
	Query            string      `json:"query" jsonschema:"the question to gather context for"`
	History          []TurnInput `json:"history,omitempty" jsonschema:"prior conversation, oldest first"`
	DocumentIDs      []string    `json:"document_ids,omitempty" jsonschema:"restrict retrieval to these documents"`
	ContentTypes     []string    `json:"content_types,omitempty" jsonschema:"restrict retrieval to these MIME types"`
	MaxResults       int         `json:"max_results,omitempty" jsonschema:"maximum hits to keep (default from settings)"`
	TokenBudget      int         `json:"token_budget,omitempty" jsonschema:"maximum context tokens (default from settings)"`
	ForceExpansion   bool        `json:"force_expansion,omitempty" jsonschema:"always expand the query with related terms"`
	DisableExpansion bool        `json:"disable_expansion,omitempty" jsonschema:"never expand the query"`
}

// ContextOutput is the output schema for the retrieve_context tool.
type ContextOutput struct {
	Query          string      `json:"query"`
	EffectiveQuery string      `json:"effective_query"`
	Expanded       bool        `json:"expanded"`
	HistoryOnly    bool        `json:"history_only"`
	LexicalOnly    bool        `json:"lexical_only"`
	Context        string      `json:"context"`
	Documents      []RunOutput `json:"documents"`
	Dropped        []string    `json:"dropped_documents,omitempty"`
	TokenCount     int         `json:"token_count"`
	TokenBudget    int         `json:"token_budget"`
}

// RunOutput describes one document's contribution to the context.
type RunOutput struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	BestScore  float64 `json:"best_score"`
	Segments   []int   `json:"segments"`
	Degraded   bool    `json:"degraded,omitempty"`
}

// AnswerOutput is the output schema for the ask tool.
type AnswerOutput struct {
	Answer     string        `json:"answer"`
	NoEvidence bool          `json:"no_evidence"`
	Context    ContextOutput `json:"context"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Assemble the most relevant passages from ingested documents for a question",
	}, s.handleRetrieveContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from ingested documents and the supplied conversation",
	}, s.handleAsk)
}

// handleRetrieveContext handles the retrieve_context tool invocation.
func (s *Server) handleRetrieveContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, ContextOutput, error) {
	req, err := toRequest(input)
	if err != nil {
		return nil, ContextOutput{}, err
	}

	res, err := s.ports.Retrieval.Retrieve(ctx, req)
	if err != nil {
		return nil, ContextOutput{}, err
	}
	return nil, toContextOutput(res), nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	req, err := toRequest(input)
	if err != nil {
		return nil, AnswerOutput{}, err
	}

	res, err := s.ports.Retrieval.Answer(ctx, req)
	if err != nil {
		return nil, AnswerOutput{}, err
	}

	output := AnswerOutput{
		Answer:     res.Answer,
		NoEvidence: res.NoEvidence,
	}
	if res.Retrieval != nil {
		output.Context = toContextOutput(res.Retrieval)
	}
	return nil, output, nil
}

func toRequest(input RetrieveInput) (driving.RetrievalRequest, error) {
	history := make([]domain.ConversationTurn, 0, len(input.History))
	now := time.Now()
	for i, turn := range input.History {
		role := domain.ConversationRole(turn.Role)
		if !role.IsValid() {
			return driving.RetrievalRequest{}, fmt.Errorf("%w: history[%d] has role %q",
				domain.ErrInvalidInput, i, turn.Role)
		}
		history = append(history, domain.ConversationTurn{Role: role, Content: turn.Content, Timestamp: now})
	}

	return driving.RetrievalRequest{
		Query:   input.Query,
		History: history,
		Filters: domain.SearchFilters{
			DocumentIDs:  input.DocumentIDs,
			ContentTypes: input.ContentTypes,
		},
		MaxResults:       input.MaxResults,
		TokenBudget:      input.TokenBudget,
		ForceExpansion:   input.ForceExpansion,
		DisableExpansion: input.DisableExpansion,
	}, nil
}

func toContextOutput(res *driving.RetrievalResult) ContextOutput {
	output := ContextOutput{
		Query:          res.Query,
		EffectiveQuery: res.EffectiveQuery,
		Expanded:       res.Expanded,
		HistoryOnly:    res.HistoryOnly,
		LexicalOnly:    res.LexicalOnly,
		Documents:      []RunOutput{},
	}
	if res.Window == nil {
		return output
	}

	output.Context = res.Window.Render()
	output.Dropped = res.Window.DroppedDocuments
	output.TokenCount = res.Window.TokenCount
	output.TokenBudget = res.Window.TokenBudget
	for i := range res.Window.Runs {
		run := &res.Window.Runs[i]
		output.Documents = append(output.Documents, RunOutput{
			DocumentID: run.DocumentID,
			Title:      run.Label(),
			BestScore:  run.BestScore,
			Segments:   run.Indices(),
			Degraded:   run.Degraded,
		})
	}
	return output
}
