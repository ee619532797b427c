package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

// Output formats for the context and ask commands.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// retrievalFlags are shared by the context and ask commands.
var retrievalFlags struct {
	output       string
	maxResults   int
	budget       int
	documentIDs  []string
	contentTypes []string
	expand       bool
	noExpand     bool
	historyFile  string
}

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Assemble context for a question",
	Long: `Retrieve the passages most relevant to a question and assemble them into
a token-bounded context window, without calling an LLM.

The query may be expanded with related terms when it is short or vague.
Use --history to pass the conversation so far as a YAML or JSON list of
{role, content} turns.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	addRetrievalFlags(contextCmd)
	rootCmd.AddCommand(contextCmd)
}

func addRetrievalFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&retrievalFlags.output, "output", "o", outputText, "output format: text, json or yaml")
	f.IntVarP(&retrievalFlags.maxResults, "max-results", "n", 0, "maximum hits to keep (0 = from settings)")
	f.IntVar(&retrievalFlags.budget, "budget", 0, "context token budget (0 = from settings)")
	f.StringSliceVar(&retrievalFlags.documentIDs, "doc", nil, "restrict retrieval to these document ids")
	f.StringSliceVar(&retrievalFlags.contentTypes, "content-type", nil, "restrict retrieval to these MIME types")
	f.BoolVar(&retrievalFlags.expand, "expand", false, "always expand the query")
	f.BoolVar(&retrievalFlags.noExpand, "no-expand", false, "never expand the query")
	f.StringVar(&retrievalFlags.historyFile, "history", "", "file holding the conversation so far")
	cmd.MarkFlagsMutuallyExclusive("expand", "no-expand")
}

func runContext(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	req, err := buildRetrievalRequest(args[0])
	if err != nil {
		return err
	}

	res, err := retrievalService.Retrieve(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	out := toContextView(res)
	switch retrievalFlags.output {
	case outputJSON, outputYAML:
		return writeStructured(cmd, out)
	default:
		printContextText(cmd, out)
		return nil
	}
}

func buildRetrievalRequest(query string) (driving.RetrievalRequest, error) {
	switch retrievalFlags.output {
	case outputText, outputJSON, outputYAML:
	default:
		return driving.RetrievalRequest{}, fmt.Errorf("unknown output format %q", retrievalFlags.output)
	}
	if strings.TrimSpace(query) == "" {
		return driving.RetrievalRequest{}, errors.New("query is required")
	}

	history, err := loadHistory(retrievalFlags.historyFile)
	if err != nil {
		return driving.RetrievalRequest{}, err
	}

	return driving.RetrievalRequest{
		Query:   query,
		History: history,
		Filters: domain.SearchFilters{
			DocumentIDs:  retrievalFlags.documentIDs,
			ContentTypes: retrievalFlags.contentTypes,
		},
		MaxResults:       retrievalFlags.maxResults,
		TokenBudget:      retrievalFlags.budget,
		ForceExpansion:   retrievalFlags.expand,
		DisableExpansion: retrievalFlags.noExpand,
	}, nil
}

// loadHistory reads conversation turns from a YAML or JSON file.
func loadHistory(path string) ([]domain.ConversationTurn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var turns []domain.ConversationTurn
	if err := yaml.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	for i := range turns {
		if !turns[i].Role.IsValid() {
			return nil, fmt.Errorf("history turn %d: unknown role %q", i+1, turns[i].Role)
		}
	}
	return turns, nil
}

// contextView is the printable form of a retrieval result.
type contextView struct {
	Query          string    `json:"query" yaml:"query"`
	EffectiveQuery string    `json:"effective_query" yaml:"effective_query"`
	Expanded       bool      `json:"expanded" yaml:"expanded"`
	HistoryOnly    bool      `json:"history_only" yaml:"history_only"`
	LexicalOnly    bool      `json:"lexical_only" yaml:"lexical_only"`
	TokenCount     int       `json:"token_count" yaml:"token_count"`
	TokenBudget    int       `json:"token_budget" yaml:"token_budget"`
	Documents      []runView `json:"documents" yaml:"documents"`
	Dropped        []string  `json:"dropped_documents,omitempty" yaml:"dropped_documents,omitempty"`
	Context        string    `json:"context" yaml:"context"`
	Answer         string    `json:"answer,omitempty" yaml:"answer,omitempty"`
	NoEvidence     bool      `json:"no_evidence,omitempty" yaml:"no_evidence,omitempty"`
}

type runView struct {
	DocumentID string  `json:"document_id" yaml:"document_id"`
	Title      string  `json:"title" yaml:"title"`
	BestScore  float64 `json:"best_score" yaml:"best_score"`
	Segments   []int   `json:"segments" yaml:"segments"`
	Tokens     int     `json:"tokens" yaml:"tokens"`
	Degraded   bool    `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

func toContextView(res *driving.RetrievalResult) contextView {
	out := contextView{Documents: []runView{}}
	if res == nil {
		return out
	}
	out.Query = res.Query
	out.EffectiveQuery = res.EffectiveQuery
	out.Expanded = res.Expanded
	out.HistoryOnly = res.HistoryOnly
	out.LexicalOnly = res.LexicalOnly
	if res.Window == nil {
		return out
	}

	out.Context = res.Window.Render()
	out.TokenCount = res.Window.TokenCount
	out.TokenBudget = res.Window.TokenBudget
	out.Dropped = res.Window.DroppedDocuments
	for i := range res.Window.Runs {
		run := &res.Window.Runs[i]
		out.Documents = append(out.Documents, runView{
			DocumentID: run.DocumentID,
			Title:      run.Label(),
			BestScore:  run.BestScore,
			Segments:   run.Indices(),
			Tokens:     run.Tokens,
			Degraded:   run.Degraded,
		})
	}
	return out
}

func writeStructured(cmd *cobra.Command, v any) error {
	if retrievalFlags.output == outputYAML {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printContextText(cmd *cobra.Command, out contextView) {
	if out.Expanded {
		cmd.Printf("Expanded query: %s\n", out.EffectiveQuery)
	}
	if out.LexicalOnly {
		cmd.Println("Note: embeddings unavailable, keyword matching only.")
	}

	if len(out.Documents) == 0 {
		if out.HistoryOnly {
			cmd.Println("No matching documents. The conversation so far may answer this.")
		} else {
			cmd.Println("No matching documents.")
		}
		return
	}

	cmd.Printf("Context (%d/%d tokens):\n\n", out.TokenCount, out.TokenBudget)
	for i := range out.Documents {
		d := out.Documents[i]
		cmd.Printf("  [%d] %s (%.2f) segments %v\n", i+1, d.Title, d.BestScore, d.Segments)
		if d.Degraded {
			cmd.Println("      adjacent segments unavailable")
		}
	}
	if len(out.Dropped) > 0 {
		cmd.Printf("  Over budget: %s\n", strings.Join(out.Dropped, ", "))
	}
	cmd.Println()
	cmd.Println(out.Context)
}
