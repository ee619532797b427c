package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// Ensure QueryExpander accepts custom prompts.
var _ driven.PromptStoreAware = (*QueryExpander)(nil)

// expansionHistoryTurns is how many recent turns inform the expansion prompt.
const expansionHistoryTurns = 4

// defaultQueryExpansionPrompt is the fallback prompt when no PromptStore is configured.
const defaultQueryExpansionPrompt = `You improve search queries for a document search engine.
Suggest between 1 and %d additional search terms that are closely related to the query.
Preserve the original intent. Do not repeat words already in the query.
If recent conversation is shown, use its topic to disambiguate the query.
Return ONLY the terms, comma-separated, nothing else.

Recent conversation:
%s

Query: %s
Terms:`

// QueryExpander decides whether a query is under-specified and appends
// generated related terms to it.
type QueryExpander struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	cfg         domain.ExpansionSettings
}

// NewQueryExpander creates a query expander.
// The llm parameter is optional; without it Expand returns the query unchanged.
func NewQueryExpander(llm driven.LLMService, cfg domain.ExpansionSettings) *QueryExpander {
	return &QueryExpander{llm: llm, cfg: cfg}
}

// SetPromptStore sets the prompt store for loading the expansion prompt.
func (e *QueryExpander) SetPromptStore(store driven.PromptStore) {
	e.promptStore = store
}

// ShouldExpand applies the heuristic with the expander's settings.
func (e *QueryExpander) ShouldExpand(query string) bool {
	return ShouldExpand(query, e.cfg)
}

// ShouldExpand reports whether query looks under-specified: shorter than
// MaxLength runes, at most MaxWords words, or containing a vague phrase.
// Blank queries are never expanded.
func ShouldExpand(query string, cfg domain.ExpansionSettings) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	if utf8.RuneCountInString(query) < cfg.MaxLength {
		return true
	}
	if len(strings.Fields(query)) <= cfg.MaxWords {
		return true
	}
	return containsVaguePhrase(query, cfg.VaguePhrases)
}

// containsVaguePhrase matches phrases case-insensitively on word boundaries,
// so "infos" does not match "infoscreen".
func containsVaguePhrase(query string, phrases []string) bool {
	q := strings.ToLower(strings.Join(strings.Fields(query), " "))
	for _, p := range phrases {
		phrase := strings.ToLower(strings.Join(strings.Fields(p), " "))
		if phrase == "" {
			continue
		}
		for from := 0; from < len(q); {
			i := strings.Index(q[from:], phrase)
			if i < 0 {
				break
			}
			start, end := from+i, from+i+len(phrase)
			if isWordBoundary(q, start, end) {
				return true
			}
			_, size := utf8.DecodeRuneInString(q[start:])
			from = start + size
		}
	}
	return false
}

func isWordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Expand returns the query followed by up to MaxTerms generated related terms.
// The original query is always kept verbatim. Any generation failure is
// logged and the original query is returned.
func (e *QueryExpander) Expand(ctx context.Context, query string, history []domain.ConversationTurn) string {
	if e.llm == nil {
		return query
	}

	logger.Section("Query Expansion")
	maxTerms := e.cfg.MaxTerms
	if maxTerms <= 0 {
		maxTerms = domain.DefaultExpansionMaxTerms
	}

	template := loadPrompt(e.promptStore, driven.PromptQueryExpansion, defaultQueryExpansionPrompt)
	prompt := fmt.Sprintf(template, maxTerms, formatRecentHistory(history, expansionHistoryTurns), query)

	out, err := e.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   64,
		Temperature: 0.2,
		StopWords:   []string{"\n\n"},
	})
	if err != nil {
		logger.Warn("Query expansion failed, using original query: %v", err)
		return query
	}

	terms := parseExpansionTerms(out, query, maxTerms)
	if len(terms) == 0 {
		logger.Debug("Expansion produced no new terms")
		return query
	}

	expanded := query + " " + strings.Join(terms, " ")
	logger.Debug("Expanded query: %q", expanded)
	return expanded
}

// parseExpansionTerms splits model output into terms, dropping list markers,
// duplicates and terms whose words all appear in the query.
func parseExpansionTerms(output, query string, maxTerms int) []string {
	queryWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryWords[strings.TrimFunc(w, unicode.IsPunct)] = true
	}

	fields := strings.FieldsFunc(output, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})

	seen := make(map[string]bool)
	var terms []string
	for _, f := range fields {
		term := cleanTerm(f)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if seen[key] || allWordsIn(key, queryWords) {
			continue
		}
		seen[key] = true
		terms = append(terms, term)
		if len(terms) == maxTerms {
			break
		}
	}
	return terms
}

func cleanTerm(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "-*• ")
	// numbered list marker such as "1." or "2)"
	if i := strings.IndexAny(s, ".)"); i > 0 && i <= 3 && strings.Trim(s[:i], "0123456789") == "" {
		s = s[i+1:]
	}
	s = strings.Trim(s, "\"'`“”‘’ ")
	if strings.HasPrefix(strings.ToLower(s), "terms:") {
		s = strings.TrimSpace(s[len("terms:"):])
	}
	return strings.Join(strings.Fields(s), " ")
}

func allWordsIn(term string, words map[string]bool) bool {
	for _, w := range strings.Fields(term) {
		if !words[strings.TrimFunc(w, unicode.IsPunct)] {
			return false
		}
	}
	return true
}

// formatRecentHistory renders the last n valid turns, oldest first.
func formatRecentHistory(history []domain.ConversationTurn, n int) string {
	var lines []string
	for i := len(history) - 1; i >= 0 && len(lines) < n; i-- {
		t := history[i]
		if !t.Role.IsValid() || strings.TrimSpace(t.Content) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, strings.TrimSpace(t.Content)))
	}
	if len(lines) == 0 {
		return "(none)"
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func loadPrompt(store driven.PromptStore, name, fallback string) string {
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}
