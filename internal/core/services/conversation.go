package services

import (
	"strings"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

// Ensure ConversationManager accepts custom prompts.
var _ driven.PromptStoreAware = (*ConversationManager)(nil)

// defaultAnswerSystemPrompt is used when document evidence is present.
const defaultAnswerSystemPrompt = `You answer questions using the provided document excerpts.
The excerpts are your primary evidence. Use the conversation only to understand what the user is referring to.
If the excerpts do not contain the answer, say so plainly instead of guessing.
Cite documents by their bracketed number, for example [1].`

// defaultHistoryOnlySystemPrompt is used when no document evidence was found
// but the conversation may already contain the answer.
const defaultHistoryOnlySystemPrompt = `No document excerpts matched this question.
Answer only from what has already been said in this conversation.
If the conversation does not contain the answer, say that you could not find it in the documents.`

// ConversationManager trims conversation history and builds the answer prompt.
type ConversationManager struct {
	maxTurns    int
	promptStore driven.PromptStore
}

// NewConversationManager creates a manager keeping at most maxTurns turns.
// A non-positive value uses the default.
func NewConversationManager(cfg domain.ConversationSettings) *ConversationManager {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMaxHistoryTurns
	}
	return &ConversationManager{maxTurns: maxTurns}
}

// SetPromptStore sets the prompt store for loading the system prompts.
func (m *ConversationManager) SetPromptStore(store driven.PromptStore) {
	m.promptStore = store
}

// Prepare returns the most recent turns in their original order, oldest dropped
// first. Turns with an unknown role or blank content are skipped. A nil history
// yields an empty, non-nil slice.
func (m *ConversationManager) Prepare(history []domain.ConversationTurn) []domain.ConversationTurn {
	valid := make([]domain.ConversationTurn, 0, len(history))
	for _, t := range history {
		if !t.Role.IsValid() || strings.TrimSpace(t.Content) == "" {
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) > m.maxTurns {
		valid = valid[len(valid)-m.maxTurns:]
	}
	out := make([]domain.ConversationTurn, len(valid))
	copy(out, valid)
	return out
}

// ShouldFallbackToHistoryOnly reports whether the answer must come from the
// conversation alone: no document evidence, but some history.
func ShouldFallbackToHistoryOnly(window *domain.ContextWindow, trimmedHistory []domain.ConversationTurn) bool {
	return window.IsEmpty() && len(trimmedHistory) > 0
}

// BuildMessages renders the chat prompt for answer generation: a system prompt,
// the history as disambiguating context, then the question with the document
// excerpts as primary evidence.
func (m *ConversationManager) BuildMessages(
	query string, window *domain.ContextWindow, trimmedHistory []domain.ConversationTurn,
) []driven.ChatMessage {
	historyOnly := ShouldFallbackToHistoryOnly(window, trimmedHistory)

	system := loadPrompt(m.promptStore, driven.PromptAnswerSystem, defaultAnswerSystemPrompt)
	if historyOnly {
		system = loadPrompt(m.promptStore, driven.PromptHistoryOnlySystem, defaultHistoryOnlySystemPrompt)
	}

	messages := make([]driven.ChatMessage, 0, len(trimmedHistory)+2)
	messages = append(messages, driven.ChatMessage{Role: driven.ChatRoleSystem, Content: system})
	for _, t := range trimmedHistory {
		messages = append(messages, driven.ChatMessage{Role: chatRole(t.Role), Content: t.Content})
	}

	var user strings.Builder
	if !historyOnly && !window.IsEmpty() {
		user.WriteString("Document excerpts:\n\n")
		user.WriteString(window.Render())
		user.WriteString("\n\nQuestion: ")
	}
	user.WriteString(query)
	messages = append(messages, driven.ChatMessage{Role: driven.ChatRoleUser, Content: user.String()})

	return messages
}

func chatRole(r domain.ConversationRole) string {
	if r == domain.ConversationRoleAssistant {
		return driven.ChatRoleAssistant
	}
	return driven.ChatRoleUser
}
