package domain

import "time"

// ConversationRole identifies who produced a conversation turn.
type ConversationRole string

// Available conversation roles.
const (
	ConversationRoleUser      ConversationRole = "user"
	ConversationRoleAssistant ConversationRole = "assistant"
)

// IsValid returns true if the role is recognised.
func (r ConversationRole) IsValid() bool {
	switch r {
	case ConversationRoleUser, ConversationRoleAssistant:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r ConversationRole) String() string {
	return string(r)
}

// ConversationTurn is one message of caller-owned chat history.
// History is passed in per request and never persisted by the core.
type ConversationTurn struct {
	Role      ConversationRole `json:"role" yaml:"role"`
	Content   string           `json:"content" yaml:"content"`
	Timestamp time.Time        `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// NoEvidenceReply is the reply given when neither documents nor history support an answer.
const NoEvidenceReply = "I couldn't find anything about that in your documents."
