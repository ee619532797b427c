package driven

// PromptStore supplies the templates for query expansion and answers, letting
// users tune them without rebuilding.
type PromptStore interface {
	// Load returns the template for name. Well-known names always resolve,
	// falling back to the built-in template.
	Load(name string) (string, error)

	// Reload drops cached templates so the next Load reads them again.
	Reload()
}

// Well-known prompt names.
const (
	// PromptQueryExpansion asks for related search terms.
	// The template expects %d (max terms), %s (history block) and %s (query).
	PromptQueryExpansion = "query_expansion"

	// PromptAnswerSystem is the system prompt when document evidence is present.
	// This prompt has no format placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptHistoryOnlySystem is the system prompt when answering from conversation memory alone.
	// This prompt has no format placeholders.
	PromptHistoryOnlySystem = "history_only_system"
)

// PromptStoreAware is implemented by services whose prompts can be customised.
// Without a store they use their built-in prompts.
type PromptStoreAware interface {
	SetPromptStore(store PromptStore)
}
