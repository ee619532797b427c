package driven

// TokenCounter estimates how many model tokens a piece of text costs.
// Implementations must be safe for concurrent use.
type TokenCounter interface {
	// Count returns the token estimate for text.
	Count(text string) int

	// Name identifies the estimator in logs.
	Name() string
}
