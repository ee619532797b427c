// Package tokenizer provides token estimators for context budget enforcement.
package tokenizer

import (
	"unicode/utf8"

	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.TokenCounter = (*CharCounter)(nil)

// RunesPerToken is the conversion factor of the character proxy.
const RunesPerToken = 4

// CharCounter estimates one token per RunesPerToken runes, rounded up.
type CharCounter struct{}

// NewCharCounter creates the character proxy counter.
func NewCharCounter() *CharCounter {
	return &CharCounter{}
}

// Count returns ceil(runes/4).
func (c *CharCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + RunesPerToken - 1) / RunesPerToken
}

// Name identifies the estimator.
func (c *CharCounter) Name() string {
	return "chars/4"
}
