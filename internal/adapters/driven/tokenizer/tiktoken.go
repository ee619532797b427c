package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// Verify interface compliance.
var _ driven.TokenCounter = (*TiktokenCounter)(nil)

// DefaultEncoding is the BPE encoding used by current OpenAI chat models.
const DefaultEncoding = "cl100k_base"

// TiktokenCounter counts tokens exactly with a BPE encoding.
type TiktokenCounter struct {
	mu       sync.Mutex
	enc      *tiktoken.Tiktoken
	encoding string
}

// NewTiktoken loads the named encoding.
// The encoding data is fetched and cached by tiktoken-go on first use.
func NewTiktoken(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc, encoding: encoding}, nil
}

// Count returns the exact token count.
func (t *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// Name identifies the estimator.
func (t *TiktokenCounter) Name() string {
	return "tiktoken/" + t.encoding
}

// New returns the counter for kind. If the tiktoken encoding cannot be loaded
// the character proxy is returned and a warning is logged.
func New(kind domain.TokenCounterKind) driven.TokenCounter {
	if kind == domain.TokenCounterTiktoken {
		counter, err := NewTiktoken(DefaultEncoding)
		if err == nil {
			return counter
		}
		logger.Warn("tiktoken unavailable, falling back to chars/4: %v", err)
	}
	return NewCharCounter()
}
