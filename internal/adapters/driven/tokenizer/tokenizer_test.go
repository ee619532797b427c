package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

func TestCharCounter_Count(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty", "", 0},
		{"one rune", "a", 1},
		{"exactly four", "abcd", 1},
		{"five rounds up", "abcde", 2},
		{"multibyte counts runes", "ääää", 1},
		{"long", strings.Repeat("x", 4000), 1000},
	}

	c := NewCharCounter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Count(tt.text))
		})
	}
	assert.Equal(t, "chars/4", c.Name())
}

func TestNew_Chars(t *testing.T) {
	c := New(domain.TokenCounterChars)
	_, ok := c.(*CharCounter)
	assert.True(t, ok)
}

func TestTiktokenCounter(t *testing.T) {
	counter, err := NewTiktoken(DefaultEncoding)
	if err != nil {
		t.Skipf("encoding not available offline: %v", err)
	}

	assert.Equal(t, 0, counter.Count(""))
	n := counter.Count("hello world")
	require.Positive(t, n)
	assert.LessOrEqual(t, n, 4)
	assert.Equal(t, "tiktoken/cl100k_base", counter.Name())
}

func TestNew_TiktokenFallsBack(t *testing.T) {
	c := New(domain.TokenCounterTiktoken)
	require.NotNil(t, c)
	assert.Positive(t, c.Count("some text"))
}
