package chunker

import (
	"fmt"
	"iter"
	"unicode"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// DefaultTolerance is the fraction of the target size searched backwards for a boundary.
const DefaultTolerance = 0.2

// Piece is one emitted segment with its overlap prefix length.
type Piece struct {
	// Text is the segment content, overlap prefix included.
	Text string

	// Overlap is the number of leading runes repeated from the previous piece.
	Overlap int
}

// Interior returns Text without the overlap prefix.
func (p Piece) Interior() string {
	r := []rune(p.Text)
	return string(r[p.Overlap:])
}

// Config holds validated split parameters. Sizes are in runes.
type Config struct {
	TargetSize int
	Overlap    int
	Tolerance  float64
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.TargetSize <= 0 {
		return fmt.Errorf("%w: target size must be positive, got %d", domain.ErrInvalidConfiguration, c.TargetSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetSize {
		return fmt.Errorf("%w: overlap must be in [0,%d), got %d",
			domain.ErrInvalidConfiguration, c.TargetSize, c.Overlap)
	}
	if c.Tolerance < 0 || c.Tolerance >= 1 {
		return fmt.Errorf("%w: tolerance must be in [0,1), got %g", domain.ErrInvalidConfiguration, c.Tolerance)
	}
	return nil
}

// Split returns a lazy sequence of overlapping segments of text.
// Every segment is at most targetSize runes. Each segment after the first
// starts with the last overlap runes of the previous segment's source span.
// The sequence may be ranged over any number of times.
func Split(text string, targetSize, overlap int) (iter.Seq[string], error) {
	cfg := Config{TargetSize: targetSize, Overlap: overlap, Tolerance: DefaultTolerance}
	pieces, err := cfg.Pieces(text)
	if err != nil {
		return nil, err
	}
	return func(yield func(string) bool) {
		for p := range pieces {
			if !yield(p.Text) {
				return
			}
		}
	}, nil
}

// Interiors splits text and returns each segment without its overlap prefix.
// Concatenating the result reproduces text exactly.
func Interiors(text string, targetSize, overlap int) ([]string, error) {
	cfg := Config{TargetSize: targetSize, Overlap: overlap, Tolerance: DefaultTolerance}
	pieces, err := cfg.Pieces(text)
	if err != nil {
		return nil, err
	}
	var out []string
	for p := range pieces {
		out = append(out, p.Interior())
	}
	return out, nil
}

// Pieces returns the lazy piece sequence for text under c.
func (c Config) Pieces(text string) (iter.Seq[Piece], error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return func(yield func(Piece) bool) {
		runes := []rune(text)
		n := len(runes)
		window := int(c.Tolerance * float64(c.TargetSize))
		if window < 1 {
			window = 1
		}

		prevStart, start := 0, 0
		for start < n {
			prefix := 0
			if start > 0 {
				prefix = min(c.Overlap, start-prevStart)
			}
			span := c.TargetSize - prefix

			end := n
			if n-start > span {
				end = cutPoint(runes, start, start+span, window)
			}

			p := Piece{Text: string(runes[start-prefix : end]), Overlap: prefix}
			if !yield(p) {
				return
			}
			prevStart, start = start, end
		}
	}, nil
}

// cutPoint picks where a span starting at start should end, at or before hardEnd.
// It scans back at most window runes, preferring a paragraph break, then a
// sentence end, then a line break, then any whitespace.
func cutPoint(runes []rune, start, hardEnd, window int) int {
	lo := max(start+1, hardEnd-window)

	matchers := []func(c int) bool{
		func(c int) bool { return c >= 2 && runes[c-1] == '\n' && runes[c-2] == '\n' },
		func(c int) bool { return c >= 2 && isSentenceEnd(runes[c-2]) && unicode.IsSpace(runes[c-1]) },
		func(c int) bool { return runes[c-1] == '\n' },
		func(c int) bool { return unicode.IsSpace(runes[c-1]) },
	}
	for _, match := range matchers {
		for c := hardEnd; c >= lo; c-- {
			if match(c) {
				return c
			}
		}
	}
	return hardEnd
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	default:
		return false
	}
}
