// Package normalise cleans extracted document text before chunking.
package normalise

import (
	"context"
	"strings"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.PostProcessor = (*Processor)(nil)

var replacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\uFEFF", "",
	"\x00", "",
)

// Processor normalises line endings and strips byte order marks and NUL bytes.
// It rewrites doc.Content in place and passes segments through untouched.
type Processor struct{}

// New creates a normalise processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "normalise"
}

// Process rewrites the document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, segments []domain.Segment) ([]domain.Segment, error) {
	content := replacer.Replace(doc.Content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	doc.Content = strings.TrimSpace(strings.Join(lines, "\n"))

	return segments, nil
}
