package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts readable text from an HTML document.
// The title comes from the <title> tag, else the file name.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	rawContent := string(raw.Content)
	doc := normalisers.NewDocument(raw, extractHTMLTitle(rawContent), stripHTML(rawContent))
	return &driven.NormaliseResult{Document: doc}, nil
}

var (
	titleTag     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedTags  = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg|template)\b[^>]*>.*?</(script|style|noscript|head|svg|template)>`)
	comments     = regexp.MustCompile(`(?s)<!--.*?-->`)
	paragraphTag = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|blockquote|pre|table|section|article|ul|ol|header|footer|main|nav)\b[^>]*>`)
	lineTag      = regexp.MustCompile(`(?i)<(br|hr)\s*/?>|<(li|tr)\b[^>]*>`)
	cellTag      = regexp.MustCompile(`(?i)</t[dh]>`)
	anyTag       = regexp.MustCompile(`<[^>]+>`)
	spaceRuns    = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// extractHTMLTitle returns the decoded <title> text, or "".
func extractHTMLTitle(content string) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(matches[1], "")))
}

// stripHTML removes markup and returns the visible text.
// Block elements become paragraph breaks, list items and rows become line breaks.
func stripHTML(content string) string {
	content = droppedTags.ReplaceAllString(content, "")
	content = comments.ReplaceAllString(content, "")
	content = paragraphTag.ReplaceAllString(content, "\n\n")
	content = lineTag.ReplaceAllString(content, "\n")
	content = cellTag.ReplaceAllString(content, " ")
	content = anyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = spaceRuns.ReplaceAllString(content, " ")

	var out []string
	blank := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
