package normalisers

import (
	"path"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// NewDocument builds a document from a raw file and its extracted text.
// An empty title falls back to TitleFromURI. The ID is left for the caller.
func NewDocument(raw *domain.RawDocument, title, content string) domain.Document {
	if title == "" {
		title = TitleFromURI(raw.URI)
	}
	return domain.Document{
		Title:   title,
		Content: content,
		Metadata: domain.DocumentMetadata{
			Filename:       path.Base(uriPath(raw.URI)),
			Title:          title,
			ContentType:    raw.MIMEType,
			Size:           raw.Size,
			StorageLocator: raw.URI,
		},
		CreatedAt: time.Now(),
	}
}

// TitleFromURI derives a human-readable title from the file name:
// the extension is dropped and underscores and dashes become spaces.
func TitleFromURI(uri string) string {
	filename := path.Base(uriPath(uri))
	if ext := path.Ext(filename); ext != "" && ext != filename {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

func uriPath(uri string) string {
	return strings.ReplaceAll(strings.TrimPrefix(uri, "file://"), "\\", "/")
}
