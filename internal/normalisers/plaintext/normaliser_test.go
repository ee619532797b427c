package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	types := New().SupportedMIMETypes()
	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "text/x-go")
	assert.NotContains(t, types, "application/pdf")
	assert.Equal(t, 5, New().Priority())
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		content   []byte
		wantTitle string
		want      string
	}{
		{"plain text", "file:///notes/meeting_notes.txt", []byte("Line one\nLine two"), "meeting notes", "Line one\nLine two"},
		{"crlf line endings", "file:///a/win-file.txt", []byte("a\r\nb"), "win file", "a\nb"},
		{"byte order mark", "file:///a/bom.txt", []byte("\ufeffhello"), "bom", "hello"},
		{"invalid utf8 dropped", "file:///a/bad.txt", []byte{'o', 'k', 0xff, '!'}, "bad", "ok!"},
		{"unicode kept", "file:///a/intl.txt", []byte("日本語 テキスト"), "intl", "日本語 テキスト"},
		{"empty", "file:///a/empty.txt", []byte{}, "empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &domain.RawDocument{URI: tt.uri, MIMEType: "text/plain", Content: tt.content}

			result, err := New().Normalise(context.Background(), raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, result.Document.Title)
			assert.Equal(t, tt.wantTitle, result.Document.Metadata.Title)
			assert.Equal(t, tt.want, result.Document.Content)
			assert.Equal(t, "text/plain", result.Document.Metadata.ContentType)
		})
	}
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
}
