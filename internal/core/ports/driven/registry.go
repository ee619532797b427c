package driven

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// NormaliserRegistry picks the highest-priority normaliser that accepts a
// document's MIME type.
type NormaliserRegistry interface {
	// Normalise converts raw to a document. Unhandled types match
	// domain.ErrUnsupportedType, which importers treat as a skip.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register adds a normaliser.
	Register(normaliser Normaliser)

	// SupportedMIMETypes lists every type some normaliser accepts.
	SupportedMIMETypes() []string
}
