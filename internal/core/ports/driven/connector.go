package driven

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// Connector reads raw documents from a local root (a file or a directory).
type Connector interface {
	// Root returns the configured root path.
	Root() string

	// Validate checks the root exists and is readable.
	// Returns nil if ready to read, error describing the problem otherwise.
	Validate(ctx context.Context) error

	// FullSync reads every document under the root.
	// The document channel is closed when the walk ends; at most one error is sent.
	FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Watch emits changes under the root until ctx is cancelled or Close is called.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)

	// Close releases resources.
	Close() error
}

// ConnectorBuilder creates a Connector for a root path.
type ConnectorBuilder func(root string) (Connector, error)
