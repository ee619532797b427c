// Package domain defines the core entities for sercha-context.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Segment: an ordered, embeddable slice of a source document
//   - ScoredHit: a query-scoped retrieval result with sub-scores
//   - ContextWindow: token-bounded evidence assembled for one query
//   - ConversationTurn: caller-owned chat history
//   - AppSettings: validated configuration built once at startup
//   - RawDocument: file bytes read for import, before normalisation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
