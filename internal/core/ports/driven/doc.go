// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SearchBackend: vector + lexical queries and bulk segment fetch
//   - SegmentStore: segment persistence at ingestion time
//   - EmbeddingCache: content-addressed embedding reuse
//   - TokenCounter: token estimation for budget enforcement
//   - ConfigStore: application configuration
//   - Connector, NormaliserRegistry: file import
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: without it, retrieval is lexical-only.
//   - LLMService: without it, query expansion is skipped and answers are unavailable.
//   - MetadataLookup: without it, run metadata is only resolved when segment 0 is in the fetched span.
//   - PromptStore: without it, built-in prompt templates are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
