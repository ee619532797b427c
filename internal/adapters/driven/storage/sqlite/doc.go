// Package sqlite provides the persistent segment index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. A single Store implements:
//
//   - SearchBackend: vector and keyword queries, segment fetch, deletion
//   - SegmentStore: document replacement and metadata maintenance
//   - MetadataLookup: metadata resolution from the designated segment
//
// Vector queries scan stored embeddings and keep the best k by cosine similarity.
// Keyword queries use an FTS5 table kept in sync by triggers; BM25 ranks are
// mapped onto [0,1) as s/(1+s).
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files
// and records its own version in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-context/data/segments.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
