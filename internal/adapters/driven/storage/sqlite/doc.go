// Package sqlite provides a unified SQLite-based implementation of the
// record store port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. It implements multiple
// store interfaces through a single database connection:
//
//   - DocumentStore: Document persistence and logical-deletion cascades
//   - ChunkStore: Chunk persistence and ordering invariants
//   - EmbeddingStore: Embedding persistence and the sync state machine
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files.
//
// # Cascades
//
// Logical deletion cascades (document -> chunks -> embeddings) are performed
// explicitly by this adapter inside a single transaction, not by foreign-key
// actions, so cascade behaviour stays visible and independently testable.
//
// # Data Location
//
// By default, the database is stored at ~/.embedsync/data/records.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode; the pending-lease claim is a single atomic
// UPDATE so concurrent exporters never claim the same embedding.
package sqlite
