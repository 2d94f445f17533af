// Package domain defines the core business entities for embedsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested content unit with metadata
//   - Chunk: An ordered text fragment within a document
//   - Embedding: A chunk's vector representation with external sync tracking
//   - SyncState: The unsynced/pending/synced/stale export state machine
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
