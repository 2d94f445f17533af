package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
)

// ListOptions bounds a listing query.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return. Zero means the
	// store's default page size.
	Limit int

	// IncludeDeleted includes soft-deleted records in the result.
	IncludeDeleted bool
}

// DocumentStore persists documents and enforces logical-deletion cascades.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// Save stores or updates a document.
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a live document by ID. Soft-deleted documents
	// return domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List returns documents with pagination.
	List(ctx context.Context, opts ListOptions) ([]domain.Document, error)

	// Search returns live documents whose title or source contains the
	// query substring.
	Search(ctx context.Context, query string) ([]domain.Document, error)

	// SoftDelete marks a document and all of its chunks and their
	// embeddings as logically deleted, in one unit of work. It never
	// touches the external index.
	SoftDelete(ctx context.Context, id string) error

	// HardDelete physically removes a document with its chunks and
	// embeddings. Callers must delete the corresponding external vectors
	// first; the store has no view of the external index.
	HardDelete(ctx context.Context, id string) error

	// Count returns the number of live documents.
	Count(ctx context.Context) (int, error)
}

// ChunkStore persists ordered text fragments.
type ChunkStore interface {
	// SaveBatch stores chunks for a document. A duplicate
	// (document_id, index) pair or empty text fails with
	// domain.ErrValidation; saving against a missing or deleted document
	// fails with domain.ErrNotFound.
	SaveBatch(ctx context.Context, chunks []domain.Chunk) error

	// Get retrieves a live chunk by ID.
	Get(ctx context.Context, id string) (*domain.Chunk, error)

	// ListByDocument returns the live chunks of a document ordered by index.
	ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// UpdateText replaces a chunk's text and, in the same unit of work,
	// marks the chunk's embedding stale so sync state and content never
	// observably diverge.
	UpdateText(ctx context.Context, id, text string) error

	// SoftDelete marks a chunk and its embedding as logically deleted.
	SoftDelete(ctx context.Context, id string) error

	// HardDelete physically removes a chunk and its embedding.
	HardDelete(ctx context.Context, id string) error

	// SearchText returns live chunks whose text contains the query
	// substring, up to limit.
	SearchText(ctx context.Context, query string, limit int) ([]domain.Chunk, error)

	// Count returns the number of live chunks.
	Count(ctx context.Context) (int, error)
}

// ExportScope restricts an export claim to one document, or to the whole
// corpus when DocumentID is empty.
type ExportScope struct {
	DocumentID string
}

// EmbeddingStore persists embeddings and owns the sync state transitions.
type EmbeddingStore interface {
	// Save stores a new embedding for a chunk in the unsynced state.
	// An empty vector fails with domain.ErrValidation; a missing or
	// deleted owning chunk fails with domain.ErrNotFound; a second
	// embedding for the same chunk fails with domain.ErrAlreadyExists.
	Save(ctx context.Context, emb *domain.Embedding) error

	// Get retrieves an embedding by ID.
	Get(ctx context.Context, id string) (*domain.Embedding, error)

	// GetByChunk retrieves the embedding owned by a chunk.
	GetByChunk(ctx context.Context, chunkID string) (*domain.Embedding, error)

	// ListByDocument returns all embeddings for a document's chunks.
	ListByDocument(ctx context.Context, documentID string) ([]domain.Embedding, error)

	// ClaimForExport atomically transitions up to limit unsynced/stale
	// embeddings (oldest created first) to pending and returns them.
	// Pending leases older than leaseTTL are considered expired and may be
	// re-claimed. A scope naming an unknown document fails with
	// domain.ErrNotFound; an empty result is not an error. Two concurrent
	// claims never return the same embedding.
	ClaimForExport(ctx context.Context, scope ExportScope, limit int, leaseTTL time.Duration) ([]domain.Embedding, error)

	// MarkSynced commits a successful export: pending -> synced, recording
	// the external reference and export timestamp. An embedding no longer
	// pending fails with domain.ErrConflict.
	MarkSynced(ctx context.Context, id, vectorRef string, at time.Time) error

	// Release reverts a pending lease after a failed or abandoned export:
	// pending -> stale when the embedding has a VectorRef, pending ->
	// unsynced otherwise. Releasing a non-pending embedding is a no-op.
	Release(ctx context.Context, ids []string) error

	// ClearVectorRef clears the external reference after an index-side
	// delete and returns the embedding to unsynced.
	ClearVectorRef(ctx context.Context, vectorRefs []string) error

	// CountByState returns the number of embeddings per sync state.
	CountByState(ctx context.Context) (map[domain.SyncState]int, error)
}
