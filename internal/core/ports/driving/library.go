package driving

import (
	"context"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
)

// LibraryService manages the authoritative document/chunk/embedding records
// and the higher-level consistency operations built on them.
type LibraryService interface {
	// CreateDocument stores a new document.
	CreateDocument(ctx context.Context, title, source string, metadata map[string]any) (*domain.Document, error)

	// GetDocument retrieves a live document.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns live documents with pagination.
	ListDocuments(ctx context.Context, offset, limit int) ([]domain.Document, error)

	// AddChunks appends text fragments to a document, indexed after its
	// current highest chunk index.
	AddChunks(ctx context.Context, documentID string, texts []string) ([]domain.Chunk, error)

	// UpdateChunkText replaces a chunk's text, staling its embedding.
	UpdateChunkText(ctx context.Context, chunkID, text string) error

	// ListChunks returns the live chunks of a document in order.
	ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// AttachEmbedding stores a vector for a chunk in the unsynced state.
	AttachEmbedding(ctx context.Context, chunkID string, vector []float32, model string) (*domain.Embedding, error)

	// GetEmbedding retrieves the embedding owned by a chunk.
	GetEmbedding(ctx context.Context, chunkID string) (*domain.Embedding, error)

	// Duplicate copies a document with its live chunks and embeddings into
	// fresh rows. Copied embeddings start unsynced with no external
	// reference, regardless of the source's sync state.
	Duplicate(ctx context.Context, documentID, newTitle string) (*domain.Document, error)

	// BatchSoftDelete logically deletes a set of documents with their
	// descendants. The external index is deliberately left untouched.
	BatchSoftDelete(ctx context.Context, documentIDs []string) (*domain.BatchDeleteReport, error)

	// HardDelete physically removes a document after deleting its exported
	// vectors from the external index.
	HardDelete(ctx context.Context, documentID string) error

	// Dump materialises a document with chunks and per-embedding sync
	// state into a portable form.
	Dump(ctx context.Context, documentID string) (*domain.DocumentDump, error)

	// Statistics summarises one document and its sync progress.
	Statistics(ctx context.Context, documentID string) (*domain.DocumentStatistics, error)

	// SyncSummary reports corpus-wide sync status.
	SyncSummary(ctx context.Context) (*domain.SyncSummary, error)

	// SearchContent searches chunk text and document titles/sources.
	SearchContent(ctx context.Context, query string, limit int) ([]domain.ContentMatch, error)
}
