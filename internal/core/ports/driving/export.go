package driving

import (
	"context"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
)

// ExportService drives the embedding export pipeline: selecting eligible
// embeddings, upserting them into the external vector index in batches, and
// committing per-record sync state.
type ExportService interface {
	// ExportUnsynced exports all unsynced/stale embeddings in batches of
	// batchSize until none remain or the iteration cap is hit. Partial
	// failures are reported in the ExportReport, never raised.
	ExportUnsynced(ctx context.Context, batchSize int) (*domain.ExportReport, error)

	// ExportDocument exports the unsynced/stale embeddings of one document.
	ExportDocument(ctx context.Context, documentID string, batchSize int) (*domain.ExportReport, error)

	// DeleteFromIndex removes vectors by external reference and returns
	// the owning embeddings to the unsynced state.
	DeleteFromIndex(ctx context.Context, refs []string) error

	// Query runs a similarity search against the external index.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]driven.VectorMatch, error)

	// IndexStats returns external index statistics.
	IndexStats(ctx context.Context) (*driven.IndexStats, error)
}
