package driven

import "context"

// VectorItem is one vector with enrichment metadata, ready for upsert.
type VectorItem struct {
	// Ref is the external vector identifier. It is derived
	// deterministically from the embedding's identity so that retried
	// upserts are idempotent.
	Ref string

	// Vector is the embedding values.
	Vector []float32

	// Metadata is the enrichment payload stored alongside the vector
	// (document id/title, chunk id/index, text excerpt, model name).
	Metadata map[string]any
}

// UpsertOutcome reports the per-item result of a batched upsert.
// Every submitted ref appears in exactly one of the two sets; the index
// adapter never drops an item without reporting its outcome.
type UpsertOutcome struct {
	// Accepted lists refs the index acknowledged.
	Accepted []string

	// Rejected maps refs the index explicitly refused to a reason.
	// Rejections are not retried automatically.
	Rejected map[string]string
}

// VectorMatch is a ranked similarity search result.
type VectorMatch struct {
	// Ref is the external vector identifier.
	Ref string

	// Score is the similarity score reported by the index.
	Score float64

	// Metadata is the payload stored at upsert time.
	Metadata map[string]any
}

// IndexStats describes the external index.
type IndexStats struct {
	// VectorCount is the total number of vectors held by the index.
	VectorCount int

	// Dimension is the index's vector dimension.
	Dimension int

	// Namespaces maps namespace name to vector count, when the index
	// partitions vectors.
	Namespaces map[string]int
}

// VectorIndex is the capability surface over the external nearest-neighbour
// service. Transport, authentication and wire format are the adapter's
// concern; callers only see these four operations.
//
// Failures of the whole call (transport, auth, quota) wrap
// domain.ErrExternalService so the sync coordinator can retry the batch.
// Item-level refusals are reported in the UpsertOutcome, never as an error.
type VectorIndex interface {
	// Upsert writes a batch of vectors and reports per-item outcome.
	Upsert(ctx context.Context, items []VectorItem) (*UpsertOutcome, error)

	// Delete removes vectors by external reference. Unknown refs are not
	// an error.
	Delete(ctx context.Context, refs []string) error

	// Query returns the topK nearest matches to the given vector,
	// optionally filtered on metadata.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]VectorMatch, error)

	// Stats returns index statistics.
	Stats(ctx context.Context) (*IndexStats, error)

	// Close releases resources.
	Close() error
}
