package domain

import "time"

// ExportReport is the structured outcome of an export pass.
// Batch operations always return a report rather than raising on partial
// failure; only an unrecoverable condition (index unreachable for the whole
// operation) is returned as an error.
type ExportReport struct {
	// Selected is the total number of embeddings claimed for export.
	Selected int

	// Succeeded is the number of embeddings committed as synced.
	Succeeded int

	// Failed is the number of embeddings rejected or lost to exhausted
	// retries; all were released back to unsynced/stale for a future pass.
	Failed int

	// Skipped is the number of embeddings dropped from the batch because
	// their chunk or document was missing or soft-deleted, plus items lost
	// to a state conflict during commit.
	Skipped int

	// Batches is the number of upsert calls issued.
	Batches int

	// Failures records the reason per failed embedding ID.
	Failures map[string]string
}

// RecordFailure notes the failure reason for an embedding.
func (r *ExportReport) RecordFailure(embeddingID, reason string) {
	if r.Failures == nil {
		r.Failures = make(map[string]string)
	}
	r.Failures[embeddingID] = reason
}

// Add folds another report into this one.
func (r *ExportReport) Add(other ExportReport) {
	r.Selected += other.Selected
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	r.Batches += other.Batches
	for id, reason := range other.Failures {
		if r.Failures == nil {
			r.Failures = make(map[string]string)
		}
		r.Failures[id] = reason
	}
}

// BatchDeleteReport is the outcome of a batch soft delete.
type BatchDeleteReport struct {
	// Deleted is the number of documents successfully soft-deleted.
	Deleted int

	// Failed is the number of documents that could not be deleted.
	Failed int

	// FailedIDs lists the documents that could not be deleted.
	FailedIDs []string
}

// DocumentStatistics summarises a document and its sync progress.
type DocumentStatistics struct {
	DocumentID     string
	Title          string
	Source         string
	ChunkCount     int
	EmbeddingCount int
	Synced         int
	Unsynced       int
	TotalTextBytes int
	SyncPercent    float64
}

// SyncSummary is the corpus-wide sync status.
type SyncSummary struct {
	Documents   int
	Chunks      int
	Embeddings  int
	Synced      int
	Unsynced    int
	SyncPercent float64
	GeneratedAt time.Time
}

// DocumentDump is a portable, read-only materialisation of a document with
// its chunks and embeddings, suitable for backup. Sync state is included per
// embedding so the dump is self-describing.
type DocumentDump struct {
	Document Document    `json:"document"`
	Chunks   []ChunkDump `json:"chunks"`
}

// ChunkDump is one chunk within a DocumentDump.
type ChunkDump struct {
	Chunk     Chunk          `json:"chunk"`
	Embedding *EmbeddingDump `json:"embedding,omitempty"`
}

// EmbeddingDump describes an embedding within a DocumentDump.
type EmbeddingDump struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	VectorRef    string    `json:"vector_ref,omitempty"`
	State        SyncState `json:"state"`
	Dimensions   int       `json:"dimensions"`
	LastSyncedAt time.Time `json:"last_synced_at,omitzero"`
}

// ContentMatch is a single hit from a content search across documents.
type ContentMatch struct {
	// Kind is "chunk" for a text match or "document" for a title/source match.
	Kind string

	DocumentID    string
	DocumentTitle string
	ChunkID       string
	ChunkIndex    int

	// Preview is a bounded excerpt of the matched text.
	Preview string
}
