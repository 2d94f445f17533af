package domain

import "time"

// SyncState tracks an embedding's relationship to the external vector index.
type SyncState string

// Embedding sync states.
const (
	// SyncStateUnsynced means the embedding has never been exported,
	// or its external vector was explicitly removed.
	SyncStateUnsynced SyncState = "unsynced"

	// SyncStatePending means the embedding is claimed by an in-flight
	// export batch. It is a lease, not a terminal state: an expired or
	// released lease reverts to unsynced/stale, never to synced.
	SyncStatePending SyncState = "pending"

	// SyncStateSynced means the external index holds the current vector.
	// Synced implies VectorRef is set and LastSyncedAt recorded.
	SyncStateSynced SyncState = "synced"

	// SyncStateStale means the chunk text changed after the last
	// successful export; the external vector no longer matches.
	SyncStateStale SyncState = "stale"
)

// IsValid returns true if the sync state is recognised.
func (s SyncState) IsValid() bool {
	switch s {
	case SyncStateUnsynced, SyncStatePending, SyncStateSynced, SyncStateStale:
		return true
	default:
		return false
	}
}

// NeedsExport returns true if the state makes the embedding eligible for
// export selection. Unsynced and stale are equivalent inputs to selection.
func (s SyncState) NeedsExport() bool {
	return s == SyncStateUnsynced || s == SyncStateStale
}

// String returns the string representation.
func (s SyncState) String() string {
	return string(s)
}

// Embedding is the vector representation of a chunk, with external sync
// tracking. The SyncState and VectorRef fields are owned exclusively by the
// sync coordinator's commit step; other subsystems must never write them.
type Embedding struct {
	// ID is the unique identifier for the embedding.
	ID string

	// ChunkID links to the owning Chunk.
	ChunkID string

	// Vector is the numeric representation produced by Model.
	Vector []float32

	// Model is the name of the embedding model that produced the vector.
	Model string

	// VectorRef is the identifier of the exported vector in the external
	// index. Empty until the first successful export.
	VectorRef string

	// State is the current sync state.
	State SyncState

	// ClaimedAt is when the pending lease was taken. Zero unless pending.
	ClaimedAt time.Time

	// CreatedAt is when the embedding was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the embedding was last updated.
	UpdatedAt time.Time

	// LastSyncedAt is when the embedding was last successfully exported.
	LastSyncedAt time.Time
}

// ReleaseState returns the state a broken or released pending lease reverts
// to: stale when the embedding has been exported before, unsynced otherwise.
func (e *Embedding) ReleaseState() SyncState {
	if e.VectorRef != "" {
		return SyncStateStale
	}
	return SyncStateUnsynced
}

// ExportID returns the deterministic external vector identifier for this
// embedding. An already-assigned VectorRef is reused so retried upserts
// always target the same external record.
func (e *Embedding) ExportID() string {
	if e.VectorRef != "" {
		return e.VectorRef
	}
	return e.ID
}
