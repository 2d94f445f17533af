package domain

import "time"

// Document represents an ingested content unit with metadata.
// It is the authoritative record; the external vector index only ever
// holds derived copies of its chunk embeddings.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title.
	Title string

	// Source is the original locator (file path, URL, etc).
	Source string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time

	// Deleted marks the document as logically deleted.
	// Soft-deleted documents are excluded from default reads but their
	// rows (and any exported vectors) remain until an explicit hard delete.
	Deleted bool
}

// Chunk represents an ordered text fragment within a document.
// Each chunk owns at most one embedding.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Index is the zero-based position within the document.
	// (DocumentID, Index) is unique and defines total order.
	Index int

	// Text is the fragment content.
	Text string

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the chunk was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the chunk was last updated.
	UpdatedAt time.Time

	// Deleted marks the chunk as logically deleted.
	Deleted bool
}
