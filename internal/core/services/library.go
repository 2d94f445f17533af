package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driving"
	"github.com/custodia-labs/embedsync-cli/internal/logger"
)

// Ensure Library implements the interface.
var _ driving.LibraryService = (*Library)(nil)

// previewLimit bounds content-search previews.
const previewLimit = 200

// Library manages the authoritative records and the consistency operations
// built on them. It never writes sync state directly; that is the
// Exporter's job.
type Library struct {
	documents  driven.DocumentStore
	chunks     driven.ChunkStore
	embeddings driven.EmbeddingStore

	// index is used only for hard deletes, which must remove exported
	// vectors before dropping local rows. May be nil.
	index driven.VectorIndex
}

// NewLibrary creates a library service.
func NewLibrary(
	documents driven.DocumentStore,
	chunks driven.ChunkStore,
	embeddings driven.EmbeddingStore,
	index driven.VectorIndex,
) *Library {
	return &Library{
		documents:  documents,
		chunks:     chunks,
		embeddings: embeddings,
		index:      index,
	}
}

// CreateDocument stores a new document.
func (l *Library) CreateDocument(ctx context.Context, title, source string, metadata map[string]any) (*domain.Document, error) {
	if title == "" {
		return nil, fmt.Errorf("document title: %w", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		Title:     title,
		Source:    source,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

// GetDocument retrieves a live document.
func (l *Library) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return l.documents.Get(ctx, id)
}

// ListDocuments returns live documents with pagination.
func (l *Library) ListDocuments(ctx context.Context, offset, limit int) ([]domain.Document, error) {
	return l.documents.List(ctx, driven.ListOptions{Offset: offset, Limit: limit})
}

// AddChunks appends text fragments to a document, indexed after its current
// highest chunk index.
func (l *Library) AddChunks(ctx context.Context, documentID string, texts []string) ([]domain.Chunk, error) {
	if _, err := l.documents.Get(ctx, documentID); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	existing, err := l.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	next := 0
	for _, c := range existing {
		if c.Index >= next {
			next = c.Index + 1
		}
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Index:      next + i,
			Text:       text,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err := l.chunks.SaveBatch(ctx, chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}
	return chunks, nil
}

// UpdateChunkText replaces a chunk's text. The store stales the chunk's
// embedding in the same unit of work.
func (l *Library) UpdateChunkText(ctx context.Context, chunkID, text string) error {
	if text == "" {
		return fmt.Errorf("chunk text: %w", domain.ErrInvalidInput)
	}
	return l.chunks.UpdateText(ctx, chunkID, text)
}

// ListChunks returns the live chunks of a document in order.
func (l *Library) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := l.documents.Get(ctx, documentID); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return l.chunks.ListByDocument(ctx, documentID)
}

// AttachEmbedding stores a vector for a chunk in the unsynced state.
func (l *Library) AttachEmbedding(ctx context.Context, chunkID string, vector []float32, model string) (*domain.Embedding, error) {
	now := time.Now().UTC()
	emb := &domain.Embedding{
		ID:        uuid.NewString(),
		ChunkID:   chunkID,
		Vector:    vector,
		Model:     model,
		State:     domain.SyncStateUnsynced,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.embeddings.Save(ctx, emb); err != nil {
		return nil, fmt.Errorf("save embedding: %w", err)
	}
	return emb, nil
}

// GetEmbedding retrieves the embedding owned by a chunk.
func (l *Library) GetEmbedding(ctx context.Context, chunkID string) (*domain.Embedding, error) {
	emb, err := l.embeddings.GetByChunk(ctx, chunkID)
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	return emb, nil
}

// Duplicate copies a document with its live chunks and embeddings into fresh
// rows. Copied embeddings start unsynced with no external reference: a new
// embedding needs its own external record, never the source's.
func (l *Library) Duplicate(ctx context.Context, documentID, newTitle string) (*domain.Document, error) {
	source, err := l.documents.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	if newTitle == "" {
		newTitle = source.Title + " (Copy)"
	}
	copied, err := l.CreateDocument(ctx, newTitle, source.Source, source.Metadata)
	if err != nil {
		return nil, err
	}

	chunks, err := l.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	now := time.Now().UTC()
	for _, chunk := range chunks {
		newChunk := domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: copied.ID,
			Index:      chunk.Index,
			Text:       chunk.Text,
			Metadata:   chunk.Metadata,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := l.chunks.SaveBatch(ctx, []domain.Chunk{newChunk}); err != nil {
			return nil, fmt.Errorf("copy chunk %d: %w", chunk.Index, err)
		}

		emb, err := l.embeddings.GetByChunk(ctx, chunk.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get embedding: %w", err)
		}
		if _, err := l.AttachEmbedding(ctx, newChunk.ID, emb.Vector, emb.Model); err != nil {
			return nil, fmt.Errorf("copy embedding: %w", err)
		}
	}

	logger.Info("Duplicated document %s as %s (%d chunks)", documentID, copied.ID, len(chunks))
	return copied, nil
}

// BatchSoftDelete logically deletes a set of documents with their
// descendants. The external index is deliberately left untouched: exported
// vectors of soft-deleted content remain until an explicit hard delete or
// index deletion pass.
func (l *Library) BatchSoftDelete(ctx context.Context, documentIDs []string) (*domain.BatchDeleteReport, error) {
	report := &domain.BatchDeleteReport{}
	for _, id := range documentIDs {
		if err := l.documents.SoftDelete(ctx, id); err != nil {
			logger.Debug("Failed to soft-delete %s: %v", id, err)
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, id)
			continue
		}
		report.Deleted++
	}
	return report, nil
}

// HardDelete physically removes a document. Exported vectors are deleted
// from the external index first so no orphaned external records remain.
func (l *Library) HardDelete(ctx context.Context, documentID string) error {
	embeddings, err := l.embeddings.ListByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list embeddings: %w", err)
	}

	var refs []string
	for _, emb := range embeddings {
		if emb.VectorRef != "" {
			refs = append(refs, emb.VectorRef)
		}
	}
	if len(refs) > 0 {
		if l.index == nil {
			return fmt.Errorf("document has %d exported vectors: %w", len(refs), domain.ErrVectorIndexUnavailable)
		}
		if err := l.index.Delete(ctx, refs); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
	}

	if err := l.documents.HardDelete(ctx, documentID); err != nil {
		return fmt.Errorf("hard delete document: %w", err)
	}
	return nil
}

// Dump materialises a document with chunks and per-embedding sync state.
func (l *Library) Dump(ctx context.Context, documentID string) (*domain.DocumentDump, error) {
	doc, err := l.documents.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	chunks, err := l.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	dump := &domain.DocumentDump{Document: *doc}
	for _, chunk := range chunks {
		entry := domain.ChunkDump{Chunk: chunk}
		emb, err := l.embeddings.GetByChunk(ctx, chunk.ID)
		if err == nil {
			entry.Embedding = &domain.EmbeddingDump{
				ID:           emb.ID,
				Model:        emb.Model,
				VectorRef:    emb.VectorRef,
				State:        emb.State,
				Dimensions:   len(emb.Vector),
				LastSyncedAt: emb.LastSyncedAt,
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get embedding: %w", err)
		}
		dump.Chunks = append(dump.Chunks, entry)
	}
	return dump, nil
}

// Statistics summarises one document and its sync progress.
func (l *Library) Statistics(ctx context.Context, documentID string) (*domain.DocumentStatistics, error) {
	doc, err := l.documents.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	chunks, err := l.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	embeddings, err := l.embeddings.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}

	stats := &domain.DocumentStatistics{
		DocumentID:     doc.ID,
		Title:          doc.Title,
		Source:         doc.Source,
		ChunkCount:     len(chunks),
		EmbeddingCount: len(embeddings),
	}
	for _, chunk := range chunks {
		stats.TotalTextBytes += len(chunk.Text)
	}
	for _, emb := range embeddings {
		if emb.State == domain.SyncStateSynced {
			stats.Synced++
		} else {
			stats.Unsynced++
		}
	}
	if stats.EmbeddingCount > 0 {
		stats.SyncPercent = float64(stats.Synced) / float64(stats.EmbeddingCount) * 100
	}
	return stats, nil
}

// SyncSummary reports corpus-wide sync status.
func (l *Library) SyncSummary(ctx context.Context) (*domain.SyncSummary, error) {
	docs, err := l.documents.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := l.chunks.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	byState, err := l.embeddings.CountByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}

	summary := &domain.SyncSummary{
		Documents:   docs,
		Chunks:      chunks,
		Synced:      byState[domain.SyncStateSynced],
		GeneratedAt: time.Now().UTC(),
	}
	for _, n := range byState {
		summary.Embeddings += n
	}
	summary.Unsynced = summary.Embeddings - summary.Synced
	if summary.Embeddings > 0 {
		summary.SyncPercent = float64(summary.Synced) / float64(summary.Embeddings) * 100
	}
	return summary, nil
}

// SearchContent searches chunk text and document titles/sources.
func (l *Library) SearchContent(ctx context.Context, query string, limit int) ([]domain.ContentMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("search query: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	var matches []domain.ContentMatch

	chunks, err := l.chunks.SearchText(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	for _, chunk := range chunks {
		title := ""
		if doc, err := l.documents.Get(ctx, chunk.DocumentID); err == nil {
			title = doc.Title
		}
		matches = append(matches, domain.ContentMatch{
			Kind:          "chunk",
			DocumentID:    chunk.DocumentID,
			DocumentTitle: title,
			ChunkID:       chunk.ID,
			ChunkIndex:    chunk.Index,
			Preview:       excerpt(chunk.Text, previewLimit),
		})
	}

	docs, err := l.documents.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	for _, doc := range docs {
		matches = append(matches, domain.ContentMatch{
			Kind:          "document",
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
		})
	}

	return matches, nil
}
