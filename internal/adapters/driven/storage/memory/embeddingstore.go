package memory

import (
	"context"
	"sort"
	"time"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
)

type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// Save stores a new embedding for a chunk in the unsynced state.
func (s *embeddingStore) Save(_ context.Context, emb *domain.Embedding) error {
	if emb.ID == "" || len(emb.Vector) == 0 {
		return domain.ErrValidation
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	chunk, ok := s.store.chunks[emb.ChunkID]
	if !ok || chunk.Deleted {
		return domain.ErrNotFound
	}
	for _, existing := range s.store.embeddings {
		if existing.ChunkID == emb.ChunkID && existing.ID != emb.ID {
			return domain.ErrAlreadyExists
		}
	}

	stored := *emb
	stored.State = domain.SyncStateUnsynced
	stored.VectorRef = ""
	stored.ClaimedAt = time.Time{}
	stored.LastSyncedAt = time.Time{}
	s.store.embeddings[stored.ID] = stored
	return nil
}

// Get retrieves an embedding by ID.
func (s *embeddingStore) Get(_ context.Context, id string) (*domain.Embedding, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	emb, ok := s.store.embeddings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &emb, nil
}

// GetByChunk retrieves the embedding owned by a chunk.
func (s *embeddingStore) GetByChunk(_ context.Context, chunkID string) (*domain.Embedding, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	for _, emb := range s.store.embeddings {
		if emb.ChunkID == chunkID {
			return &emb, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListByDocument returns all embeddings for a document's chunks.
func (s *embeddingStore) ListByDocument(_ context.Context, documentID string) ([]domain.Embedding, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var result []domain.Embedding
	for _, emb := range s.store.embeddings {
		chunk, ok := s.store.chunks[emb.ChunkID]
		if ok && chunk.DocumentID == documentID {
			result = append(result, emb)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// ClaimForExport atomically claims up to limit eligible embeddings.
func (s *embeddingStore) ClaimForExport(_ context.Context, scope driven.ExportScope, limit int, leaseTTL time.Duration) ([]domain.Embedding, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if scope.DocumentID != "" {
		doc, ok := s.store.documents[scope.DocumentID]
		if !ok || doc.Deleted {
			return nil, domain.ErrNotFound
		}
	}

	now := time.Now().UTC()
	var eligible []domain.Embedding
	for _, emb := range s.store.embeddings {
		// The logical-deletion cascade excludes embeddings under deleted
		// chunks or documents from selection.
		chunk, ok := s.store.chunks[emb.ChunkID]
		if !ok || chunk.Deleted {
			continue
		}
		if doc, ok := s.store.documents[chunk.DocumentID]; !ok || doc.Deleted {
			continue
		}
		if scope.DocumentID != "" && chunk.DocumentID != scope.DocumentID {
			continue
		}
		expired := emb.State == domain.SyncStatePending && now.Sub(emb.ClaimedAt) > leaseTTL
		if emb.State.NeedsExport() || expired {
			eligible = append(eligible, emb)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].CreatedAt.Before(eligible[j].CreatedAt) })
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]domain.Embedding, 0, len(eligible))
	for _, emb := range eligible {
		emb.State = domain.SyncStatePending
		emb.ClaimedAt = now
		emb.UpdatedAt = now
		s.store.embeddings[emb.ID] = emb
		claimed = append(claimed, emb)
	}
	return claimed, nil
}

// MarkSynced commits a successful export for a pending embedding.
func (s *embeddingStore) MarkSynced(_ context.Context, id, vectorRef string, at time.Time) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	emb, ok := s.store.embeddings[id]
	if !ok {
		return domain.ErrNotFound
	}
	if emb.State != domain.SyncStatePending {
		return domain.ErrConflict
	}

	emb.State = domain.SyncStateSynced
	emb.VectorRef = vectorRef
	emb.LastSyncedAt = at
	emb.ClaimedAt = time.Time{}
	emb.UpdatedAt = at
	s.store.embeddings[id] = emb
	return nil
}

// Release reverts pending leases; non-pending embeddings are left alone.
func (s *embeddingStore) Release(_ context.Context, ids []string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range ids {
		emb, ok := s.store.embeddings[id]
		if !ok || emb.State != domain.SyncStatePending {
			continue
		}
		emb.State = emb.ReleaseState()
		emb.ClaimedAt = time.Time{}
		emb.UpdatedAt = now
		s.store.embeddings[id] = emb
	}
	return nil
}

// ClearVectorRef clears external references after an index-side delete.
func (s *embeddingStore) ClearVectorRef(_ context.Context, vectorRefs []string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	refs := make(map[string]bool, len(vectorRefs))
	for _, ref := range vectorRefs {
		refs[ref] = true
	}

	now := time.Now().UTC()
	for id, emb := range s.store.embeddings {
		if emb.VectorRef == "" || !refs[emb.VectorRef] {
			continue
		}
		emb.VectorRef = ""
		emb.State = domain.SyncStateUnsynced
		emb.ClaimedAt = time.Time{}
		emb.LastSyncedAt = time.Time{}
		emb.UpdatedAt = now
		s.store.embeddings[id] = emb
	}
	return nil
}

// CountByState returns the number of embeddings per sync state.
func (s *embeddingStore) CountByState(_ context.Context) (map[domain.SyncState]int, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	counts := make(map[domain.SyncState]int)
	for _, emb := range s.store.embeddings {
		counts[emb.State]++
	}
	return counts, nil
}
