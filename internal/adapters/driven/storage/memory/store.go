// Package memory provides an in-memory implementation of the record store
// ports. It mirrors the sqlite adapter's behaviour, including logical
// deletion cascades and the pending-lease state machine, so core services
// can be tested without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
)

// defaultPageSize bounds unqualified listings.
const defaultPageSize = 100

// Store is a unified in-memory record store providing access to all record
// store interfaces through wrapper types, like the sqlite adapter.
type Store struct {
	mu         sync.RWMutex
	documents  map[string]domain.Document
	chunks     map[string]domain.Chunk
	embeddings map[string]domain.Embedding
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		documents:  make(map[string]domain.Document),
		chunks:     make(map[string]domain.Chunk),
		embeddings: make(map[string]domain.Embedding),
	}
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// EmbeddingStore returns an EmbeddingStore interface backed by this store.
func (s *Store) EmbeddingStore() driven.EmbeddingStore {
	return &embeddingStore{store: s}
}

// ==================== Document Store ====================

type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// Save stores or updates a document.
func (s *documentStore) Save(_ context.Context, doc *domain.Document) error {
	if doc.ID == "" || doc.Title == "" {
		return domain.ErrValidation
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.documents[doc.ID] = *doc
	return nil
}

// Get retrieves a live document by ID.
func (s *documentStore) Get(_ context.Context, id string) (*domain.Document, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	doc, ok := s.store.documents[id]
	if !ok || doc.Deleted {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// List returns documents with pagination.
func (s *documentStore) List(_ context.Context, opts driven.ListOptions) ([]domain.Document, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultPageSize
	}

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	all := make([]domain.Document, 0, len(s.store.documents))
	for _, doc := range s.store.documents {
		if doc.Deleted && !opts.IncludeDeleted {
			continue
		}
		all = append(all, doc)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if opts.Offset >= len(all) {
		return nil, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[opts.Offset:end], nil
}

// Search returns live documents matching the query substring.
func (s *documentStore) Search(_ context.Context, query string) ([]domain.Document, error) {
	q := strings.ToLower(query)

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var result []domain.Document
	for _, doc := range s.store.documents {
		if doc.Deleted {
			continue
		}
		if strings.Contains(strings.ToLower(doc.Title), q) ||
			strings.Contains(strings.ToLower(doc.Source), q) {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// SoftDelete marks a document and its descendants as logically deleted.
func (s *documentStore) SoftDelete(_ context.Context, id string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	doc, ok := s.store.documents[id]
	if !ok || doc.Deleted {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	doc.Deleted = true
	doc.UpdatedAt = now
	s.store.documents[id] = doc

	for cid, chunk := range s.store.chunks {
		if chunk.DocumentID != id {
			continue
		}
		chunk.Deleted = true
		chunk.UpdatedAt = now
		s.store.chunks[cid] = chunk
	}
	return nil
}

// HardDelete physically removes a document with its chunks and embeddings.
func (s *documentStore) HardDelete(_ context.Context, id string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, ok := s.store.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.store.documents, id)
	for cid, chunk := range s.store.chunks {
		if chunk.DocumentID != id {
			continue
		}
		delete(s.store.chunks, cid)
		for eid, emb := range s.store.embeddings {
			if emb.ChunkID == cid {
				delete(s.store.embeddings, eid)
			}
		}
	}
	return nil
}

// Count returns the number of live documents.
func (s *documentStore) Count(_ context.Context) (int, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	n := 0
	for _, doc := range s.store.documents {
		if !doc.Deleted {
			n++
		}
	}
	return n, nil
}

// ==================== Chunk Store ====================

type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// SaveBatch stores chunks for a document, validating order invariants.
func (s *chunkStore) SaveBatch(_ context.Context, chunks []domain.Chunk) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	for _, chunk := range chunks {
		if chunk.ID == "" || chunk.Text == "" || chunk.Index < 0 {
			return domain.ErrValidation
		}
		doc, ok := s.store.documents[chunk.DocumentID]
		if !ok || doc.Deleted {
			return domain.ErrNotFound
		}
		for _, existing := range s.store.chunks {
			if existing.ID != chunk.ID &&
				existing.DocumentID == chunk.DocumentID &&
				existing.Index == chunk.Index && !existing.Deleted {
				return domain.ErrValidation
			}
		}
	}
	for _, chunk := range chunks {
		s.store.chunks[chunk.ID] = chunk
	}
	return nil
}

// Get retrieves a live chunk by ID.
func (s *chunkStore) Get(_ context.Context, id string) (*domain.Chunk, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	chunk, ok := s.store.chunks[id]
	if !ok || chunk.Deleted {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// ListByDocument returns the live chunks of a document ordered by index.
func (s *chunkStore) ListByDocument(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var result []domain.Chunk
	for _, chunk := range s.store.chunks {
		if chunk.DocumentID == documentID && !chunk.Deleted {
			result = append(result, chunk)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

// UpdateText replaces a chunk's text and stales its embedding in the same
// operation.
func (s *chunkStore) UpdateText(_ context.Context, id, text string) error {
	if text == "" {
		return domain.ErrValidation
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	chunk, ok := s.store.chunks[id]
	if !ok || chunk.Deleted {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	chunk.Text = text
	chunk.UpdatedAt = now
	s.store.chunks[id] = chunk

	for eid, emb := range s.store.embeddings {
		if emb.ChunkID != id {
			continue
		}
		if emb.State != domain.SyncStateUnsynced {
			emb.State = domain.SyncStateStale
			emb.ClaimedAt = time.Time{}
		}
		emb.UpdatedAt = now
		s.store.embeddings[eid] = emb
	}
	return nil
}

// SoftDelete marks a chunk as logically deleted.
func (s *chunkStore) SoftDelete(_ context.Context, id string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	chunk, ok := s.store.chunks[id]
	if !ok || chunk.Deleted {
		return domain.ErrNotFound
	}
	chunk.Deleted = true
	chunk.UpdatedAt = time.Now().UTC()
	s.store.chunks[id] = chunk
	return nil
}

// HardDelete physically removes a chunk and its embedding.
func (s *chunkStore) HardDelete(_ context.Context, id string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, ok := s.store.chunks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.store.chunks, id)
	for eid, emb := range s.store.embeddings {
		if emb.ChunkID == id {
			delete(s.store.embeddings, eid)
		}
	}
	return nil
}

// SearchText returns live chunks containing the query substring.
func (s *chunkStore) SearchText(_ context.Context, query string, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	q := strings.ToLower(query)

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var result []domain.Chunk
	for _, chunk := range s.store.chunks {
		if chunk.Deleted || !strings.Contains(strings.ToLower(chunk.Text), q) {
			continue
		}
		result = append(result, chunk)
		if len(result) >= limit {
			break
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

// Count returns the number of live chunks.
func (s *chunkStore) Count(_ context.Context) (int, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	n := 0
	for _, chunk := range s.store.chunks {
		if !chunk.Deleted {
			n++
		}
	}
	return n, nil
}
