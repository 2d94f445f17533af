package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
)

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

const embeddingColumns = `id, chunk_id, vector, model, vector_ref, sync_state,
	claimed_at, created_at, updated_at, last_synced_at`

// Save stores a new embedding for a chunk in the unsynced state.
func (s *embeddingStore) Save(ctx context.Context, emb *domain.Embedding) error {
	if emb.ID == "" || len(emb.Vector) == 0 {
		return domain.ErrValidation
	}

	// The owning chunk and its document must both be live.
	var live int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.id = ? AND c.deleted = 0 AND d.deleted = 0
	`, emb.ChunkID).Scan(&live)
	if err != nil {
		return fmt.Errorf("checking chunk: %w", err)
	}
	if live == 0 {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	emb.State = domain.SyncStateUnsynced
	emb.VectorRef = ""
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = now
	}
	emb.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO embeddings (id, chunk_id, vector, model, vector_ref, sync_state,
			claimed_at, created_at, updated_at, last_synced_at)
		VALUES (?, ?, ?, ?, '', 'unsynced', NULL, ?, ?, NULL)
	`, emb.ID, emb.ChunkID, float32SliceToBytes(emb.Vector), emb.Model,
		emb.CreatedAt, emb.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("saving embedding: %w", err)
	}
	return nil
}

// Get retrieves an embedding by ID.
func (s *embeddingStore) Get(ctx context.Context, id string) (*domain.Embedding, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+embeddingColumns+" FROM embeddings WHERE id = ?", id)
	return scanEmbeddingRow(row)
}

// GetByChunk retrieves the embedding owned by a chunk.
func (s *embeddingStore) GetByChunk(ctx context.Context, chunkID string) (*domain.Embedding, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+embeddingColumns+" FROM embeddings WHERE chunk_id = ?", chunkID)
	return scanEmbeddingRow(row)
}

// ListByDocument returns all embeddings for a document's chunks.
func (s *embeddingStore) ListByDocument(ctx context.Context, documentID string) ([]domain.Embedding, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT e.id, e.chunk_id, e.vector, e.model, e.vector_ref, e.sync_state,
			e.claimed_at, e.created_at, e.updated_at, e.last_synced_at
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE c.document_id = ? AND c.deleted = 0
		ORDER BY c.chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// ClaimForExport atomically transitions up to limit exportable embeddings to
// pending and returns them. The single UPDATE with a sub-select is the
// concurrency guard: SQLite serialises writers, so two concurrent claims can
// never move the same row to pending twice.
func (s *embeddingStore) ClaimForExport(ctx context.Context, scope driven.ExportScope, limit int, leaseTTL time.Duration) ([]domain.Embedding, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	if scope.DocumentID != "" {
		var live int
		err := s.store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM documents WHERE id = ? AND deleted = 0",
			scope.DocumentID).Scan(&live)
		if err != nil {
			return nil, fmt.Errorf("checking document: %w", err)
		}
		if live == 0 {
			return nil, domain.ErrNotFound
		}
	}

	now := time.Now().UTC()
	leaseCutoff := now.Add(-leaseTTL)

	query := `
		UPDATE embeddings SET sync_state = 'pending', claimed_at = ?, updated_at = ?
		WHERE id IN (
			SELECT e.id FROM embeddings e
			JOIN chunks c ON c.id = e.chunk_id
			JOIN documents d ON d.id = c.document_id
			WHERE c.deleted = 0 AND d.deleted = 0
			AND (e.sync_state IN ('unsynced', 'stale')
				OR (e.sync_state = 'pending' AND e.claimed_at < ?))
	`
	args := []any{now, now, leaseCutoff}
	if scope.DocumentID != "" {
		query += " AND c.document_id = ?"
		args = append(args, scope.DocumentID)
	}
	query += `
			ORDER BY e.created_at
			LIMIT ?
		)
		RETURNING ` + embeddingColumns
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("claiming embeddings: %w", err)
	}
	defer rows.Close()

	claimed, err := scanEmbeddings(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING order follows the update, not the sub-select; re-sort to
	// keep the oldest-first contract.
	sortEmbeddingsByCreation(claimed)
	return claimed, nil
}

// MarkSynced commits a successful export. The sync_state guard makes the
// commit conditional: a lease broken in the meantime (text edit, expiry
// re-claim) surfaces as domain.ErrConflict instead of overwriting.
func (s *embeddingStore) MarkSynced(ctx context.Context, id, vectorRef string, at time.Time) error {
	if vectorRef == "" {
		return domain.ErrValidation
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE embeddings SET sync_state = 'synced', vector_ref = ?,
			claimed_at = NULL, last_synced_at = ?, updated_at = ?
		WHERE id = ? AND sync_state = 'pending'
	`, vectorRef, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking synced: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish a missing embedding from a broken lease.
	var exists int
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE id = ?", id).Scan(&exists); err != nil {
		return fmt.Errorf("checking embedding: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// Release reverts pending leases after a failed or abandoned export.
// Non-pending embeddings are untouched.
func (s *embeddingStore) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.store.db.ExecContext(ctx, `
		UPDATE embeddings SET
			sync_state = CASE WHEN vector_ref != '' THEN 'stale' ELSE 'unsynced' END,
			claimed_at = NULL,
			updated_at = ?
		WHERE id IN (`+placeholders+`) AND sync_state = 'pending'
	`, args...)
	if err != nil {
		return fmt.Errorf("releasing embeddings: %w", err)
	}
	return nil
}

// ClearVectorRef clears external references after an index-side delete and
// returns the affected embeddings to unsynced.
func (s *embeddingStore) ClearVectorRef(ctx context.Context, vectorRefs []string) error {
	if len(vectorRefs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(vectorRefs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(vectorRefs)+1)
	args = append(args, time.Now().UTC())
	for _, ref := range vectorRefs {
		args = append(args, ref)
	}

	_, err := s.store.db.ExecContext(ctx, `
		UPDATE embeddings SET sync_state = 'unsynced', vector_ref = '',
			claimed_at = NULL, last_synced_at = NULL, updated_at = ?
		WHERE vector_ref IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("clearing vector refs: %w", err)
	}
	return nil
}

// CountByState returns the number of embeddings per sync state.
func (s *embeddingStore) CountByState(ctx context.Context) (map[domain.SyncState]int, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT sync_state, COUNT(*) FROM embeddings GROUP BY sync_state")
	if err != nil {
		return nil, fmt.Errorf("counting embeddings: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SyncState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.SyncState(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// ==================== Scanning ====================

// scanEmbeddingRow scans a single embedding row.
func scanEmbeddingRow(row *sql.Row) (*domain.Embedding, error) {
	var emb domain.Embedding
	var vector []byte
	var vectorRef sql.NullString
	var claimedAt, lastSyncedAt sql.NullTime
	var state string

	if err := row.Scan(&emb.ID, &emb.ChunkID, &vector, &emb.Model, &vectorRef,
		&state, &claimedAt, &emb.CreatedAt, &emb.UpdatedAt, &lastSyncedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	hydrateEmbedding(&emb, vector, vectorRef, state, claimedAt, lastSyncedAt)
	return &emb, nil
}

// scanEmbeddings scans multiple embedding rows.
func scanEmbeddings(rows *sql.Rows) ([]domain.Embedding, error) {
	var embeddings []domain.Embedding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var emb domain.Embedding
		var vector []byte
		var vectorRef sql.NullString
		var claimedAt, lastSyncedAt sql.NullTime
		var state string

		if err := rows.Scan(&emb.ID, &emb.ChunkID, &vector, &emb.Model, &vectorRef,
			&state, &claimedAt, &emb.CreatedAt, &emb.UpdatedAt, &lastSyncedAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}

		hydrateEmbedding(&emb, vector, vectorRef, state, claimedAt, lastSyncedAt)
		embeddings = append(embeddings, emb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return embeddings, nil
}

func hydrateEmbedding(emb *domain.Embedding, vector []byte, vectorRef sql.NullString,
	state string, claimedAt, lastSyncedAt sql.NullTime) {
	emb.Vector = bytesToFloat32Slice(vector)
	emb.State = domain.SyncState(state)
	if vectorRef.Valid {
		emb.VectorRef = vectorRef.String
	}
	if claimedAt.Valid {
		emb.ClaimedAt = claimedAt.Time
	}
	if lastSyncedAt.Valid {
		emb.LastSyncedAt = lastSyncedAt.Time
	}
}

func sortEmbeddingsByCreation(embeddings []domain.Embedding) {
	sort.Slice(embeddings, func(i, j int) bool {
		return embeddings[i].CreatedAt.Before(embeddings[j].CreatedAt)
	})
}
