package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storagemem "github.com/custodia-labs/embedsync-cli/internal/adapters/driven/storage/memory"
	indexmem "github.com/custodia-labs/embedsync-cli/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
)

func newLibraryFixture(t *testing.T) (*Library, *Exporter, *indexmem.Index) {
	t.Helper()
	store := storagemem.NewStore()
	index := indexmem.NewIndex()
	library := NewLibrary(
		store.DocumentStore(), store.ChunkStore(), store.EmbeddingStore(), index)
	exporter := NewExporter(
		store.DocumentStore(), store.ChunkStore(), store.EmbeddingStore(), index, ExporterConfig{})
	return library, exporter, index
}

// seedDocument creates a document with embedded chunks and returns it with
// the chunk IDs.
func seedDocument(t *testing.T, l *Library, title string, texts ...string) (*domain.Document, []string) {
	t.Helper()
	ctx := context.Background()

	doc, err := l.CreateDocument(ctx, title, "file:///"+title, map[string]any{"lang": "en"})
	require.NoError(t, err)

	chunks, err := l.AddChunks(ctx, doc.ID, texts)
	require.NoError(t, err)

	ids := make([]string, 0, len(chunks))
	for i := range chunks {
		_, err := l.AttachEmbedding(ctx, chunks[i].ID, []float32{float32(i), 1}, "test-model")
		require.NoError(t, err)
		ids = append(ids, chunks[i].ID)
	}
	return doc, ids
}

func TestLibrary_CreateDocument_RequiresTitle(t *testing.T) {
	library, _, _ := newLibraryFixture(t)

	_, err := library.CreateDocument(context.Background(), "", "source", nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLibrary_AddChunks_IndexesAfterExisting(t *testing.T) {
	library, _, _ := newLibraryFixture(t)
	ctx := context.Background()

	doc, _ := seedDocument(t, library, "notes", "first", "second")

	more, err := library.AddChunks(ctx, doc.ID, []string{"third"})

	require.NoError(t, err)
	require.Len(t, more, 1)
	assert.Equal(t, 2, more[0].Index)
}

func TestLibrary_Duplicate_CopiesDescendants(t *testing.T) {
	library, exporter, _ := newLibraryFixture(t)
	ctx := context.Background()

	doc, chunkIDs := seedDocument(t, library, "original", "alpha", "beta", "gamma")

	// Sync the original so its embeddings carry external refs.
	_, err := exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)

	copied, err := library.Duplicate(ctx, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "original (Copy)", copied.Title)
	assert.NotEqual(t, doc.ID, copied.ID)
	assert.Equal(t, doc.Metadata["lang"], copied.Metadata["lang"])

	copiedChunks, err := library.ListChunks(ctx, copied.ID)
	require.NoError(t, err)
	require.Len(t, copiedChunks, 3)

	for i, chunk := range copiedChunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotContains(t, chunkIDs, chunk.ID)

		emb, err := library.GetEmbedding(ctx, chunk.ID)
		require.NoError(t, err)
		// Copies start unsynced and never share an external record with
		// the source.
		assert.Equal(t, domain.SyncStateUnsynced, emb.State)
		assert.Empty(t, emb.VectorRef)
	}

	// The source document is untouched.
	for _, id := range chunkIDs {
		emb, err := library.GetEmbedding(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SyncStateSynced, emb.State)
	}
}

func TestLibrary_Duplicate_UnknownDocument(t *testing.T) {
	library, _, _ := newLibraryFixture(t)

	_, err := library.Duplicate(context.Background(), "missing", "")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLibrary_BatchSoftDelete_PartialFailure(t *testing.T) {
	library, _, index := newLibraryFixture(t)
	ctx := context.Background()

	docA, chunksA := seedDocument(t, library, "a", "one")
	docB, _ := seedDocument(t, library, "b", "two")

	report, err := library.BatchSoftDelete(ctx, []string{docA.ID, "missing", docB.ID})

	require.NoError(t, err)
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"missing"}, report.FailedIDs)

	// Documents and chunks are gone from the live view.
	_, err = library.GetDocument(ctx, docA.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = library.GetEmbedding(ctx, chunksA[0])
	require.NoError(t, err) // embedding row survives; only selection excludes it

	// Soft delete never touches the external index.
	assert.Equal(t, 0, index.Len())
}

func TestLibrary_SoftDelete_LeavesExportedVectorsInIndex(t *testing.T) {
	library, exporter, index := newLibraryFixture(t)
	ctx := context.Background()

	doc, _ := seedDocument(t, library, "archived", "one", "two")
	_, err := exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, index.Len())

	report, err := library.BatchSoftDelete(ctx, []string{doc.ID})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	// Exported vectors stay queryable until an explicit hard delete or
	// index delete pass; soft delete only hides the local rows.
	assert.Equal(t, 2, index.Len())
}

func TestLibrary_HardDelete_RemovesIndexVectorsFirst(t *testing.T) {
	library, exporter, index := newLibraryFixture(t)
	ctx := context.Background()

	doc, _ := seedDocument(t, library, "doomed", "one", "two")
	_, err := exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, index.Len())

	require.NoError(t, library.HardDelete(ctx, doc.ID))

	assert.Equal(t, 0, index.Len())
	_, err = library.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLibrary_HardDelete_NoIndexButExportedVectors(t *testing.T) {
	store := storagemem.NewStore()
	index := indexmem.NewIndex()
	library := NewLibrary(store.DocumentStore(), store.ChunkStore(), store.EmbeddingStore(), index)
	exporter := NewExporter(store.DocumentStore(), store.ChunkStore(), store.EmbeddingStore(), index, ExporterConfig{})
	ctx := context.Background()

	doc, _ := seedDocument(t, library, "stuck", "one")
	_, err := exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)

	// Rebuild the library without an index; exported vectors now block a
	// hard delete instead of being silently orphaned.
	blind := NewLibrary(store.DocumentStore(), store.ChunkStore(), store.EmbeddingStore(), nil)
	err = blind.HardDelete(ctx, doc.ID)

	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	_, err = library.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
}

func TestLibrary_Dump_IncludesSyncState(t *testing.T) {
	library, exporter, _ := newLibraryFixture(t)
	ctx := context.Background()

	doc, _ := seedDocument(t, library, "dumped", "exported", "also exported")

	_, err := exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)

	dump, err := library.Dump(ctx, doc.ID)

	require.NoError(t, err)
	assert.Equal(t, doc.ID, dump.Document.ID)
	require.Len(t, dump.Chunks, 2)
	for _, entry := range dump.Chunks {
		require.NotNil(t, entry.Embedding)
		assert.Equal(t, domain.SyncStateSynced, entry.Embedding.State)
		assert.NotEmpty(t, entry.Embedding.VectorRef)
		assert.Equal(t, 2, entry.Embedding.Dimensions)
		assert.False(t, entry.Embedding.LastSyncedAt.IsZero())
	}
}

func TestLibrary_Dump_ChunkWithoutEmbedding(t *testing.T) {
	library, _, _ := newLibraryFixture(t)
	ctx := context.Background()

	doc, err := library.CreateDocument(ctx, "bare", "", nil)
	require.NoError(t, err)
	_, err = library.AddChunks(ctx, doc.ID, []string{"no vector yet"})
	require.NoError(t, err)

	dump, err := library.Dump(ctx, doc.ID)

	require.NoError(t, err)
	require.Len(t, dump.Chunks, 1)
	assert.Nil(t, dump.Chunks[0].Embedding)
}

func TestLibrary_Statistics(t *testing.T) {
	library, exporter, _ := newLibraryFixture(t)
	ctx := context.Background()

	doc, chunkIDs := seedDocument(t, library, "measured", "aaaa", "bbbb")
	_, err := exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)

	// Stale one embedding again.
	require.NoError(t, library.UpdateChunkText(ctx, chunkIDs[1], "cccc"))

	stats, err := library.Statistics(ctx, doc.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, 2, stats.EmbeddingCount)
	assert.Equal(t, 1, stats.Synced)
	assert.Equal(t, 1, stats.Unsynced)
	assert.Equal(t, 8, stats.TotalTextBytes)
	assert.InDelta(t, 50.0, stats.SyncPercent, 0.001)
}

func TestLibrary_SyncSummary(t *testing.T) {
	library, exporter, _ := newLibraryFixture(t)
	ctx := context.Background()

	seedDocument(t, library, "one", "a")
	seedDocument(t, library, "two", "b", "c")
	_, err := exporter.ExportUnsynced(ctx, 1)
	require.NoError(t, err)

	summary, err := library.SyncSummary(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 3, summary.Chunks)
	assert.Equal(t, 3, summary.Embeddings)
	assert.Equal(t, 3, summary.Synced)
	assert.Equal(t, 0, summary.Unsynced)
	assert.InDelta(t, 100.0, summary.SyncPercent, 0.001)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestLibrary_SearchContent(t *testing.T) {
	library, _, _ := newLibraryFixture(t)
	ctx := context.Background()

	seedDocument(t, library, "kernel guide", "the scheduler balances runqueues")
	seedDocument(t, library, "cookbook", "how to bake bread")

	matches, err := library.SearchContent(ctx, "scheduler", 10)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "chunk", matches[0].Kind)
	assert.Equal(t, "kernel guide", matches[0].DocumentTitle)
	assert.Contains(t, matches[0].Preview, "scheduler")

	matches, err = library.SearchContent(ctx, "cookbook", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "document", matches[0].Kind)

	_, err = library.SearchContent(ctx, "", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLibrary_AttachEmbedding_Preconditions(t *testing.T) {
	library, _, _ := newLibraryFixture(t)
	ctx := context.Background()

	doc, chunkIDs := seedDocument(t, library, "guarded", "text")

	// One embedding per chunk.
	_, err := library.AttachEmbedding(ctx, chunkIDs[0], []float32{1}, "m")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// Unknown chunk.
	_, err = library.AttachEmbedding(ctx, "missing", []float32{1}, "m")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Empty vector.
	chunks, err := library.AddChunks(ctx, doc.ID, []string{"more"})
	require.NoError(t, err)
	_, err = library.AttachEmbedding(ctx, chunks[0].ID, nil, "m")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
