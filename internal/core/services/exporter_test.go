package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storagemem "github.com/custodia-labs/embedsync-cli/internal/adapters/driven/storage/memory"
	indexmem "github.com/custodia-labs/embedsync-cli/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
)

// exportFixture wires an exporter against in-memory adapters with one
// seeded document.
type exportFixture struct {
	store    *storagemem.Store
	index    *indexmem.Index
	exporter *Exporter
	library  *Library
	docID    string
}

func newExportFixture(t *testing.T, cfg ExporterConfig) *exportFixture {
	t.Helper()

	store := storagemem.NewStore()
	index := indexmem.NewIndex()
	f := &exportFixture{
		store: store,
		index: index,
		exporter: NewExporter(
			store.DocumentStore(), store.ChunkStore(), store.EmbeddingStore(), index, cfg),
		library: NewLibrary(
			store.DocumentStore(), store.ChunkStore(), store.EmbeddingStore(), index),
	}

	ctx := context.Background()
	doc, err := f.library.CreateDocument(ctx, "Release Notes", "file:///notes.md", nil)
	require.NoError(t, err)
	f.docID = doc.ID
	return f
}

// addEmbedded appends a chunk with an attached embedding and returns both IDs.
func (f *exportFixture) addEmbedded(t *testing.T, text string) (chunkID, embID string) {
	t.Helper()

	ctx := context.Background()
	chunks, err := f.library.AddChunks(ctx, f.docID, []string{text})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	emb, err := f.library.AttachEmbedding(ctx, chunks[0].ID, []float32{0.1, 0.2, 0.3}, "test-model")
	require.NoError(t, err)
	return chunks[0].ID, emb.ID
}

func (f *exportFixture) embedding(t *testing.T, chunkID string) *domain.Embedding {
	t.Helper()
	emb, err := f.store.EmbeddingStore().GetByChunk(context.Background(), chunkID)
	require.NoError(t, err)
	return emb
}

func TestExporter_ExportUnsynced_Success(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})
	chunk1, emb1 := f.addEmbedded(t, "first chunk")
	chunk2, _ := f.addEmbedded(t, "second chunk")

	report, err := f.exporter.ExportUnsynced(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, report.Batches)
	assert.Equal(t, 2, f.index.Len())

	for _, chunkID := range []string{chunk1, chunk2} {
		emb := f.embedding(t, chunkID)
		assert.Equal(t, domain.SyncStateSynced, emb.State)
		assert.NotEmpty(t, emb.VectorRef)
		assert.False(t, emb.LastSyncedAt.IsZero())
	}

	// The external ref is the embedding's own ID on first export.
	assert.Equal(t, emb1, f.embedding(t, chunk1).VectorRef)

	// Metadata enrichment reaches the index.
	item, ok := f.index.Get(emb1)
	require.True(t, ok)
	assert.Equal(t, "Release Notes", item.Metadata["document_title"])
	assert.Equal(t, "first chunk", item.Metadata["text"])
	assert.Equal(t, "test-model", item.Metadata["model"])

	// An immediate second pass finds nothing eligible.
	again, err := f.exporter.ExportUnsynced(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Selected)
}

func TestExporter_ExportUnsynced_NothingEligible(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})

	report, err := f.exporter.ExportUnsynced(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 0, report.Selected)
	assert.Equal(t, 0, report.Batches)
}

func TestExporter_Export_ItemRejection(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})
	chunkGood, _ := f.addEmbedded(t, "acceptable")
	chunkBad, embBad := f.addEmbedded(t, "refused")

	refusals := 0
	f.index.SetRejectFunc(func(item driven.VectorItem) string {
		if item.Ref == embBad {
			refusals++
			return "dimension mismatch"
		}
		return ""
	})

	report, err := f.exporter.ExportUnsynced(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "dimension mismatch", report.Failures[embBad])

	// A refused payload is submitted once per run, never re-claimed and
	// re-sent within the same run.
	assert.Equal(t, 1, refusals)

	assert.Equal(t, domain.SyncStateSynced, f.embedding(t, chunkGood).State)

	// The rejected embedding was never exported, so it reverts to unsynced
	// and keeps no external reference.
	rejected := f.embedding(t, chunkBad)
	assert.Equal(t, domain.SyncStateUnsynced, rejected.State)
	assert.Empty(t, rejected.VectorRef)
}

func TestExporter_StaleReexport_ReusesRef(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})
	chunkID, embID := f.addEmbedded(t, "original text")

	ctx := context.Background()
	_, err := f.exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, embID, f.embedding(t, chunkID).VectorRef)

	// Editing the text stales the embedding.
	require.NoError(t, f.library.UpdateChunkText(ctx, chunkID, "revised text"))
	require.Equal(t, domain.SyncStateStale, f.embedding(t, chunkID).State)

	report, err := f.exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	// The re-export overwrites the existing external record in place.
	emb := f.embedding(t, chunkID)
	assert.Equal(t, domain.SyncStateSynced, emb.State)
	assert.Equal(t, embID, emb.VectorRef)
	assert.Equal(t, 1, f.index.Len())

	item, ok := f.index.Get(embID)
	require.True(t, ok)
	assert.Equal(t, "revised text", item.Metadata["text"])
}

func TestExporter_RetryExhaustion_ReleasesAndReports(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{MaxRetries: 1})
	chunkID, embID := f.addEmbedded(t, "unlucky")

	f.index.FailWith(errors.New("gateway timeout"))

	report, err := f.exporter.ExportUnsynced(context.Background(), 10)

	// Exhausted retries are reported, never raised.
	require.NoError(t, err)
	assert.Equal(t, 1, report.Selected)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Failures[embID], "gateway timeout")

	// The lease is released so the next run can try again.
	emb := f.embedding(t, chunkID)
	assert.Equal(t, domain.SyncStateUnsynced, emb.State)
}

func TestExporter_Cancellation_ReleasesLeases(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})
	chunkID, _ := f.addEmbedded(t, "interrupted")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.exporter.ExportUnsynced(ctx, 10)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// No embedding may be left pending after an aborted run.
	emb := f.embedding(t, chunkID)
	assert.NotEqual(t, domain.SyncStatePending, emb.State)
}

func TestExporter_ExportDocument_ScopesClaim(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})
	chunkA, _ := f.addEmbedded(t, "in scope")

	ctx := context.Background()
	other, err := f.library.CreateDocument(ctx, "Other", "", nil)
	require.NoError(t, err)
	chunks, err := f.library.AddChunks(ctx, other.ID, []string{"out of scope"})
	require.NoError(t, err)
	_, err = f.library.AttachEmbedding(ctx, chunks[0].ID, []float32{1, 2}, "test-model")
	require.NoError(t, err)

	report, err := f.exporter.ExportDocument(ctx, f.docID, 10)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Selected)
	assert.Equal(t, domain.SyncStateSynced, f.embedding(t, chunkA).State)
	assert.Equal(t, domain.SyncStateUnsynced, f.embedding(t, chunks[0].ID).State)
}

func TestExporter_ExportDocument_UnknownDocument(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})

	_, err := f.exporter.ExportDocument(context.Background(), "missing", 10)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExporter_NoIndexConfigured(t *testing.T) {
	store := storagemem.NewStore()
	exporter := NewExporter(
		store.DocumentStore(), store.ChunkStore(), store.EmbeddingStore(), nil, ExporterConfig{})

	_, err := exporter.ExportUnsynced(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)

	_, err = exporter.Query(context.Background(), []float32{1}, 5, nil)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)

	_, err = exporter.IndexStats(context.Background())
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

func TestExporter_DeleteFromIndex(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})
	chunkID, embID := f.addEmbedded(t, "to be removed")

	ctx := context.Background()
	_, err := f.exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, f.index.Len())

	require.NoError(t, f.exporter.DeleteFromIndex(ctx, []string{embID}))

	assert.Equal(t, 0, f.index.Len())
	emb := f.embedding(t, chunkID)
	assert.Equal(t, domain.SyncStateUnsynced, emb.State)
	assert.Empty(t, emb.VectorRef)
	assert.True(t, emb.LastSyncedAt.IsZero())
}

func TestExporter_Query_RoundTrip(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})
	_, embID := f.addEmbedded(t, "searchable")

	ctx := context.Background()
	_, err := f.exporter.ExportUnsynced(ctx, 10)
	require.NoError(t, err)

	matches, err := f.exporter.Query(ctx, []float32{0.1, 0.2, 0.3}, 5, nil)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, embID, matches[0].Ref)
	assert.InDelta(t, 1.0, matches[0].Score, 0.001)
}

func TestExporterConfig_Defaults(t *testing.T) {
	cfg := ExporterConfig{}
	cfg.applyDefaults()

	assert.Equal(t, DefaultLeaseTTL, cfg.LeaseTTL)
	assert.Equal(t, DefaultBatchTimeout, cfg.BatchTimeout)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultMaxPasses, cfg.MaxPasses)
}

func TestExcerpt_RuneBoundary(t *testing.T) {
	// "héllo" cut inside the two-byte é must back up to the rune start.
	s := "héllo"
	out := excerpt(s, 2)
	assert.Equal(t, "h", out)
	assert.True(t, len(excerpt(s, 100)) == len(s))
}

func TestExporter_BatchSizeDrivesBatchCount(t *testing.T) {
	f := newExportFixture(t, ExporterConfig{})
	for i := 0; i < 5; i++ {
		f.addEmbedded(t, "chunk "+time.Now().String())
	}

	report, err := f.exporter.ExportUnsynced(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 5, report.Selected)
	assert.Equal(t, 5, report.Succeeded)
	assert.Equal(t, 3, report.Batches)
}
