package cli

import (
	"context"

	storagemem "github.com/custodia-labs/embedsync-cli/internal/adapters/driven/storage/memory"
	indexmem "github.com/custodia-labs/embedsync-cli/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/embedsync-cli/internal/core/services"
)

// IDs seeded by setupTestServices, for tests that address specific records.
var (
	testDocID   string
	testChunkID string
)

// setupTestServices swaps the package services for memory-backed ones seeded
// with one document, one chunk and one embedding. The returned cleanup
// restores the previous services.
func setupTestServices() func() {
	oldLibrary := libraryService
	oldExport := exportService

	memStore := storagemem.NewStore()
	memIndex := indexmem.NewIndex()

	library := services.NewLibrary(memStore.DocumentStore(), memStore.ChunkStore(),
		memStore.EmbeddingStore(), memIndex)
	exporter := services.NewExporter(memStore.DocumentStore(), memStore.ChunkStore(),
		memStore.EmbeddingStore(), memIndex, services.ExporterConfig{})

	ctx := context.Background()
	doc, err := library.CreateDocument(ctx, "Test Document 1", "file:///notes.md", nil)
	if err != nil {
		panic(err)
	}
	chunks, err := library.AddChunks(ctx, doc.ID, []string{"hello embedsync world"})
	if err != nil {
		panic(err)
	}
	if _, err := library.AttachEmbedding(ctx, chunks[0].ID, []float32{0.1, 0.2, 0.3}, "test-model"); err != nil {
		panic(err)
	}

	testDocID = doc.ID
	testChunkID = chunks[0].ID
	libraryService = library
	exportService = exporter

	return func() {
		libraryService = oldLibrary
		exportService = oldExport
		testDocID = ""
		testChunkID = ""
	}
}
