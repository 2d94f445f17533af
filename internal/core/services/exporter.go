package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driving"
	"github.com/custodia-labs/embedsync-cli/internal/logger"
)

// Ensure Exporter implements the interface.
var _ driving.ExportService = (*Exporter)(nil)

// Exporter default tuning.
const (
	// DefaultBatchSize is used when the caller passes a non-positive size.
	DefaultBatchSize = 100

	// DefaultLeaseTTL is how long a pending claim is honoured before a
	// concurrent exporter may re-claim it.
	DefaultLeaseTTL = 5 * time.Minute

	// DefaultBatchTimeout bounds one upsert call against the index.
	DefaultBatchTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget per batch for retryable
	// index failures.
	DefaultMaxRetries = 3

	// DefaultMaxPasses caps the claim/export/commit cycles of one run so
	// a pathological store cannot spin the loop forever.
	DefaultMaxPasses = 100

	// retryBaseDelay is the first backoff step; each retry doubles it.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the backoff growth.
	retryMaxDelay = 8 * time.Second

	// excerptLimit bounds the chunk text copied into vector metadata.
	excerptLimit = 512
)

// ExporterConfig tunes the export pipeline. Zero values select defaults.
type ExporterConfig struct {
	LeaseTTL     time.Duration
	BatchTimeout time.Duration
	MaxRetries   int
	MaxPasses    int
}

func (c *ExporterConfig) applyDefaults() {
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = DefaultMaxPasses
	}
}

// Exporter reconciles the record store with the external vector index.
// It is the only writer of embedding sync state and external references.
type Exporter struct {
	documents  driven.DocumentStore
	chunks     driven.ChunkStore
	embeddings driven.EmbeddingStore
	index      driven.VectorIndex
	config     ExporterConfig
}

// NewExporter creates an export service.
// The index may be nil, in which case export and query operations fail with
// domain.ErrVectorIndexUnavailable.
func NewExporter(
	documents driven.DocumentStore,
	chunks driven.ChunkStore,
	embeddings driven.EmbeddingStore,
	index driven.VectorIndex,
	config ExporterConfig,
) *Exporter {
	config.applyDefaults()
	return &Exporter{
		documents:  documents,
		chunks:     chunks,
		embeddings: embeddings,
		index:      index,
		config:     config,
	}
}

// ExportUnsynced exports all unsynced/stale embeddings in batches.
func (e *Exporter) ExportUnsynced(ctx context.Context, batchSize int) (*domain.ExportReport, error) {
	return e.export(ctx, driven.ExportScope{}, batchSize)
}

// ExportDocument exports the unsynced/stale embeddings of one document.
func (e *Exporter) ExportDocument(ctx context.Context, documentID string, batchSize int) (*domain.ExportReport, error) {
	if documentID == "" {
		return nil, fmt.Errorf("export document: %w", domain.ErrInvalidInput)
	}
	return e.export(ctx, driven.ExportScope{DocumentID: documentID}, batchSize)
}

// export drives repeated claim -> upsert -> commit cycles until nothing is
// eligible, the pass cap is hit, or the index stops responding.
func (e *Exporter) export(ctx context.Context, scope driven.ExportScope, batchSize int) (*domain.ExportReport, error) {
	if e.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	report := &domain.ExportReport{}
	rejected := make(map[string]bool)
	for pass := 0; pass < e.config.MaxPasses; pass++ {
		batch, err := e.embeddings.ClaimForExport(ctx, scope, batchSize, e.config.LeaseTTL)
		if err != nil {
			return report, fmt.Errorf("claim embeddings: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		// A rejection is final for this run. The claim may pick such an
		// item up again once released; hand it back instead of
		// re-submitting a payload the index already refused.
		fresh := batch[:0]
		var handBack []string
		for _, emb := range batch {
			if rejected[emb.ID] {
				handBack = append(handBack, emb.ID)
				continue
			}
			fresh = append(fresh, emb)
		}
		if len(handBack) > 0 {
			if err := e.embeddings.Release(ctx, handBack); err != nil {
				return report, fmt.Errorf("release rejected embeddings: %w", err)
			}
		}
		if len(fresh) == 0 {
			break
		}
		report.Selected += len(fresh)

		sub, exhausted, err := e.processBatch(ctx, fresh, rejected)
		report.Add(sub)
		if err != nil {
			return report, err
		}
		if exhausted {
			// Retry budget spent; stop this run and leave the released
			// items for the next one.
			break
		}
	}

	logger.Info("Export complete: %d selected, %d succeeded, %d failed, %d skipped (%d batches)",
		report.Selected, report.Succeeded, report.Failed, report.Skipped, report.Batches)
	return report, nil
}

// processBatch upserts one claimed batch and commits per-item outcomes,
// recording index rejections in the run's rejected set so they are not
// claimed again. It returns the batch's sub-report and true when the retry
// budget was exhausted.
func (e *Exporter) processBatch(ctx context.Context, batch []domain.Embedding, rejected map[string]bool) (domain.ExportReport, bool, error) {
	var report domain.ExportReport
	items, byRef := e.buildPayloads(ctx, batch, &report)
	if len(items) == 0 {
		return report, false, nil
	}
	report.Batches++

	outcome, err := e.upsertWithRetry(ctx, items)
	if err != nil {
		// Whole-batch failure: no item may stay pending.
		e.releaseAll(byRef)
		if errors.Is(err, domain.ErrExternalService) || errors.Is(err, context.DeadlineExceeded) {
			for ref, emb := range byRef {
				report.Failed++
				report.RecordFailure(emb.ID, fmt.Sprintf("upsert %s: %v", ref, err))
			}
			return report, true, nil
		}
		if errors.Is(err, context.Canceled) {
			return report, false, err
		}
		return report, false, fmt.Errorf("upsert batch: %w", err)
	}

	now := time.Now().UTC()
	reported := make(map[string]bool, len(items))
	for _, ref := range outcome.Accepted {
		reported[ref] = true
		emb, ok := byRef[ref]
		if !ok {
			logger.Warn("Index accepted unknown ref %s", ref)
			continue
		}
		if err := e.embeddings.MarkSynced(ctx, emb.ID, ref, now); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// Lease was lost to a concurrent writer; the record is no
				// longer ours to commit.
				logger.Debug("Skipping %s: %v", emb.ID, err)
				report.Skipped++
				continue
			}
			return report, false, fmt.Errorf("commit %s: %w", emb.ID, err)
		}
		report.Succeeded++
	}
	for ref, reason := range outcome.Rejected {
		reported[ref] = true
		emb, ok := byRef[ref]
		if !ok {
			continue
		}
		rejected[emb.ID] = true
		report.Failed++
		report.RecordFailure(emb.ID, reason)
		if err := e.embeddings.Release(ctx, []string{emb.ID}); err != nil {
			return report, false, fmt.Errorf("release %s: %w", emb.ID, err)
		}
	}

	// Items the index did not report at all count as failed and are
	// released for a future pass.
	for ref, emb := range byRef {
		if reported[ref] {
			continue
		}
		report.Failed++
		report.RecordFailure(emb.ID, "no outcome reported by index")
		if err := e.embeddings.Release(ctx, []string{emb.ID}); err != nil {
			return report, false, fmt.Errorf("release %s: %w", emb.ID, err)
		}
	}

	return report, false, nil
}

// buildPayloads assembles vector items with enrichment metadata. Embeddings
// whose chunk or document is missing or soft-deleted are released and counted
// as skipped.
func (e *Exporter) buildPayloads(ctx context.Context, batch []domain.Embedding, report *domain.ExportReport) ([]driven.VectorItem, map[string]domain.Embedding) {
	items := make([]driven.VectorItem, 0, len(batch))
	byRef := make(map[string]domain.Embedding, len(batch))

	for _, emb := range batch {
		chunk, err := e.chunks.Get(ctx, emb.ChunkID)
		if err != nil {
			e.skip(ctx, emb, report, "chunk lookup", err)
			continue
		}
		doc, err := e.documents.Get(ctx, chunk.DocumentID)
		if err != nil {
			e.skip(ctx, emb, report, "document lookup", err)
			continue
		}

		ref := emb.ExportID()
		items = append(items, driven.VectorItem{
			Ref:    ref,
			Vector: emb.Vector,
			Metadata: map[string]any{
				"embedding_id":    emb.ID,
				"chunk_id":        chunk.ID,
				"chunk_index":     chunk.Index,
				"document_id":     doc.ID,
				"document_title":  doc.Title,
				"document_source": doc.Source,
				"text":            excerpt(chunk.Text, excerptLimit),
				"model":           emb.Model,
			},
		})
		byRef[ref] = emb
	}

	return items, byRef
}

// skip releases an unexportable embedding and records it.
func (e *Exporter) skip(ctx context.Context, emb domain.Embedding, report *domain.ExportReport, step string, cause error) {
	logger.Debug("Skipping embedding %s: %s: %v", emb.ID, step, cause)
	report.Skipped++
	if err := e.embeddings.Release(ctx, []string{emb.ID}); err != nil {
		logger.Warn("Failed to release %s: %v", emb.ID, err)
	}
}

// upsertWithRetry issues the batched upsert with a per-call timeout and
// bounded exponential backoff on retryable index failures.
func (e *Exporter) upsertWithRetry(ctx context.Context, items []driven.VectorItem) (*driven.UpsertOutcome, error) {
	var lastErr error
	delay := retryBaseDelay

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Retrying upsert (attempt %d/%d) after %s", attempt, e.config.MaxRetries, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.config.BatchTimeout)
		outcome, err := e.index.Upsert(callCtx, items)
		cancel()
		if err == nil {
			return outcome, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		retryable := errors.Is(err, domain.ErrExternalService) || errors.Is(err, context.DeadlineExceeded)
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

// releaseAll returns a whole claimed batch to unsynced/stale. Release errors
// are logged, not raised: the lease TTL is the backstop.
func (e *Exporter) releaseAll(byRef map[string]domain.Embedding) {
	ids := make([]string, 0, len(byRef))
	for _, emb := range byRef {
		ids = append(ids, emb.ID)
	}
	// The batch context may already be cancelled; releasing leases must
	// still be attempted.
	if err := e.embeddings.Release(context.Background(), ids); err != nil {
		logger.Warn("Failed to release batch: %v", err)
	}
}

// DeleteFromIndex removes vectors by external reference and returns the
// owning embeddings to unsynced so a future export recreates them if still
// valid locally.
func (e *Exporter) DeleteFromIndex(ctx context.Context, refs []string) error {
	if e.index == nil {
		return domain.ErrVectorIndexUnavailable
	}
	if len(refs) == 0 {
		return nil
	}
	if err := e.index.Delete(ctx, refs); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := e.embeddings.ClearVectorRef(ctx, refs); err != nil {
		return fmt.Errorf("clear vector refs: %w", err)
	}
	return nil
}

// Query runs a similarity search against the external index.
func (e *Exporter) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]driven.VectorMatch, error) {
	if e.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector: %w", domain.ErrInvalidInput)
	}
	return e.index.Query(ctx, vector, topK, filter)
}

// IndexStats returns external index statistics.
func (e *Exporter) IndexStats(ctx context.Context) (*driven.IndexStats, error) {
	if e.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	return e.index.Stats(ctx)
}

// excerpt bounds text copied into vector metadata, cutting on a rune
// boundary so the payload stays valid UTF-8.
func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
