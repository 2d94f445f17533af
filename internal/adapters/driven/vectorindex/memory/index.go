// Package memory provides an in-memory VectorIndex for tests and offline
// development. It mirrors the production adapter's contract, including
// per-item rejections and whole-call failures, through injectable hooks.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
)

// RejectFunc inspects an item at upsert time and returns a non-empty reason
// to refuse it. A nil hook accepts everything.
type RejectFunc func(item driven.VectorItem) string

// Index is a map-backed vector index.
type Index struct {
	mu        sync.RWMutex
	vectors   map[string]driven.VectorItem
	dimension int

	reject   RejectFunc
	failWith error
}

var _ driven.VectorIndex = (*Index)(nil)

// NewIndex creates an empty in-memory index.
func NewIndex() *Index {
	return &Index{
		vectors: make(map[string]driven.VectorItem),
	}
}

// SetRejectFunc installs a per-item rejection hook.
func (i *Index) SetRejectFunc(fn RejectFunc) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reject = fn
}

// FailWith makes every subsequent call fail with err until cleared with nil.
// The error is wrapped in domain.ErrExternalService the way a transport
// failure would be.
func (i *Index) FailWith(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failWith = err
}

// Len returns the number of stored vectors.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.vectors)
}

// Get returns a stored vector by ref.
func (i *Index) Get(ref string) (driven.VectorItem, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	item, ok := i.vectors[ref]
	return item, ok
}

// Upsert writes a batch of vectors and reports per-item outcome.
func (i *Index) Upsert(ctx context.Context, items []driven.VectorItem) (*driven.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.failWith != nil {
		return nil, fmt.Errorf("memory index: %w: %w", domain.ErrExternalService, i.failWith)
	}

	outcome := &driven.UpsertOutcome{
		Rejected: make(map[string]string),
	}
	for _, item := range items {
		if i.reject != nil {
			if reason := i.reject(item); reason != "" {
				outcome.Rejected[item.Ref] = reason
				continue
			}
		}
		i.vectors[item.Ref] = item
		if i.dimension == 0 {
			i.dimension = len(item.Vector)
		}
		outcome.Accepted = append(outcome.Accepted, item.Ref)
	}
	return outcome, nil
}

// Delete removes vectors by ref. Unknown refs are not an error.
func (i *Index) Delete(ctx context.Context, refs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.failWith != nil {
		return fmt.Errorf("memory index: %w: %w", domain.ErrExternalService, i.failWith)
	}

	for _, ref := range refs {
		delete(i.vectors, ref)
	}
	return nil
}

// Query returns the topK nearest matches by cosine similarity.
func (i *Index) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]driven.VectorMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.failWith != nil {
		return nil, fmt.Errorf("memory index: %w: %w", domain.ErrExternalService, i.failWith)
	}

	var matches []driven.VectorMatch //nolint:prealloc // filtered below
	for ref, item := range i.vectors {
		if !matchesFilter(item.Metadata, filter) {
			continue
		}
		matches = append(matches, driven.VectorMatch{
			Ref:      ref,
			Score:    cosineSimilarity(vector, item.Vector),
			Metadata: item.Metadata,
		})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Ref < matches[b].Ref
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Stats returns index statistics.
func (i *Index) Stats(ctx context.Context) (*driven.IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.failWith != nil {
		return nil, fmt.Errorf("memory index: %w: %w", domain.ErrExternalService, i.failWith)
	}

	return &driven.IndexStats{
		VectorCount: len(i.vectors),
		Dimension:   i.dimension,
		Namespaces:  map[string]int{"": len(i.vectors)},
	}, nil
}

// Close releases resources.
func (i *Index) Close() error {
	return nil
}

// matchesFilter performs exact-match filtering on metadata keys.
func matchesFilter(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions or zero vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
