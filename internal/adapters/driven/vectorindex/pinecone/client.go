// Package pinecone adapts the Pinecone REST API to the VectorIndex port.
//
// The adapter speaks plain HTTP with JSON bodies and an Api-Key header.
// Whole-call failures (transport, auth, quota, 5xx) wrap
// domain.ErrExternalService so the sync coordinator retries the batch;
// payload refusals (400, 413, 422) are folded into the UpsertOutcome as
// per-item rejections and never surface as an error.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RequestRate is the proactive throttle rate in requests per second.
	RequestRate = 5

	// RequestBurst is the throttle burst size.
	RequestBurst = 10
)

// Config holds the connection settings for a Pinecone index.
type Config struct {
	// Host is the index endpoint, e.g. https://myindex-abc123.svc.pinecone.io.
	Host string

	// APIKey authenticates requests via the Api-Key header.
	APIKey string

	// Namespace partitions vectors within the index. Optional.
	Namespace string
}

// Client implements driven.VectorIndex against the Pinecone REST API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

var _ driven.VectorIndex = (*Client)(nil)

// NewClient creates a Pinecone client for the configured index.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("pinecone host not configured: %w", domain.ErrValidation)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone api key not configured: %w", domain.ErrValidation)
	}
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(RequestRate), RequestBurst),
	}, nil
}

// ==================== VectorIndex ====================

type upsertRequest struct {
	Vectors   []upsertVector `json:"vectors"`
	Namespace string         `json:"namespace,omitempty"`
}

type upsertVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// Upsert writes a batch of vectors and reports per-item outcome.
// Pinecone accepts or refuses a batch as a whole, so a payload refusal is
// reported as a rejection of every submitted ref.
func (c *Client) Upsert(ctx context.Context, items []driven.VectorItem) (*driven.UpsertOutcome, error) {
	outcome := &driven.UpsertOutcome{
		Rejected: make(map[string]string),
	}
	if len(items) == 0 {
		return outcome, nil
	}

	req := upsertRequest{
		Vectors:   make([]upsertVector, 0, len(items)),
		Namespace: c.cfg.Namespace,
	}
	for _, item := range items {
		req.Vectors = append(req.Vectors, upsertVector{
			ID:       item.Ref,
			Values:   item.Vector,
			Metadata: item.Metadata,
		})
	}

	var resp upsertResponse
	err := c.post(ctx, "/vectors/upsert", req, &resp)
	if err != nil {
		var apiErr *APIError
		if asRejection(err, &apiErr) {
			for _, item := range items {
				outcome.Rejected[item.Ref] = apiErr.Message
			}
			return outcome, nil
		}
		return nil, err
	}

	for _, item := range items {
		outcome.Accepted = append(outcome.Accepted, item.Ref)
	}
	return outcome, nil
}

type deleteRequest struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace,omitempty"`
}

// Delete removes vectors by external reference. Unknown refs are not an
// error; Pinecone treats deletes as idempotent.
func (c *Client) Delete(ctx context.Context, refs []string) error {
	if len(refs) == 0 {
		return nil
	}

	req := deleteRequest{
		IDs:       refs,
		Namespace: c.cfg.Namespace,
	}
	return c.post(ctx, "/vectors/delete", req, nil)
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	Namespace       string         `json:"namespace,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []queryMatch `json:"matches"`
}

type queryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Query returns the topK nearest matches to the given vector.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]driven.VectorMatch, error) {
	if topK <= 0 {
		topK = 10
	}

	req := queryRequest{
		Vector:          vector,
		TopK:            topK,
		Filter:          filter,
		Namespace:       c.cfg.Namespace,
		IncludeMetadata: true,
	}

	var resp queryResponse
	if err := c.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}

	matches := make([]driven.VectorMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, driven.VectorMatch{
			Ref:      m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return matches, nil
}

type statsResponse struct {
	Namespaces map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
}

// Stats returns index statistics.
func (c *Client) Stats(ctx context.Context) (*driven.IndexStats, error) {
	var resp statsResponse
	if err := c.post(ctx, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return nil, err
	}

	stats := &driven.IndexStats{
		VectorCount: resp.TotalVectorCount,
		Dimension:   resp.Dimension,
		Namespaces:  make(map[string]int, len(resp.Namespaces)),
	}
	for name, ns := range resp.Namespaces {
		stats.Namespaces[name] = ns.VectorCount
	}
	return stats, nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// ==================== Transport ====================

type errorResponse struct {
	Message string `json:"message"`
}

// post performs a rate-limited JSON POST and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	url := c.cfg.Host + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Api-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling pinecone: %w: %w", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w: %w", domain.ErrExternalService, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data, resp.StatusCode),
			URL:        url,
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorMessage extracts the error message from a Pinecone error body.
func errorMessage(data []byte, status int) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Message != "" {
		return er.Message
	}
	if len(data) > 0 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return msg
	}
	return http.StatusText(status)
}

// asRejection reports whether err is a payload refusal and fills apiErr.
func asRejection(err error, apiErr **APIError) bool {
	var e *APIError
	if !errors.As(err, &e) {
		return false
	}
	if !isRejectionStatus(e.StatusCode) {
		return false
	}
	*apiErr = e
	return true
}
