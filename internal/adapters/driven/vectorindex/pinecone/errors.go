package pinecone

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
)

// APIError represents a Pinecone API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinecone: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap classifies the failure for errors.Is. Transport-level and
// server-side failures (5xx, 429, auth) are whole-call failures the caller
// may retry; a 4xx payload refusal is a rejection of the submitted data.
func (e *APIError) Unwrap() error {
	if isRejectionStatus(e.StatusCode) {
		return domain.ErrExternalRejected
	}
	return domain.ErrExternalService
}

// isRejectionStatus reports whether the status refuses the payload rather
// than failing the service call.
func isRejectionStatus(status int) bool {
	return status == 400 || status == 413 || status == 422
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// IsRateLimited checks if the error indicates quota exhaustion.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
