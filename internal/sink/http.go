package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/common"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

const (
	defaultPostTimeout = 30 * time.Second
	defaultRetryAfter  = 30 * time.Second
)

// HTTPPoster submits ledger payloads to an external accounting API over
// HTTP. It implements service.LedgerPoster.
type HTTPPoster struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// HTTPPosterOption configures an HTTPPoster.
type HTTPPosterOption func(*HTTPPoster)

// WithAPIKey sets the bearer token sent with each request.
func WithAPIKey(key string) HTTPPosterOption {
	return func(p *HTTPPoster) {
		p.apiKey = key
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) HTTPPosterOption {
	return func(p *HTTPPoster) {
		p.httpClient.Timeout = timeout
	}
}

// NewHTTPPoster creates a poster for the ledger API at baseURL.
func NewHTTPPoster(baseURL string, opts ...HTTPPosterOption) (*HTTPPoster, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: ledger base url", common.ErrMissingConfig)
	}

	poster := &HTTPPoster{
		httpClient: &http.Client{Timeout: defaultPostTimeout},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(poster)
	}
	return poster, nil
}

// entryResponse is the ledger API's acknowledgment of a posted entry.
type entryResponse struct {
	ID string `json:"id"`
}

// Submit posts one payload and returns the external document id. Status codes
// map onto the sink's failure taxonomy so the caller can pick a retry policy.
func (p *HTTPPoster) Submit(ctx context.Context, payload model.LedgerPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/entries", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &RateLimitError{RetryAfter: retryAfter(resp)}

	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)

	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstreamRejected, resp.StatusCode, string(detail))
	}

	var entry entryResponse
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return "", fmt.Errorf("failed to decode ledger response: %w", err)
	}
	if entry.ID == "" {
		return "", fmt.Errorf("%w: response missing entry id", ErrUpstreamRejected)
	}

	return entry.ID, nil
}

// retryAfter parses the Retry-After header, falling back to a fixed delay.
func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}
