package sink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPPosterSubmit(t *testing.T) {
	var gotAuth string
	var gotPayload model.LedgerPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "doc-42"}`))
	}))
	defer server.Close()

	poster, err := NewHTTPPoster(server.URL, WithAPIKey("secret"))
	require.NoError(t, err)

	payload := model.LedgerPayload{
		Currency: "USD",
		Lines: []model.LedgerLine{
			{AccountRef: "Office Supplies", Debit: 45.23},
			{AccountRef: "clearing", Credit: 45.23},
		},
	}

	id, err := poster.Submit(context.Background(), payload)

	require.NoError(t, err)
	assert.Equal(t, "doc-42", id)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "USD", gotPayload.Currency)
	assert.Len(t, gotPayload.Lines, 2)
}

func TestHTTPPosterStatusMapping(t *testing.T) {
	tests := []struct {
		wantErr    error
		name       string
		statusCode int
	}{
		{name: "server error", statusCode: http.StatusInternalServerError, wantErr: ErrUpstreamUnavailable},
		{name: "bad gateway", statusCode: http.StatusBadGateway, wantErr: ErrUpstreamUnavailable},
		{name: "semantic rejection", statusCode: http.StatusUnprocessableEntity, wantErr: ErrUpstreamRejected},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, wantErr: ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			poster, err := NewHTTPPoster(server.URL)
			require.NoError(t, err)

			_, err = poster.Submit(context.Background(), model.LedgerPayload{Currency: "USD"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPPosterRetryAfterHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	poster, err := NewHTTPPoster(server.URL)
	require.NoError(t, err)

	_, err = poster.Submit(context.Background(), model.LedgerPayload{Currency: "USD"})

	var rateLimit *RateLimitError
	require.ErrorAs(t, err, &rateLimit)
	assert.Equal(t, 7*time.Second, rateLimit.RetryAfter)
}

func TestHTTPPosterUnreachable(t *testing.T) {
	// A closed server is indistinguishable from an outage.
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	poster, err := NewHTTPPoster(server.URL)
	require.NoError(t, err)

	_, err = poster.Submit(context.Background(), model.LedgerPayload{Currency: "USD"})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestHTTPPosterMissingEntryID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	poster, err := NewHTTPPoster(server.URL)
	require.NoError(t, err)

	_, err = poster.Submit(context.Background(), model.LedgerPayload{Currency: "USD"})
	assert.ErrorIs(t, err, ErrUpstreamRejected)
}

func TestNewHTTPPosterRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPPoster("")
	require.Error(t, err)
}

func TestHTTPPosterContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	poster, err := NewHTTPPoster(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = poster.Submit(ctx, model.LedgerPayload{Currency: "USD"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, context.DeadlineExceeded))
}
