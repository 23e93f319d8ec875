package sink

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*Sink, *storage.SQLiteStorage, *MockPoster) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "sink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	poster := NewMockPoster()
	return New(store, poster), store, poster
}

func balancedPayload() model.LedgerPayload {
	return model.LedgerPayload{
		Currency: "USD",
		Lines: []model.LedgerLine{
			{AccountRef: "Office Supplies", Debit: 45.23, Memo: "staples order"},
			{AccountRef: "clearing", Credit: 45.23, Memo: "staples order"},
		},
	}
}

func TestPostRejectsUnbalancedPayload(t *testing.T) {
	sink, store, poster := newTestSink(t)
	ctx := context.Background()

	payload := balancedPayload()
	payload.Lines[0].Debit = 50.00

	_, err := sink.Post(ctx, "tenant-1", payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnbalancedPayload)

	// Rejected before hashing or posting: no external call, no record.
	assert.Zero(t, poster.Calls())
	record, err := store.GetIdempotencyRecord(ctx, "tenant-1", Digest(payload))
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestPostThenDuplicate(t *testing.T) {
	sink, _, poster := newTestSink(t)
	ctx := context.Background()

	first, err := sink.Post(ctx, "tenant-1", balancedPayload())
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "ext-1", first.ExternalID)
	assert.Equal(t, 1, poster.Calls())

	// Same content, different line order: duplicate, no new external call.
	reordered := balancedPayload()
	reordered.Lines[0], reordered.Lines[1] = reordered.Lines[1], reordered.Lines[0]

	second, err := sink.Post(ctx, "tenant-1", reordered)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ExternalID, second.ExternalID)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, 1, poster.Calls())
}

func TestPostTenantsAreIsolated(t *testing.T) {
	sink, _, poster := newTestSink(t)
	ctx := context.Background()

	first, err := sink.Post(ctx, "tenant-1", balancedPayload())
	require.NoError(t, err)
	second, err := sink.Post(ctx, "tenant-2", balancedPayload())
	require.NoError(t, err)

	assert.False(t, second.Duplicate)
	assert.NotEqual(t, first.ExternalID, second.ExternalID)
	assert.Equal(t, 2, poster.Calls())
}

func TestPostConcurrentCallers(t *testing.T) {
	sink, _, poster := newTestSink(t)
	ctx := context.Background()

	// Latency widens the race window between claim and finalize.
	poster.SetLatency(50 * time.Millisecond)

	const callers = 12

	var wg sync.WaitGroup
	results := make(chan Result, callers)
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			// Shuffle line order per caller; content is identical.
			payload := balancedPayload()
			if i%2 == 1 {
				payload.Lines[0], payload.Lines[1] = payload.Lines[1], payload.Lines[0]
			}

			result, err := sink.Post(ctx, "tenant-1", payload)
			if err != nil {
				errs <- err
				return
			}
			results <- result
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, poster.Calls(), "exactly one external call")

	duplicates := 0
	for result := range results {
		assert.Equal(t, "ext-1", result.ExternalID, "all callers observe the winner's id")
		if result.Duplicate {
			duplicates++
		}
	}
	assert.Equal(t, callers-1, duplicates)
}

func TestPostUpstreamUnavailableIsRetryable(t *testing.T) {
	sink, store, poster := newTestSink(t)
	ctx := context.Background()

	poster.SetError(ErrUpstreamUnavailable)

	_, err := sink.Post(ctx, "tenant-1", balancedPayload())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	// No idempotency record survives the failure, so a retry can post.
	record, err := store.GetIdempotencyRecord(ctx, "tenant-1", Digest(balancedPayload()))
	require.NoError(t, err)
	assert.Nil(t, record)

	poster.SetError(nil)
	result, err := sink.Post(ctx, "tenant-1", balancedPayload())
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
}

func TestPostUpstreamRejected(t *testing.T) {
	sink, _, poster := newTestSink(t)

	poster.SetError(ErrUpstreamRejected)

	_, err := sink.Post(context.Background(), "tenant-1", balancedPayload())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamRejected)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestPostRateLimited(t *testing.T) {
	sink, _, poster := newTestSink(t)

	poster.SetError(&RateLimitError{RetryAfter: 30 * time.Second})

	_, err := sink.Post(context.Background(), "tenant-1", balancedPayload())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, 30*time.Second, rateErr.RetryAfter)
}

func TestPostWaiterAbandonsOnContextCancel(t *testing.T) {
	sink, store, _ := newTestSink(t)

	// Simulate a stuck in-flight claim held by another process.
	won, err := store.ClaimIdempotencyRecord(context.Background(), "tenant-1", Digest(balancedPayload()))
	require.NoError(t, err)
	require.True(t, won)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = sink.Post(ctx, "tenant-1", balancedPayload())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
