package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyClaimLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Nothing recorded yet.
	record, err := store.GetIdempotencyRecord(ctx, "tenant-1", "digest-a")
	require.NoError(t, err)
	assert.Nil(t, record)

	// First claim wins, second loses.
	won, err := store.ClaimIdempotencyRecord(ctx, "tenant-1", "digest-a")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.ClaimIdempotencyRecord(ctx, "tenant-1", "digest-a")
	require.NoError(t, err)
	assert.False(t, won)

	// Same digest for a different tenant is an independent claim.
	won, err = store.ClaimIdempotencyRecord(ctx, "tenant-2", "digest-a")
	require.NoError(t, err)
	assert.True(t, won)

	// Finalize and read back.
	require.NoError(t, store.FinalizeIdempotencyRecord(ctx, "tenant-1", "digest-a", "ext-123"))

	record, err = store.GetIdempotencyRecord(ctx, "tenant-1", "digest-a")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "ext-123", record.ExternalID)

	// Finalizing twice fails: the record is no longer pending.
	err = store.FinalizeIdempotencyRecord(ctx, "tenant-1", "digest-a", "ext-456")
	require.Error(t, err)

	// Release must not touch finalized records.
	require.NoError(t, store.ReleaseIdempotencyRecord(ctx, "tenant-1", "digest-a"))
	record, err = store.GetIdempotencyRecord(ctx, "tenant-1", "digest-a")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "ext-123", record.ExternalID)
}

func TestIdempotencyReleasePending(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	won, err := store.ClaimIdempotencyRecord(ctx, "tenant-1", "digest-b")
	require.NoError(t, err)
	require.True(t, won)

	// Releasing a pending claim frees the digest for a later retry.
	require.NoError(t, store.ReleaseIdempotencyRecord(ctx, "tenant-1", "digest-b"))

	won, err = store.ClaimIdempotencyRecord(ctx, "tenant-1", "digest-b")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestIdempotencyConcurrentClaims(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	const callers = 20

	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.ClaimIdempotencyRecord(ctx, "tenant-1", "digest-race")
			if err != nil {
				errs <- err
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one caller must win the claim")
}
