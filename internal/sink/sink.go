package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/service"
)

// Store is the slice of the persistence layer the sink depends on. The
// durable unique constraint on (tenant, digest) behind Claim is the sole
// source of truth for at-most-once posting; no in-process lock would survive
// independent caller processes.
type Store interface {
	GetIdempotencyRecord(ctx context.Context, tenantID, digest string) (*model.IdempotencyRecord, error)
	ClaimIdempotencyRecord(ctx context.Context, tenantID, digest string) (bool, error)
	FinalizeIdempotencyRecord(ctx context.Context, tenantID, digest, externalID string) error
	ReleaseIdempotencyRecord(ctx context.Context, tenantID, digest string) error
}

// Result is the outcome of one post attempt.
type Result struct {
	ExternalID string
	Digest     string
	Duplicate  bool
}

// Sink posts ledger payloads with at-most-once semantics per (tenant,
// digest). It never retries the external call; retries belong to the caller.
type Sink struct {
	store        Store
	poster       service.LedgerPoster
	pollInterval time.Duration
}

// New creates a posting sink.
func New(store Store, poster service.LedgerPoster) *Sink {
	return &Sink{
		store:        store,
		poster:       poster,
		pollInterval: 20 * time.Millisecond,
	}
}

// Post commits the payload to the external ledger at most once. Re-posting a
// payload with identical content, in any line order, returns the original
// external id with Duplicate set and makes no external call.
//
// Balance is validated here even though the decision engine validates it too:
// the sink must be safely callable on its own, e.g. for replays.
func (s *Sink) Post(ctx context.Context, tenantID string, payload model.LedgerPayload) (Result, error) {
	if tenantID == "" {
		return Result{}, fmt.Errorf("tenant id is required")
	}
	if !payload.Balanced() {
		return Result{}, fmt.Errorf("%w: debits %.2f, credits %.2f",
			ErrUnbalancedPayload, payload.TotalDebit(), payload.TotalCredit())
	}

	digest := Digest(payload)
	result := Result{Digest: digest}

	for {
		record, err := s.store.GetIdempotencyRecord(ctx, tenantID, digest)
		if err != nil {
			return result, fmt.Errorf("failed to look up idempotency record: %w", err)
		}

		switch {
		case record != nil && record.ExternalID != "":
			// Already posted: short-circuit without an external call.
			result.ExternalID = record.ExternalID
			result.Duplicate = true
			return result, nil

		case record != nil:
			// Another caller holds the claim and its post is in flight.
			// Wait for it to finalize or release.
			if err := s.wait(ctx); err != nil {
				return result, err
			}

		default:
			won, err := s.store.ClaimIdempotencyRecord(ctx, tenantID, digest)
			if err != nil {
				return result, fmt.Errorf("failed to claim idempotency record: %w", err)
			}
			if !won {
				// Lost the race; loop around and observe the winner.
				continue
			}

			externalID, postErr := s.submit(ctx, tenantID, digest, payload)
			if postErr != nil {
				return result, postErr
			}
			result.ExternalID = externalID
			return result, nil
		}
	}
}

// submit performs the single external call for a won claim.
func (s *Sink) submit(ctx context.Context, tenantID, digest string, payload model.LedgerPayload) (string, error) {
	externalID, err := s.poster.Submit(ctx, Canonicalize(payload))
	if err != nil {
		// Drop the claim so a later retry can attempt the post again. No
		// idempotency record survives a failed external call.
		if releaseErr := s.store.ReleaseIdempotencyRecord(ctx, tenantID, digest); releaseErr != nil {
			slog.Error("Failed to release idempotency claim after post failure",
				"tenant_id", tenantID,
				"digest", digest,
				"error", releaseErr)
		}
		return "", fmt.Errorf("ledger post failed: %w", err)
	}

	if err := s.store.FinalizeIdempotencyRecord(ctx, tenantID, digest, externalID); err != nil {
		// The external document exists but the record didn't stick; surface
		// loudly rather than invent a second source of truth.
		return "", fmt.Errorf("posted %s but failed to finalize idempotency record: %w", externalID, err)
	}

	return externalID, nil
}

// wait sleeps one poll interval or until the caller gives up.
func (s *Sink) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.pollInterval):
		return nil
	}
}
