// Package sink commits ledger payloads to the external accounting system at
// most once per (tenant, payload digest).
package sink

import (
	"errors"
	"fmt"
	"time"
)

// Posting failure taxonomy. Callers decide retry policy from these; the sink
// itself never retries.
var (
	// ErrUnbalancedPayload indicates debits and credits disagree beyond
	// the balance epsilon. Caller-correctable, never retryable as-is.
	ErrUnbalancedPayload = errors.New("unbalanced payload")

	// ErrUpstreamUnavailable indicates the external ledger is down. Safe
	// to retry later; no idempotency record is kept.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamRejected indicates the external ledger rejected the
	// payload semantically, e.g. an unknown account reference. Not
	// retryable without a payload change.
	ErrUpstreamRejected = errors.New("upstream rejected payload")

	// ErrRateLimited indicates the external ledger throttled the call.
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitError carries the upstream's retry-after hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
