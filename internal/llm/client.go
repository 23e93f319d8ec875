// Package llm provides the generative-tier capability client.
package llm

import (
	"context"
	"errors"
)

// Provider failure taxonomy. Transient failures degrade to "no candidate" in
// the decision pipeline; they are never retried inline.
var (
	// ErrUnavailable indicates a transient upstream failure (timeout,
	// connection error, 5xx).
	ErrUnavailable = errors.New("llm provider unavailable")

	// ErrInvalidResponse indicates the provider replied with something
	// unusable. Retrying the same request is unlikely to help.
	ErrInvalidResponse = errors.New("invalid llm response")
)

// Client defines the interface for generative providers.
type Client interface {
	Classify(ctx context.Context, prompt string) (ClassificationResponse, error)
}

// ClassificationResponse contains the provider's classification result.
type ClassificationResponse struct {
	Label      string
	Rationale  string
	Confidence float64 // Provider-documented range [0,1]; calibrated downstream
	Cost       float64 // Estimated spend for this call
}
