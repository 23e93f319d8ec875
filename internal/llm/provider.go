package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// Provider adapts a Client into the generative decision tier: it builds the
// classification prompt from a record and converts the response into a
// candidate. Responses are cached so an abandoned-and-retried pipeline run
// doesn't pay twice for the same record.
type Provider struct {
	client Client
	cache  *responseCache
}

// NewProvider creates a generative provider backed by the given client.
func NewProvider(client Client) *Provider {
	return &Provider{
		client: client,
		cache:  newResponseCache(15 * time.Minute),
	}
}

// Infer classifies a record through the generative capability. It makes at
// most one upstream call per miss: failures, transient or not, surface to the
// caller untouched. The decision engine degrades them to "no candidate", and
// any retrying belongs to whoever drives the engine.
func (p *Provider) Infer(ctx context.Context, record model.Record) (*model.Candidate, error) {
	key := cacheKey(record)
	if response, ok := p.cache.get(key); ok {
		return candidateFrom(record, response, 0), nil
	}

	response, err := p.client.Classify(ctx, buildPrompt(record))
	if err != nil {
		return nil, err
	}

	p.cache.set(key, response)
	return candidateFrom(record, response, response.Cost), nil
}

// Close releases the provider's cache resources.
func (p *Provider) Close() {
	p.cache.stop()
}

func candidateFrom(record model.Record, response ClassificationResponse, cost float64) *model.Candidate {
	return &model.Candidate{
		RecordID:  record.ID,
		Label:     response.Label,
		RawScore:  response.Confidence,
		Rationale: response.Rationale,
		Tier:      model.TierGenerative,
		Cost:      cost,
	}
}

// cacheKey buckets by tenant, counterparty, and cent-exact amount. Distinct
// records with identical classification inputs share one spend.
func cacheKey(record model.Record) string {
	return fmt.Sprintf("%s|%s|%.2f|%s", record.TenantID, record.Counterparty, record.Amount, record.Currency)
}

// buildPrompt renders the record for the model.
func buildPrompt(record model.Record) string {
	return fmt.Sprintf(
		"Counterparty: %s\nDescription: %s\nAmount: %.2f %s\nDate: %s",
		record.Counterparty,
		record.Description,
		record.Amount,
		record.Currency,
		record.OccurredAt.Format("2006-01-02"),
	)
}
