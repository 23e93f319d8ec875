// Package memory implements the history tier: nearest-neighbor lookups over a
// tenant's labeled examples. It sits between the rule tier and the generative
// tier and costs nothing to consult.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ContrejfC/ai-bookkeeper/internal/match"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// Defaults for the history search. The floor keeps weak neighbors from
// producing spurious candidates.
const (
	DefaultSimilarityFloor = 0.80
	DefaultSearchLimit     = 200

	// amountWeight blends amount proximity into the neighbor similarity.
	// Counterparty name dominates; amount only nudges.
	nameWeight   = 0.85
	amountWeight = 0.15
)

// Store is the slice of the persistence layer the history tier reads.
type Store interface {
	GetLabeledExamples(ctx context.Context, tenantID string, limit int) ([]model.LabeledExample, error)
}

// Provider searches labeled history for records similar to the one being
// decided. Results are deterministic for a fixed history.
type Provider struct {
	store Store
	floor float64
	limit int
}

// Option configures a Provider.
type Option func(*Provider)

// WithSimilarityFloor overrides the minimum neighbor similarity.
func WithSimilarityFloor(floor float64) Option {
	return func(p *Provider) {
		p.floor = floor
	}
}

// WithSearchLimit caps how many recent examples are scanned per lookup.
func WithSearchLimit(limit int) Option {
	return func(p *Provider) {
		p.limit = limit
	}
}

// NewProvider creates a history provider backed by the given store.
func NewProvider(store Store, opts ...Option) *Provider {
	provider := &Provider{
		store: store,
		floor: DefaultSimilarityFloor,
		limit: DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// Nearest returns a candidate drawn from the tenant's labeled history, or nil
// when no example clears the similarity floor. The candidate's score is the
// similarity-weighted share of neighbors agreeing on the winning label,
// scaled by the best neighbor's similarity.
func (p *Provider) Nearest(ctx context.Context, record model.Record) (*model.Candidate, error) {
	examples, err := p.store.GetLabeledExamples(ctx, record.TenantID, p.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load labeled history: %w", err)
	}

	votes := make(map[string]float64)
	best := make(map[string]float64)
	var total float64

	for _, example := range examples {
		sim := p.similarity(record, example)
		if sim < p.floor {
			continue
		}
		votes[example.Label] += sim
		total += sim
		if sim > best[example.Label] {
			best[example.Label] = sim
		}
	}

	if total == 0 {
		return nil, nil //nolint:nilnil // No neighbor is a valid result
	}

	label := winningLabel(votes)
	score := (votes[label] / total) * best[label]

	return &model.Candidate{
		RecordID:  record.ID,
		Label:     label,
		RawScore:  score,
		Rationale: fmt.Sprintf("similar to %d labeled record(s)", countNeighbors(votes, label, best)),
		Tier:      model.TierMemory,
	}, nil
}

// similarity blends counterparty name similarity with amount proximity.
func (p *Provider) similarity(record model.Record, example model.LabeledExample) float64 {
	name := match.NameSimilarity(record.Counterparty, example.Counterparty)
	return nameWeight*name + amountWeight*amountProximity(record.Amount, example.Amount)
}

// amountProximity decays linearly with the relative difference between the
// two amounts, reaching zero at a 100% difference.
func amountProximity(a, b float64) float64 {
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return 1.0
	}
	diff := math.Abs(a-b) / larger
	if diff >= 1.0 {
		return 0.0
	}
	return 1.0 - diff
}

// winningLabel picks the label with the highest vote weight, breaking ties
// alphabetically so the result is stable.
func winningLabel(votes map[string]float64) string {
	labels := make([]string, 0, len(votes))
	for label := range votes {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var winner string
	var top float64
	for _, label := range labels {
		if votes[label] > top {
			winner = label
			top = votes[label]
		}
	}
	return winner
}

// countNeighbors is only used for the rationale text; the exact count of
// neighbors with the winning label is approximated by the vote weight divided
// by the strongest single vote, rounded up.
func countNeighbors(votes map[string]float64, label string, best map[string]float64) int {
	if best[label] == 0 {
		return 0
	}
	return int(math.Ceil(votes[label] / best[label]))
}
