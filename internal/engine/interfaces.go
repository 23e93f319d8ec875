// Package engine orchestrates the tiered decision pipeline: rule lookup,
// history search, generative inference, calibration, the eligibility gates,
// and handoff to the posting sink.
package engine

import (
	"context"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/sink"
)

// RuleProvider is the deterministic first tier. A nil candidate with a nil
// error means no rule matched.
type RuleProvider interface {
	Lookup(ctx context.Context, record model.Record) (*model.Candidate, error)
}

// MemoryProvider is the labeled-history second tier. A nil candidate with a
// nil error means no neighbor cleared the similarity floor.
type MemoryProvider interface {
	Nearest(ctx context.Context, record model.Record) (*model.Candidate, error)
}

// GenerativeProvider is the metered third tier. Its errors may be transient;
// the engine degrades them to an ineligible decision rather than retrying.
type GenerativeProvider interface {
	Infer(ctx context.Context, record model.Record) (*model.Candidate, error)
}

// Poster posts eligible payloads. Satisfied by *sink.Sink.
type Poster interface {
	Post(ctx context.Context, tenantID string, payload model.LedgerPayload) (sink.Result, error)
}

// Store is the slice of the persistence layer the engine depends on.
type Store interface {
	GetTenantSettings(ctx context.Context, tenantID string) (*model.TenantSettings, error)
	GetBudgetState(ctx context.Context, tenantID string) (*model.BudgetState, error)
	AddSpend(ctx context.Context, tenantID string, cost float64) (*model.BudgetState, error)
	CountConsistentLabels(ctx context.Context, tenantID, counterparty, label string) (int, error)
	AppendDecision(ctx context.Context, decision *model.Decision) error
	SaveLabeledExample(ctx context.Context, example *model.LabeledExample) error
}
