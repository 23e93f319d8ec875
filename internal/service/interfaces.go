// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// DecisionFilter defines filtering options for audit log queries.
type DecisionFilter struct {
	Start    *time.Time
	End      *time.Time
	TenantID string
	Reason   model.ReasonCode
	Limit    int
}

// Storage defines the contract for the persistence layer: the idempotency
// record store, budget counters, the append-only audit log, labeled history,
// pattern rules, and tenant settings.
type Storage interface {
	// Idempotency record operations. Claim performs an atomic conditional
	// insert of a pending record and reports whether this caller won it;
	// the unique (tenant, digest) constraint is the sole source of truth.
	GetIdempotencyRecord(ctx context.Context, tenantID, digest string) (*model.IdempotencyRecord, error)
	ClaimIdempotencyRecord(ctx context.Context, tenantID, digest string) (bool, error)
	FinalizeIdempotencyRecord(ctx context.Context, tenantID, digest, externalID string) error
	ReleaseIdempotencyRecord(ctx context.Context, tenantID, digest string) error

	// Budget operations. AddSpend must be atomic under concurrent callers.
	GetBudgetState(ctx context.Context, tenantID string) (*model.BudgetState, error)
	AddSpend(ctx context.Context, tenantID string, cost float64) (*model.BudgetState, error)
	ResetBudget(ctx context.Context, tenantID string) error

	// Audit log operations. The log is append-only; re-runs create new rows.
	AppendDecision(ctx context.Context, decision *model.Decision) error
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error)

	// Labeled history operations.
	SaveLabeledExample(ctx context.Context, example *model.LabeledExample) error
	GetLabeledExamples(ctx context.Context, tenantID string, limit int) ([]model.LabeledExample, error)
	CountConsistentLabels(ctx context.Context, tenantID, counterparty, label string) (int, error)

	// Rule operations.
	GetRules(ctx context.Context, tenantID string) ([]model.Rule, error)
	SaveRule(ctx context.Context, rule *model.Rule) error
	IncrementRuleUseCount(ctx context.Context, id int) error

	// Tenant settings.
	GetTenantSettings(ctx context.Context, tenantID string) (*model.TenantSettings, error)
	SaveTenantSettings(ctx context.Context, settings *model.TenantSettings) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// LedgerPoster is the only interface the posting sink uses to reach the
// external accounting system. Implementations return a typed error
// distinguishing validation failures, rate limits, and outages.
type LedgerPoster interface {
	Submit(ctx context.Context, payload model.LedgerPayload) (string, error)
}
