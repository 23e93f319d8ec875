package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ContrejfC/ai-bookkeeper/internal/calibrate"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/sink"
)

// PayloadBuilder renders the balanced ledger entry for a labeled record.
// Overridable so callers with their own charting conventions can plug in.
type PayloadBuilder func(record model.Record, label string, settings *model.TenantSettings) model.LedgerPayload

// Outcome is the result of one pipeline run for one record: the persisted
// decision, plus the payload and post result when the record auto-posted.
type Outcome struct {
	Decision *model.Decision
	Post     *sink.Result
	Payload  model.LedgerPayload
}

// Engine runs records through the decision tiers in strict escalation order
// and applies the eligibility gates. It never mutates prior decisions; every
// run appends a new audit row.
type Engine struct {
	store        Store
	rules        RuleProvider
	memory       MemoryProvider
	generative   GenerativeProvider
	calibrator   *calibrate.Calibrator
	poster       Poster
	buildPayload PayloadBuilder
}

// Option configures an Engine.
type Option func(*Engine)

// WithPoster attaches a posting sink; eligible decisions are posted.
func WithPoster(poster Poster) Option {
	return func(e *Engine) {
		e.poster = poster
	}
}

// WithPayloadBuilder overrides the default double-entry payload layout.
func WithPayloadBuilder(builder PayloadBuilder) Option {
	return func(e *Engine) {
		e.buildPayload = builder
	}
}

// New creates a decision engine.
func New(store Store, rules RuleProvider, memory MemoryProvider, generative GenerativeProvider, calibrator *calibrate.Calibrator, opts ...Option) *Engine {
	engine := &Engine{
		store:        store,
		rules:        rules,
		memory:       memory,
		generative:   generative,
		calibrator:   calibrator,
		buildPayload: DefaultPayloadBuilder,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Decide runs one record through the tiers and gates and appends the decision
// to the audit log. It never posts; use Process for the full pipeline.
func (e *Engine) Decide(ctx context.Context, record model.Record) (*model.Decision, error) {
	decision, _, err := e.decide(ctx, record)
	return decision, err
}

// Process decides a record and, when it is eligible and a poster is attached,
// commits the payload through the sink. A successful post also saves the
// record into labeled history so the memory tier learns from it.
func (e *Engine) Process(ctx context.Context, record model.Record) (*Outcome, error) {
	decision, payload, err := e.decide(ctx, record)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Decision: decision}
	if !decision.Eligible {
		return outcome, nil
	}
	outcome.Payload = payload

	if e.poster == nil {
		return outcome, nil
	}

	result, err := e.poster.Post(ctx, record.TenantID, payload)
	if err != nil {
		return outcome, fmt.Errorf("failed to post record %s: %w", record.ID, err)
	}
	outcome.Post = &result

	example := &model.LabeledExample{
		TenantID:     record.TenantID,
		RecordID:     record.ID,
		Counterparty: record.Counterparty,
		Label:        decision.Label,
		Amount:       record.Amount,
	}
	if err := e.store.SaveLabeledExample(ctx, example); err != nil {
		slog.Warn("Failed to save labeled example after post",
			"tenant_id", record.TenantID,
			"record_id", record.ID,
			"error", err)
	}

	return outcome, nil
}

// decide produces the decision and its payload. The gates are evaluated in a
// fixed order so reason codes are deterministic: missing candidate, cold
// start, imbalance, then threshold. Rule-tier candidates bypass cold start.
func (e *Engine) decide(ctx context.Context, record model.Record) (*model.Decision, model.LedgerPayload, error) {
	settings, err := e.store.GetTenantSettings(ctx, record.TenantID)
	if err != nil {
		return nil, model.LedgerPayload{}, fmt.Errorf("failed to load tenant settings: %w", err)
	}

	decision := &model.Decision{
		TenantID:  record.TenantID,
		RecordID:  record.ID,
		Threshold: settings.Threshold,
	}

	candidate, budgetSkipped, err := e.propose(ctx, record)
	if err != nil {
		return nil, model.LedgerPayload{}, err
	}

	if candidate == nil {
		decision.Reason = model.ReasonNoCandidate
		if budgetSkipped {
			decision.Reason = model.ReasonBudgetFallback
		}
		return e.append(ctx, decision, model.LedgerPayload{})
	}

	decision.Label = candidate.Label
	decision.Rationale = candidate.Rationale
	decision.Tier = candidate.Tier
	decision.Probability = e.calibrator.Calibrate(candidate.RawScore, candidate.Tier)

	priors, err := e.store.CountConsistentLabels(ctx, record.TenantID, record.Counterparty, candidate.Label)
	if err != nil {
		return nil, model.LedgerPayload{}, fmt.Errorf("failed to count prior labels: %w", err)
	}
	decision.PriorLabels = priors

	payload := e.buildPayload(record, candidate.Label, settings)

	switch {
	case candidate.Tier != model.TierRule && priors < settings.ColdStartMin:
		decision.Reason = model.ReasonColdStart
	case !payload.Balanced():
		decision.Reason = model.ReasonImbalance
	case decision.Probability < decision.Threshold:
		decision.Reason = model.ReasonBelowThreshold
	default:
		decision.Eligible = true
	}

	return e.append(ctx, decision, payload)
}

// propose walks the tiers in escalation order and returns the first
// candidate. The second return reports that the generative tier was skipped
// because budget fallback is active.
func (e *Engine) propose(ctx context.Context, record model.Record) (*model.Candidate, bool, error) {
	candidate, err := e.rules.Lookup(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("rule tier failed: %w", err)
	}
	if candidate != nil {
		return candidate, false, nil
	}

	candidate, err = e.memory.Nearest(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("memory tier failed: %w", err)
	}
	if candidate != nil {
		return candidate, false, nil
	}

	state, err := e.store.GetBudgetState(ctx, record.TenantID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load budget state: %w", err)
	}
	if state.FallbackActive {
		slog.Info("Skipping generative tier, budget fallback active",
			"tenant_id", record.TenantID,
			"record_id", record.ID,
			"spend_accrued", state.SpendAccrued,
			"spend_cap", state.SpendCap)
		return nil, true, nil
	}

	candidate, err = e.generative.Infer(ctx, record)
	if err != nil {
		// Generative failures degrade to "no candidate" rather than failing
		// the record; the caller can re-run once the upstream recovers.
		slog.Warn("Generative tier failed",
			"tenant_id", record.TenantID,
			"record_id", record.ID,
			"error", err)
		return nil, false, nil
	}

	if candidate.Cost > 0 {
		// Spend is counted even when the caller has already given up on this
		// record; the tokens were consumed either way.
		if _, err := e.store.AddSpend(context.WithoutCancel(ctx), record.TenantID, candidate.Cost); err != nil {
			slog.Error("Failed to record generative spend",
				"tenant_id", record.TenantID,
				"record_id", record.ID,
				"cost", candidate.Cost,
				"error", err)
		}
	}

	return candidate, false, nil
}

// append persists the decision row and returns it with the storage-assigned
// id and timestamp filled in.
func (e *Engine) append(ctx context.Context, decision *model.Decision, payload model.LedgerPayload) (*model.Decision, model.LedgerPayload, error) {
	if err := e.store.AppendDecision(ctx, decision); err != nil {
		return nil, model.LedgerPayload{}, fmt.Errorf("failed to append decision: %w", err)
	}
	return decision, payload, nil
}

// DefaultPayloadBuilder renders the standard two-line entry: the labeled
// account on one side, the tenant's clearing account on the other. Negative
// amounts flip the sides.
func DefaultPayloadBuilder(record model.Record, label string, settings *model.TenantSettings) model.LedgerPayload {
	memo := record.Description
	if memo == "" {
		memo = record.Counterparty
	}

	amount := record.Amount
	debitAccount, creditAccount := label, settings.ClearingAccount
	if amount < 0 {
		amount = -amount
		debitAccount, creditAccount = creditAccount, debitAccount
	}

	return model.LedgerPayload{
		Currency: record.Currency,
		Lines: []model.LedgerLine{
			{AccountRef: debitAccount, Debit: amount, Memo: memo},
			{AccountRef: creditAccount, Credit: amount, Memo: memo},
		},
	}
}
