// Package rules implements the deterministic rule tier: counterparty pattern
// lookups that short-circuit the rest of the decision pipeline.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// Store is the slice of the persistence layer the rule tier reads.
type Store interface {
	GetRules(ctx context.Context, tenantID string) ([]model.Rule, error)
	IncrementRuleUseCount(ctx context.Context, id int) error
}

// Provider evaluates tenant rules against records. Lookups are deterministic
// and perform no network I/O.
type Provider struct {
	store    Store
	compiled map[int]*regexp.Regexp
	mu       sync.Mutex
}

// NewProvider creates a rule provider backed by the given store.
func NewProvider(store Store) *Provider {
	return &Provider{
		store:    store,
		compiled: make(map[int]*regexp.Regexp),
	}
}

// Lookup returns a candidate for the highest-priority rule matching the
// record, or nil when no rule matches. A match is treated as certain; the
// calibrator assigns it the fixed rule ceiling.
func (p *Provider) Lookup(ctx context.Context, record model.Record) (*model.Candidate, error) {
	rules, err := p.store.GetRules(ctx, record.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	counterparty := strings.ToLower(strings.TrimSpace(record.Counterparty))

	for _, rule := range rules {
		if !p.matches(rule, counterparty, record.Amount) {
			continue
		}

		if err := p.store.IncrementRuleUseCount(ctx, rule.ID); err != nil {
			// Use counts are advisory; the decision stands.
			slog.Warn("Failed to increment rule use count",
				"rule_id", rule.ID,
				"tenant_id", record.TenantID,
				"error", err)
		}

		return &model.Candidate{
			RecordID:  record.ID,
			Label:     rule.Label,
			RawScore:  1.0,
			Rationale: fmt.Sprintf("matched rule %q", rule.Name),
			Tier:      model.TierRule,
		}, nil
	}

	return nil, nil //nolint:nilnil // No match is a valid result
}

// matches checks the counterparty pattern and optional amount bounds.
func (p *Provider) matches(rule model.Rule, counterparty string, amount float64) bool {
	re, err := p.compile(rule)
	if err != nil {
		return false
	}
	if !re.MatchString(counterparty) {
		return false
	}
	if rule.AmountMin != nil && amount < *rule.AmountMin {
		return false
	}
	if rule.AmountMax != nil && amount > *rule.AmountMax {
		return false
	}
	return true
}

// compile returns the cached regex for a rule, compiling on first use.
// Patterns are case-insensitive by default.
func (p *Provider) compile(rule model.Rule) (*regexp.Regexp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if re, ok := p.compiled[rule.ID]; ok {
		return re, nil
	}

	pattern := rule.CounterpartyRegex
	if !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule %d pattern: %w", rule.ID, err)
	}

	p.compiled[rule.ID] = re
	return re, nil
}
