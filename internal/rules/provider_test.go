package rules

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store returning rules in priority order, the way
// the SQLite layer does.
type fakeStore struct {
	rules        map[string][]model.Rule
	increments   []int
	err          error
	incrementErr error
	mu           sync.Mutex
}

func newFakeStore() *fakeStore {
	return &fakeStore{rules: make(map[string][]model.Rule)}
}

func (f *fakeStore) GetRules(_ context.Context, tenantID string) ([]model.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Rule(nil), f.rules[tenantID]...), nil
}

func (f *fakeStore) IncrementRuleUseCount(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.increments = append(f.increments, id)
	return nil
}

func floatPtr(v float64) *float64 {
	return &v
}

func record(counterparty string, amount float64) model.Record {
	return model.Record{
		ID:           "rec-1",
		TenantID:     "tenant-1",
		Counterparty: counterparty,
		Amount:       amount,
		Currency:     "USD",
		OccurredAt:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestLookupMatchesHighestPriority(t *testing.T) {
	store := newFakeStore()
	store.rules["tenant-1"] = []model.Rule{
		{ID: 2, TenantID: "tenant-1", Name: "coffee shops", CounterpartyRegex: `coffee|starbucks`, Label: "Meals", Priority: 10, IsActive: true},
		{ID: 1, TenantID: "tenant-1", Name: "any vendor", CounterpartyRegex: `.*`, Label: "Other Expenses", Priority: 1, IsActive: true},
	}
	provider := NewProvider(store)

	candidate, err := provider.Lookup(context.Background(), record("Starbucks #512", 6.50))

	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "Meals", candidate.Label)
	assert.Equal(t, model.TierRule, candidate.Tier)
	assert.InDelta(t, 1.0, candidate.RawScore, 1e-9)
	assert.Equal(t, []int{2}, store.increments)
}

func TestLookupNoMatch(t *testing.T) {
	store := newFakeStore()
	store.rules["tenant-1"] = []model.Rule{
		{ID: 1, TenantID: "tenant-1", Name: "airlines", CounterpartyRegex: `airlines?`, Label: "Travel", Priority: 5, IsActive: true},
	}
	provider := NewProvider(store)

	candidate, err := provider.Lookup(context.Background(), record("Staples", 45.23))

	require.NoError(t, err)
	assert.Nil(t, candidate)
	assert.Empty(t, store.increments)
}

func TestLookupAmountBounds(t *testing.T) {
	store := newFakeStore()
	store.rules["tenant-1"] = []model.Rule{
		{
			ID:                1,
			TenantID:          "tenant-1",
			Name:              "small software charges",
			CounterpartyRegex: `github`,
			Label:             "Software",
			AmountMin:         floatPtr(1.00),
			AmountMax:         floatPtr(100.00),
			Priority:          5,
			IsActive:          true,
		},
	}
	provider := NewProvider(store)
	ctx := context.Background()

	candidate, err := provider.Lookup(ctx, record("GitHub", 19.00))
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "Software", candidate.Label)

	// Outside the bounds the rule does not fire.
	candidate, err = provider.Lookup(ctx, record("GitHub", 2500.00))
	require.NoError(t, err)
	assert.Nil(t, candidate)

	candidate, err = provider.Lookup(ctx, record("GitHub", 0.50))
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestLookupCaseInsensitive(t *testing.T) {
	store := newFakeStore()
	store.rules["tenant-1"] = []model.Rule{
		{ID: 1, TenantID: "tenant-1", Name: "aws", CounterpartyRegex: `AWS|Amazon Web Services`, Label: "Cloud Hosting", Priority: 5, IsActive: true},
	}
	provider := NewProvider(store)

	candidate, err := provider.Lookup(context.Background(), record("  amazon web services  ", 312.44))

	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "Cloud Hosting", candidate.Label)
}

func TestLookupSkipsInvalidPattern(t *testing.T) {
	store := newFakeStore()
	store.rules["tenant-1"] = []model.Rule{
		{ID: 1, TenantID: "tenant-1", Name: "broken", CounterpartyRegex: `[unclosed`, Label: "Broken", Priority: 10, IsActive: true},
		{ID: 2, TenantID: "tenant-1", Name: "fallback", CounterpartyRegex: `staples`, Label: "Office Supplies", Priority: 1, IsActive: true},
	}
	provider := NewProvider(store)

	candidate, err := provider.Lookup(context.Background(), record("Staples", 45.23))

	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "Office Supplies", candidate.Label)
}

func TestLookupUseCountFailureKeepsMatch(t *testing.T) {
	store := newFakeStore()
	store.rules["tenant-1"] = []model.Rule{
		{ID: 1, TenantID: "tenant-1", Name: "office supplies", CounterpartyRegex: `staples`, Label: "Office Supplies", Priority: 5, IsActive: true},
	}
	store.incrementErr = errors.New("database locked")
	provider := NewProvider(store)

	candidate, err := provider.Lookup(context.Background(), record("Staples", 45.23))

	// A failed use-count bump must not discard the matched rule.
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "Office Supplies", candidate.Label)
	assert.Equal(t, model.TierRule, candidate.Tier)
}

func TestLookupStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("database locked")
	provider := NewProvider(store)

	candidate, err := provider.Lookup(context.Background(), record("Staples", 45.23))

	require.Error(t, err)
	assert.Nil(t, candidate)
}
