package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	examples []model.LabeledExample
	err      error
}

func (f *fakeStore) GetLabeledExamples(_ context.Context, tenantID string, _ int) ([]model.LabeledExample, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.LabeledExample
	for _, e := range f.examples {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func example(counterparty, label string, amount float64) model.LabeledExample {
	return model.LabeledExample{
		TenantID:     "tenant-1",
		RecordID:     "hist-" + counterparty,
		Counterparty: counterparty,
		Label:        label,
		Amount:       amount,
		LabeledAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
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

func TestNearestExactNeighbor(t *testing.T) {
	store := &fakeStore{examples: []model.LabeledExample{
		example("staples", "Office Supplies", 45.23),
		example("united airlines", "Travel", 512.00),
	}}
	provider := NewProvider(store)

	candidate, err := provider.Nearest(context.Background(), record("staples", 45.23))

	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "Office Supplies", candidate.Label)
	assert.Equal(t, model.TierMemory, candidate.Tier)
	// Single neighbor with identical name and amount: full similarity.
	assert.InDelta(t, 1.0, candidate.RawScore, 1e-9)
}

func TestNearestNoNeighborAboveFloor(t *testing.T) {
	store := &fakeStore{examples: []model.LabeledExample{
		example("united airlines", "Travel", 512.00),
	}}
	provider := NewProvider(store)

	candidate, err := provider.Nearest(context.Background(), record("pacific gas and electric", 88.10))

	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestNearestEmptyHistory(t *testing.T) {
	provider := NewProvider(&fakeStore{})

	candidate, err := provider.Nearest(context.Background(), record("staples", 45.23))

	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestNearestMajorityLabelWins(t *testing.T) {
	// Three near-identical neighbors, two agreeing. The agreeing label
	// carries roughly two thirds of the vote weight.
	store := &fakeStore{examples: []model.LabeledExample{
		example("staples", "Office Supplies", 45.00),
		example("staples", "Office Supplies", 46.00),
		example("staples", "Equipment", 45.50),
	}}
	provider := NewProvider(store)

	candidate, err := provider.Nearest(context.Background(), record("staples", 45.50))

	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "Office Supplies", candidate.Label)
	assert.Greater(t, candidate.RawScore, 0.5)
	assert.Less(t, candidate.RawScore, 1.0)
}

func TestNearestTenantIsolation(t *testing.T) {
	other := example("staples", "Office Supplies", 45.23)
	other.TenantID = "tenant-2"
	store := &fakeStore{examples: []model.LabeledExample{other}}
	provider := NewProvider(store)

	candidate, err := provider.Nearest(context.Background(), record("staples", 45.23))

	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestNearestDeterministicTieBreak(t *testing.T) {
	// Two labels with identical vote weight: the alphabetically first wins,
	// every time.
	store := &fakeStore{examples: []model.LabeledExample{
		example("staples", "Office Supplies", 45.23),
		example("staples", "Equipment", 45.23),
	}}
	provider := NewProvider(store)

	for i := 0; i < 10; i++ {
		candidate, err := provider.Nearest(context.Background(), record("staples", 45.23))
		require.NoError(t, err)
		require.NotNil(t, candidate)
		assert.Equal(t, "Equipment", candidate.Label)
	}
}

func TestNearestStoreError(t *testing.T) {
	provider := NewProvider(&fakeStore{err: errors.New("database locked")})

	candidate, err := provider.Nearest(context.Background(), record("staples", 45.23))

	require.Error(t, err)
	assert.Nil(t, candidate)
}

func TestAmountProximity(t *testing.T) {
	assert.InDelta(t, 1.0, amountProximity(0, 0), 1e-9)
	assert.InDelta(t, 1.0, amountProximity(50, 50), 1e-9)
	assert.InDelta(t, 0.5, amountProximity(50, 100), 1e-9)
	assert.InDelta(t, 0.0, amountProximity(0, 100), 1e-9)
	// Sign matters through the absolute difference.
	assert.InDelta(t, 0.0, amountProximity(-50, 50), 1e-9)
}
