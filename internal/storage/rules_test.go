package storage

import (
	"context"
	"testing"

	"github.com/ContrejfC/ai-bookkeeper/internal/common"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	low := &model.Rule{
		TenantID:          "tenant-1",
		Name:              "office supplies",
		CounterpartyRegex: "(?i)staples|office depot",
		Label:             "Office Supplies",
		Priority:          1,
		IsActive:          true,
	}
	high := &model.Rule{
		TenantID:          "tenant-1",
		Name:              "staples refunds",
		CounterpartyRegex: "(?i)staples",
		Label:             "Refunds",
		Priority:          10,
		IsActive:          true,
	}
	inactive := &model.Rule{
		TenantID:          "tenant-1",
		Name:              "retired",
		CounterpartyRegex: "(?i)retired co",
		Label:             "Misc",
		IsActive:          false,
	}
	otherTenant := &model.Rule{
		TenantID:          "tenant-2",
		Name:              "other",
		CounterpartyRegex: "(?i)staples",
		Label:             "Other",
		IsActive:          true,
	}

	for _, rule := range []*model.Rule{low, high, inactive, otherTenant} {
		require.NoError(t, store.SaveRule(ctx, rule))
		assert.NotZero(t, rule.ID)
	}

	rules, err := store.GetRules(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, rules, 2, "inactive and foreign rules excluded")
	assert.Equal(t, "staples refunds", rules[0].Name, "highest priority first")

	require.NoError(t, store.IncrementRuleUseCount(ctx, high.ID))
	require.NoError(t, store.IncrementRuleUseCount(ctx, high.ID))

	rules, err = store.GetRules(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rules[0].UseCount)
}

func TestSaveRuleUpdate(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rule := &model.Rule{
		TenantID:          "tenant-1",
		Name:              "office supplies",
		CounterpartyRegex: "(?i)staples",
		Label:             "Office Supplies",
		IsActive:          true,
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	rule.Label = "Supplies"
	require.NoError(t, store.SaveRule(ctx, rule))

	rules, err := store.GetRules(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Supplies", rules[0].Label)
}

func TestSaveRuleDuplicateName(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rule := &model.Rule{
		TenantID:          "tenant-1",
		Name:              "office supplies",
		CounterpartyRegex: "(?i)staples",
		Label:             "Office Supplies",
		IsActive:          true,
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	dup := &model.Rule{
		TenantID:          "tenant-1",
		Name:              "office supplies",
		CounterpartyRegex: "(?i)depot",
		Label:             "Supplies",
		IsActive:          true,
	}
	err := store.SaveRule(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	// Same name under another tenant is fine.
	dup.TenantID = "tenant-2"
	require.NoError(t, store.SaveRule(ctx, dup))
}

func TestSaveRuleUpdateMissing(t *testing.T) {
	store := newTestStorage(t)

	err := store.SaveRule(context.Background(), &model.Rule{
		ID:                999,
		TenantID:          "tenant-1",
		Name:              "ghost",
		CounterpartyRegex: "(?i)ghost",
		Label:             "Misc",
		IsActive:          true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveRuleValidation(t *testing.T) {
	store := newTestStorage(t)

	err := store.SaveRule(context.Background(), &model.Rule{TenantID: "tenant-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestTenantSettingsDefaultsAndClamp(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Unknown tenant gets defaults.
	settings, err := store.GetTenantSettings(ctx, "tenant-unknown")
	require.NoError(t, err)
	assert.InDelta(t, model.DefaultThreshold, settings.Threshold, 1e-9)
	assert.Equal(t, model.DefaultColdStart, settings.ColdStartMin)
	assert.Equal(t, "clearing", settings.ClearingAccount)

	// Out-of-range thresholds clamp on read.
	require.NoError(t, store.SaveTenantSettings(ctx, &model.TenantSettings{
		TenantID:        "tenant-1",
		Threshold:       0.99,
		ClearingAccount: "clearing",
	}))

	settings, err = store.GetTenantSettings(ctx, "tenant-1")
	require.NoError(t, err)
	assert.InDelta(t, model.MaxThreshold, settings.Threshold, 1e-9)
}
