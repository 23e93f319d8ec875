package storage

import (
	"context"
	"testing"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendDecision(t *testing.T, store *SQLiteStorage, tenant, record string, reason model.ReasonCode, decidedAt time.Time) {
	t.Helper()

	decision := &model.Decision{
		TenantID:    tenant,
		RecordID:    record,
		Tier:        model.TierGenerative,
		Label:       "Office Supplies",
		Probability: 0.82,
		Threshold:   0.90,
		Eligible:    reason == model.ReasonNone,
		Reason:      reason,
		DecidedAt:   decidedAt,
	}
	require.NoError(t, store.AppendDecision(context.Background(), decision))
	assert.NotEmpty(t, decision.ID, "append must assign an id")
}

func TestAppendAndListDecisions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	appendDecision(t, store, "tenant-1", "rec-1", model.ReasonNone, base)
	appendDecision(t, store, "tenant-1", "rec-2", model.ReasonColdStart, base.Add(time.Hour))
	appendDecision(t, store, "tenant-1", "rec-3", model.ReasonBelowThreshold, base.Add(2*time.Hour))
	appendDecision(t, store, "tenant-2", "rec-4", model.ReasonColdStart, base.Add(3*time.Hour))

	// Tenant filter, newest first.
	decisions, err := store.ListDecisions(ctx, service.DecisionFilter{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.Len(t, decisions, 3)
	assert.Equal(t, "rec-3", decisions[0].RecordID)
	assert.Equal(t, "rec-1", decisions[2].RecordID)

	// Reason filter crosses tenants.
	decisions, err = store.ListDecisions(ctx, service.DecisionFilter{Reason: model.ReasonColdStart})
	require.NoError(t, err)
	assert.Len(t, decisions, 2)

	// Time-range filter.
	start := base.Add(30 * time.Minute)
	end := base.Add(2 * time.Hour)
	decisions, err = store.ListDecisions(ctx, service.DecisionFilter{
		TenantID: "tenant-1",
		Start:    &start,
		End:      &end,
	})
	require.NoError(t, err)
	assert.Len(t, decisions, 2)

	// Limit applies after ordering.
	decisions, err = store.ListDecisions(ctx, service.DecisionFilter{TenantID: "tenant-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "rec-3", decisions[0].RecordID)
}

func TestAppendDecisionIsAppendOnly(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Two runs for the same record create two rows.
	appendDecision(t, store, "tenant-1", "rec-1", model.ReasonColdStart, time.Now().UTC())
	appendDecision(t, store, "tenant-1", "rec-1", model.ReasonNone, time.Now().UTC())

	decisions, err := store.ListDecisions(ctx, service.DecisionFilter{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.Len(t, decisions, 2)
}

func TestAppendDecisionValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.AppendDecision(ctx, nil)
	require.Error(t, err)

	// An ineligible decision without a reason is unanswerable in review.
	err = store.AppendDecision(ctx, &model.Decision{
		TenantID: "tenant-1",
		RecordID: "rec-1",
		Eligible: false,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestListDecisionsRejectsInvertedRange(t *testing.T) {
	store := newTestStorage(t)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err := store.ListDecisions(context.Background(), service.DecisionFilter{Start: &start, End: &end})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
