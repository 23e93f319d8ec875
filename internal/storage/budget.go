package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// GetBudgetState returns the tenant's budget counters. A tenant with no
// recorded spend gets a fresh state seeded with its configured cap.
func (s *SQLiteStorage) GetBudgetState(ctx context.Context, tenantID string) (*model.BudgetState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	state, err := s.getBudgetState(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	settings, err := s.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &model.BudgetState{
		TenantID:  tenantID,
		SpendCap:  settings.BudgetCap,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (s *SQLiteStorage) getBudgetState(ctx context.Context, tenantID string) (*model.BudgetState, error) {
	var state model.BudgetState
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, spend_accrued, spend_cap, call_count,
			fallback_active, fallback_reason, updated_at
		FROM budget_states
		WHERE tenant_id = ?
	`, tenantID).Scan(&state.TenantID, &state.SpendAccrued, &state.SpendCap,
		&state.CallCount, &state.FallbackActive, &state.FallbackReason, &state.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Absence is a valid result
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget state: %w", err)
	}

	return &state, nil
}

// AddSpend atomically accrues generative-tier cost against the tenant's
// budget and activates fallback mode when the cap is crossed. The increment
// and the fallback check run in one transaction so concurrent calls cannot
// corrupt the counters.
func (s *SQLiteStorage) AddSpend(ctx context.Context, tenantID string, cost float64) (*model.BudgetState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if cost < 0 {
		return nil, fmt.Errorf("cost cannot be negative: %v", cost)
	}

	settings, err := s.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_states (tenant_id, spend_accrued, spend_cap, call_count, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			spend_accrued = spend_accrued + excluded.spend_accrued,
			call_count = call_count + 1,
			updated_at = excluded.updated_at
	`, tenantID, cost, settings.BudgetCap, now)
	if err != nil {
		return nil, fmt.Errorf("failed to accrue spend: %w", err)
	}

	// Fallback activation is sticky until the budget is reset.
	_, err = tx.ExecContext(ctx, `
		UPDATE budget_states
		SET fallback_active = 1, fallback_reason = 'spend cap exceeded'
		WHERE tenant_id = ? AND fallback_active = 0
			AND spend_cap > 0 AND spend_accrued > spend_cap
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to update fallback flag: %w", err)
	}

	var state model.BudgetState
	err = tx.QueryRowContext(ctx, `
		SELECT tenant_id, spend_accrued, spend_cap, call_count,
			fallback_active, fallback_reason, updated_at
		FROM budget_states
		WHERE tenant_id = ?
	`, tenantID).Scan(&state.TenantID, &state.SpendAccrued, &state.SpendCap,
		&state.CallCount, &state.FallbackActive, &state.FallbackReason, &state.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read budget state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit spend: %w", err)
	}

	return &state, nil
}

// ResetBudget clears the tenant's counters and fallback flag, e.g. at the
// start of a billing period.
func (s *SQLiteStorage) ResetBudget(ctx context.Context, tenantID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE budget_states
		SET spend_accrued = 0, call_count = 0,
			fallback_active = 0, fallback_reason = '', updated_at = ?
		WHERE tenant_id = ?
	`, time.Now().UTC(), tenantID)
	if err != nil {
		return fmt.Errorf("failed to reset budget: %w", err)
	}

	return nil
}
