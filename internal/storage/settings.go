package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// GetTenantSettings returns the tenant's decision configuration, falling back
// to defaults for tenants with no stored settings. Thresholds are clamped to
// the allowed range on read.
func (s *SQLiteStorage) GetTenantSettings(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	var settings model.TenantSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, threshold, budget_cap, cold_start_min, clearing_account
		FROM tenant_settings
		WHERE tenant_id = ?
	`, tenantID).Scan(&settings.TenantID, &settings.Threshold,
		&settings.BudgetCap, &settings.ColdStartMin, &settings.ClearingAccount)

	if errors.Is(err, sql.ErrNoRows) {
		return &model.TenantSettings{
			TenantID:        tenantID,
			Threshold:       model.DefaultThreshold,
			ColdStartMin:    model.DefaultColdStart,
			ClearingAccount: "clearing",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant settings: %w", err)
	}

	settings.Threshold = model.ClampThreshold(settings.Threshold)
	if settings.ColdStartMin <= 0 {
		settings.ColdStartMin = model.DefaultColdStart
	}

	return &settings, nil
}

// SaveTenantSettings upserts the tenant's decision configuration.
func (s *SQLiteStorage) SaveTenantSettings(ctx context.Context, settings *model.TenantSettings) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if settings == nil {
		return fmt.Errorf("%w: settings", ErrNilParameter)
	}
	if err := validateString(settings.TenantID, "tenantID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, threshold, budget_cap, cold_start_min, clearing_account, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			threshold = excluded.threshold,
			budget_cap = excluded.budget_cap,
			cold_start_min = excluded.cold_start_min,
			clearing_account = excluded.clearing_account,
			updated_at = excluded.updated_at
	`, settings.TenantID, settings.Threshold, settings.BudgetCap,
		settings.ColdStartMin, settings.ClearingAccount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save tenant settings: %w", err)
	}

	return nil
}
