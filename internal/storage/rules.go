package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/common"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/mattn/go-sqlite3"
)

// GetRules returns the tenant's active rules ordered by priority descending.
func (s *SQLiteStorage) GetRules(ctx context.Context, tenantID string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, counterparty_regex, label,
			amount_min, amount_max, priority, use_count, is_active, created_at
		FROM rules
		WHERE tenant_id = ? AND is_active = 1
		ORDER BY priority DESC, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.CounterpartyRegex,
			&r.Label, &r.AmountMin, &r.AmountMax, &r.Priority,
			&r.UseCount, &r.IsActive, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}

// SaveRule inserts a new rule or updates an existing one by id.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	if rule.ID == 0 {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO rules (tenant_id, name, counterparty_regex, label,
				amount_min, amount_max, priority, use_count, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rule.TenantID, rule.Name, rule.CounterpartyRegex, rule.Label,
			rule.AmountMin, rule.AmountMax, rule.Priority, rule.UseCount,
			rule.IsActive, rule.CreatedAt)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
				return fmt.Errorf("%w: rule %q for tenant %s", common.ErrDuplicateEntry, rule.Name, rule.TenantID)
			}
			return fmt.Errorf("failed to insert rule: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read rule id: %w", err)
		}
		rule.ID = int(id)
		return nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules
		SET name = ?, counterparty_regex = ?, label = ?, amount_min = ?,
			amount_max = ?, priority = ?, is_active = ?
		WHERE id = ? AND tenant_id = ?
	`, rule.Name, rule.CounterpartyRegex, rule.Label, rule.AmountMin,
		rule.AmountMax, rule.Priority, rule.IsActive, rule.ID, rule.TenantID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: rule %d for tenant %s", common.ErrNotFound, rule.ID, rule.TenantID)
	}

	return nil
}

// IncrementRuleUseCount bumps a rule's use counter after it produces a
// decision.
func (s *SQLiteStorage) IncrementRuleUseCount(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE rules SET use_count = use_count + 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment rule use count: %w", err)
	}

	return nil
}
