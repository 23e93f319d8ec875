package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// SaveLabeledExample records a confirmed label for a record. Re-labeling the
// same record replaces the prior label.
func (s *SQLiteStorage) SaveLabeledExample(ctx context.Context, example *model.LabeledExample) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateExample(example); err != nil {
		return err
	}

	if example.LabeledAt.IsZero() {
		example.LabeledAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labeled_examples (tenant_id, record_id, counterparty, amount, label, labeled_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, record_id) DO UPDATE SET
			counterparty = excluded.counterparty,
			amount = excluded.amount,
			label = excluded.label,
			labeled_at = excluded.labeled_at
	`,
		example.TenantID,
		example.RecordID,
		example.Counterparty,
		example.Amount,
		example.Label,
		example.LabeledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save labeled example: %w", err)
	}

	return nil
}

// GetLabeledExamples returns the tenant's labeled history, newest first.
func (s *SQLiteStorage) GetLabeledExamples(ctx context.Context, tenantID string, limit int) ([]model.LabeledExample, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, record_id, counterparty, amount, label, labeled_at
		FROM labeled_examples
		WHERE tenant_id = ?
		ORDER BY labeled_at DESC
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get labeled examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var examples []model.LabeledExample
	for rows.Next() {
		var e model.LabeledExample
		if err := rows.Scan(&e.TenantID, &e.RecordID, &e.Counterparty,
			&e.Amount, &e.Label, &e.LabeledAt); err != nil {
			return nil, fmt.Errorf("failed to scan labeled example: %w", err)
		}
		examples = append(examples, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate labeled examples: %w", err)
	}

	return examples, nil
}

// CountConsistentLabels counts how many prior examples for the counterparty
// carry the given label. The cold-start gate compares this against the
// tenant's minimum.
func (s *SQLiteStorage) CountConsistentLabels(ctx context.Context, tenantID, counterparty, label string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM labeled_examples
		WHERE tenant_id = ? AND counterparty = ? AND label = ?
	`, tenantID, counterparty, label).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count consistent labels: %w", err)
	}

	return count, nil
}
