package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/service"
	"github.com/google/uuid"
)

// AppendDecision writes one decision to the append-only audit log. Existing
// rows are never updated; a re-run of the same record creates a new row.
func (s *SQLiteStorage) AppendDecision(ctx context.Context, decision *model.Decision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if decision != nil && decision.ID == "" {
		decision.ID = uuid.NewString()
	}
	if decision != nil && decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}

	if err := validateDecision(decision); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, tenant_id, record_id, tier, label, probability,
			threshold, eligible, reason, rationale, prior_labels, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		decision.ID,
		decision.TenantID,
		decision.RecordID,
		string(decision.Tier),
		decision.Label,
		decision.Probability,
		decision.Threshold,
		decision.Eligible,
		string(decision.Reason),
		decision.Rationale,
		decision.PriorLabels,
		decision.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}

	return nil
}

// ListDecisions returns audit entries matching the filter, newest first.
func (s *SQLiteStorage) ListDecisions(ctx context.Context, filter service.DecisionFilter) ([]model.Decision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return nil, fmt.Errorf("%w: end %v before start %v", ErrInvalidDateRange, filter.End, filter.Start)
	}

	var conditions []string
	var args []any

	if filter.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.Start != nil {
		conditions = append(conditions, "decided_at >= ?")
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		conditions = append(conditions, "decided_at <= ?")
		args = append(args, *filter.End)
	}
	if filter.Reason != model.ReasonNone {
		conditions = append(conditions, "reason = ?")
		args = append(args, string(filter.Reason))
	}

	query := `
		SELECT id, tenant_id, record_id, tier, label, probability,
			threshold, eligible, reason, rationale, prior_labels, decided_at
		FROM decisions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY decided_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.Decision
	for rows.Next() {
		var d model.Decision
		var tier, reason string
		if err := rows.Scan(&d.ID, &d.TenantID, &d.RecordID, &tier, &d.Label,
			&d.Probability, &d.Threshold, &d.Eligible, &reason,
			&d.Rationale, &d.PriorLabels, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Tier = model.Tier(tier)
		d.Reason = model.ReasonCode(reason)
		decisions = append(decisions, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}

	return decisions, nil
}
