package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/common"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// GetIdempotencyRecord returns the record for (tenant, digest), or nil when
// no post has been recorded for that payload.
func (s *SQLiteStorage) GetIdempotencyRecord(ctx context.Context, tenantID, digest string) (*model.IdempotencyRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(digest, "digest"); err != nil {
		return nil, err
	}

	var record model.IdempotencyRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, digest, external_id, created_at
		FROM idempotency_records
		WHERE tenant_id = ? AND digest = ?
	`, tenantID, digest).Scan(&record.TenantID, &record.Digest, &record.ExternalID, &record.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Absence is a valid result
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	return &record, nil
}

// ClaimIdempotencyRecord atomically inserts a pending record for (tenant,
// digest) and reports whether this caller won the claim. The primary key
// constraint makes the insert conditional; exactly one concurrent caller can
// succeed.
func (s *SQLiteStorage) ClaimIdempotencyRecord(ctx context.Context, tenantID, digest string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return false, err
	}
	if err := validateString(digest, "digest"); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (tenant_id, digest, external_id, created_at)
		VALUES (?, ?, '', ?)
		ON CONFLICT(tenant_id, digest) DO NOTHING
	`, tenantID, digest, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	return rows == 1, nil
}

// FinalizeIdempotencyRecord stores the external document id on a previously
// claimed record.
func (s *SQLiteStorage) FinalizeIdempotencyRecord(ctx context.Context, tenantID, digest, externalID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE idempotency_records
		SET external_id = ?
		WHERE tenant_id = ? AND digest = ? AND external_id = ''
	`, externalID, tenantID, digest)
	if err != nil {
		return fmt.Errorf("failed to finalize idempotency record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read finalize result: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("%w: no pending idempotency record for digest %s", common.ErrNotFound, digest)
	}

	return nil
}

// ReleaseIdempotencyRecord removes a pending claim after a failed external
// post so that a later retry can attempt it again. Finalized records are
// never released.
func (s *SQLiteStorage) ReleaseIdempotencyRecord(ctx context.Context, tenantID, digest string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM idempotency_records
		WHERE tenant_id = ? AND digest = ? AND external_id = ''
	`, tenantID, digest)
	if err != nil {
		return fmt.Errorf("failed to release idempotency record: %w", err)
	}

	return nil
}
