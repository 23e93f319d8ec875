package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS idempotency_records (
					tenant_id TEXT NOT NULL,
					digest TEXT NOT NULL,
					external_id TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (tenant_id, digest)
				)`,

				`CREATE TABLE IF NOT EXISTS budget_states (
					tenant_id TEXT PRIMARY KEY,
					spend_accrued REAL NOT NULL DEFAULT 0,
					spend_cap REAL NOT NULL DEFAULT 0,
					call_count INTEGER NOT NULL DEFAULT 0,
					fallback_active INTEGER NOT NULL DEFAULT 0,
					fallback_reason TEXT NOT NULL DEFAULT '',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS decisions (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					record_id TEXT NOT NULL,
					tier TEXT NOT NULL,
					label TEXT,
					probability REAL NOT NULL DEFAULT 0,
					threshold REAL NOT NULL DEFAULT 0,
					eligible INTEGER NOT NULL DEFAULT 0,
					reason TEXT NOT NULL DEFAULT '',
					rationale TEXT,
					prior_labels INTEGER NOT NULL DEFAULT 0,
					decided_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_decisions_tenant_time ON decisions(tenant_id, decided_at)`,
				`CREATE INDEX idx_decisions_reason ON decisions(reason)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Labeled history and pattern rules",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS labeled_examples (
					tenant_id TEXT NOT NULL,
					record_id TEXT NOT NULL,
					counterparty TEXT NOT NULL,
					amount REAL NOT NULL,
					label TEXT NOT NULL,
					labeled_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (tenant_id, record_id)
				)`,
				`CREATE INDEX idx_labeled_examples_counterparty ON labeled_examples(tenant_id, counterparty)`,

				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					tenant_id TEXT NOT NULL,
					name TEXT NOT NULL,
					counterparty_regex TEXT NOT NULL,
					label TEXT NOT NULL,
					amount_min REAL,
					amount_max REAL,
					priority INTEGER NOT NULL DEFAULT 0,
					use_count INTEGER NOT NULL DEFAULT 0,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rules_tenant ON rules(tenant_id)`,
				`CREATE UNIQUE INDEX idx_rules_tenant_name ON rules(tenant_id, name)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Tenant settings",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS tenant_settings (
					tenant_id TEXT PRIMARY KEY,
					threshold REAL NOT NULL DEFAULT 0.90,
					budget_cap REAL NOT NULL DEFAULT 0,
					cold_start_min INTEGER NOT NULL DEFAULT 3,
					clearing_account TEXT NOT NULL DEFAULT 'clearing',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
