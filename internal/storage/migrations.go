package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
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
		Description: "Extractions and bills",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS bill_extractions (
					id TEXT PRIMARY KEY,
					email_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					vendor_name TEXT,
					vendor_key TEXT,
					category TEXT,
					amount_due TEXT,
					due_date TEXT,
					currency TEXT,
					account_hint TEXT,
					payment_url TEXT,
					reason TEXT,
					decision TEXT NOT NULL,
					route TEXT NOT NULL,
					status TEXT NOT NULL,
					evidence TEXT,
					confidence REAL NOT NULL DEFAULT 0,
					recurrence_days INTEGER NOT NULL DEFAULT 0,
					recurring INTEGER NOT NULL DEFAULT 0,
					duplicate INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, email_id)
				)`,
				`CREATE INDEX idx_extractions_status ON bill_extractions(user_id, status)`,
				`CREATE INDEX idx_extractions_vendor ON bill_extractions(vendor_key)`,

				`CREATE TABLE IF NOT EXISTS bills (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					vendor_name TEXT NOT NULL,
					vendor_key TEXT NOT NULL,
					category TEXT,
					amount TEXT,
					due_date TEXT,
					account_last4 TEXT,
					payment_url TEXT,
					recurring INTEGER NOT NULL DEFAULT 0,
					recurrence_days INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_bills_user ON bills(user_id)`,
				`CREATE INDEX idx_bills_vendor ON bills(user_id, vendor_key)`,
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
		Description: "Vendor payment-domain rules",
		Up: func(tx *sql.Tx) error {
			query := `CREATE TABLE IF NOT EXISTS vendor_rules (
				vendor_key TEXT PRIMARY KEY,
				allowed_domains TEXT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`
			if _, err := tx.Exec(query); err != nil {
				return fmt.Errorf("failed to execute query: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Sync locks and sync log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS sync_locks (
					user_id TEXT PRIMARY KEY,
					acquired_at DATETIME NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS sync_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME,
					fetched INTEGER NOT NULL DEFAULT 0,
					skipped INTEGER NOT NULL DEFAULT 0,
					processed INTEGER NOT NULL DEFAULT 0,
					auto_accepted INTEGER NOT NULL DEFAULT 0,
					needs_review INTEGER NOT NULL DEFAULT 0,
					rejected INTEGER NOT NULL DEFAULT 0,
					duplicates INTEGER NOT NULL DEFAULT 0,
					errors INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_sync_log_user ON sync_log(user_id, started_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
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
