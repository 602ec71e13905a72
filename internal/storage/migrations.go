package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
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
		Description: "Initial registry schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS contracts (
					id TEXT PRIMARY KEY,
					customer TEXT NOT NULL DEFAULT '',
					price_raw TEXT NOT NULL DEFAULT '',
					price REAL NOT NULL DEFAULT 0,
					price_source TEXT NOT NULL DEFAULT '',
					date_start TEXT NOT NULL DEFAULT '',
					date_end TEXT NOT NULL DEFAULT '',
					url TEXT NOT NULL DEFAULT '',
					paid_raw TEXT NOT NULL DEFAULT '',
					paid REAL NOT NULL DEFAULT 0,
					accepted_raw TEXT NOT NULL DEFAULT '',
					accepted REAL NOT NULL DEFAULT 0,
					objects_hash TEXT NOT NULL DEFAULT '',
					requisites_hash TEXT NOT NULL DEFAULT '',
					last_checked DATETIME,
					last_changed DATETIME,
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS contract_checks (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					contract_id TEXT NOT NULL,
					checked_at DATETIME NOT NULL,
					price REAL NOT NULL DEFAULT 0,
					objects_hash TEXT NOT NULL,
					requisites_hash TEXT NOT NULL
				)`,
				`CREATE INDEX idx_contract_checks_contract ON contract_checks(contract_id, checked_at)`,

				`CREATE TABLE IF NOT EXISTS objects_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					contract_id TEXT NOT NULL,
					changed_at DATETIME NOT NULL,
					payload TEXT NOT NULL,
					hash TEXT NOT NULL
				)`,
				`CREATE INDEX idx_objects_history_contract ON objects_history(contract_id, changed_at)`,

				`CREATE TABLE IF NOT EXISTS requisites_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					contract_id TEXT NOT NULL,
					changed_at DATETIME NOT NULL,
					payload TEXT NOT NULL,
					hash TEXT NOT NULL
				)`,
				`CREATE INDEX idx_requisites_history_contract ON requisites_history(contract_id, changed_at)`,
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
		Description: "Track spreadsheet workbook per contract",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE contracts ADD COLUMN sheet_id TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE contracts ADD COLUMN sheet_url TEXT NOT NULL DEFAULT ''`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to add sheet columns: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add feed triggers",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS feed_triggers (
				contract_id TEXT PRIMARY KEY,
				feed_url TEXT NOT NULL,
				last_marker TEXT NOT NULL DEFAULT '',
				last_pub_date TEXT NOT NULL DEFAULT '',
				last_polled DATETIME
			)`)
			if err != nil {
				return fmt.Errorf("failed to create feed_triggers: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
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

// SchemaVersion reports the current PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
