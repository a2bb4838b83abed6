package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// migration is one idempotent schema step. Steps guard their own DDL so that
// a store created by an older deployment (before version tracking existed)
// migrates cleanly: columns are only added when genuinely missing.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sqlx.Tx) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "create tokens table",
		apply: func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS tokens (
					token TEXT PRIMARY KEY,
					expiry TEXT NOT NULL,
					is_valid BOOLEAN NOT NULL DEFAULT 1,
					device_id TEXT
				)
			`)
			return err
		},
	},
	{
		version: 2,
		name:    "add max_users column",
		apply: func(ctx context.Context, tx *sqlx.Tx) error {
			return addColumnIfMissing(ctx, tx, "tokens", "max_users", "INTEGER NOT NULL DEFAULT 1")
		},
	},
	{
		version: 3,
		name:    "add video metadata columns",
		apply: func(ctx context.Context, tx *sqlx.Tx) error {
			if err := addColumnIfMissing(ctx, tx, "tokens", "video_links", "TEXT NOT NULL DEFAULT '[]'"); err != nil {
				return err
			}
			if err := addColumnIfMissing(ctx, tx, "tokens", "video_file_names", "TEXT NOT NULL DEFAULT '[]'"); err != nil {
				return err
			}
			// Records written between ALTER and backfill on older SQLite
			// builds can carry NULLs; normalize them to empty sequences.
			_, err := tx.ExecContext(ctx, `
				UPDATE tokens
				SET video_links = COALESCE(video_links, '[]'),
				    video_file_names = COALESCE(video_file_names, '[]')
			`)
			return err
		},
	},
}

// Migrate brings the schema up to the current version. It must finish before
// the server accepts traffic; the store is never schema-mutated afterwards.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if err := m.apply(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
		log.Info().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}
	return nil
}

func addColumnIfMissing(ctx context.Context, tx *sqlx.Tx, table, column, definition string) error {
	exists, err := hasColumn(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	if err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

func hasColumn(ctx context.Context, tx *sqlx.Tx, table, column string) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
	if err != nil {
		return false, fmt.Errorf("inspect columns of %s: %w", table, err)
	}
	return count > 0, nil
}
