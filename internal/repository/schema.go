package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/basangdata/invoice-ingest/constants"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS tiers (
		name        TEXT PRIMARY KEY,
		daily_limit INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id             BIGSERIAL PRIMARY KEY,
		telegram_id    BIGINT NOT NULL UNIQUE,
		username       TEXT NOT NULL DEFAULT '',
		tier           TEXT NOT NULL DEFAULT 'free' REFERENCES tiers(name),
		spreadsheet_id TEXT NOT NULL DEFAULT '',
		custom_prompt  TEXT NOT NULL DEFAULT '',
		sheet_columns  TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id              BIGSERIAL PRIMARY KEY,
		user_id         BIGINT NOT NULL REFERENCES users(id),
		unit_kind       TEXT NOT NULL,
		status          TEXT NOT NULL,
		detail          TEXT NOT NULL DEFAULT '',
		items_extracted INTEGER NOT NULL DEFAULT 0,
		size_bytes      BIGINT,
		created_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_user_status_time
		ON activity (user_id, status, created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tiers (
		name        TEXT PRIMARY KEY,
		daily_limit INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id    INTEGER NOT NULL UNIQUE,
		username       TEXT NOT NULL DEFAULT '',
		tier           TEXT NOT NULL DEFAULT 'free' REFERENCES tiers(name),
		spreadsheet_id TEXT NOT NULL DEFAULT '',
		custom_prompt  TEXT NOT NULL DEFAULT '',
		sheet_columns  TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id         INTEGER NOT NULL REFERENCES users(id),
		unit_kind       TEXT NOT NULL,
		status          TEXT NOT NULL,
		detail          TEXT NOT NULL DEFAULT '',
		items_extracted INTEGER NOT NULL DEFAULT 0,
		size_bytes      INTEGER,
		created_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_user_status_time
		ON activity (user_id, status, created_at)`,
}

// Migrate creates the schema if missing and seeds the tier table from
// the built-in limits. Existing tier rows are left untouched so limits
// adjusted in the database survive restarts.
func (d *DB) Migrate(ctx context.Context, logger *slog.Logger) error {
	stmts := pgSchema
	seed := `INSERT INTO tiers (name, daily_limit) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	if d.Dialect == DialectSQLite {
		stmts = sqliteSchema
		seed = `INSERT OR IGNORE INTO tiers (name, daily_limit) VALUES ($1, $2)`
	}

	for _, stmt := range stmts {
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			logger.Error("migration failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}

	for tier, limit := range constants.TierLimits {
		if _, err := d.SQL.ExecContext(ctx, seed, tier, limit); err != nil {
			logger.Error("tier seed failed", "tier", tier, "error", err)
			return fmt.Errorf("seed tier %s: %w", tier, err)
		}
	}

	logger.Info("database schema ready", "dialect", d.Dialect)
	return nil
}
