package repository

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS task (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		completed_at DATETIME NULL,
		source_file_path TEXT NOT NULL DEFAULT '',
		result_json TEXT NULL,
		error_message TEXT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS task_status_idx ON task (status)`,
	`CREATE TABLE IF NOT EXISTS webhook (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		actions TEXT NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS task (
		id BIGSERIAL PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NULL,
		source_file_path TEXT NOT NULL DEFAULT '',
		result_json TEXT NULL,
		error_message TEXT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS task_status_idx ON task (status)`,
	`CREATE TABLE IF NOT EXISTS webhook (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		actions TEXT NOT NULL
	)`,
}

// Migrate creates the task and webhook tables when missing. It is idempotent.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stmts := sqliteSchema
	if db.Dialect == dialect.Postgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if err := db.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			logger.Error("migration failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("schema up to date", "dialect", db.Dialect)
	return nil
}
