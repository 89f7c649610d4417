package store

import (
	"context"
	"fmt"
)

// Schema statements applied at startup. Every statement is idempotent so
// the bootstrap can run on every boot.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS user_sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token      TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_sessions_expires_at ON user_sessions (expires_at)`,

	`CREATE TABLE IF NOT EXISTS repositories (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		owner_login      TEXT NOT NULL DEFAULT '',
		source_url       TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		branch           TEXT NOT NULL DEFAULT 'main',
		commit_hash      TEXT NOT NULL DEFAULT '',
		file_count       INTEGER NOT NULL DEFAULT 0,
		total_size_bytes BIGINT NOT NULL DEFAULT 0,
		status           TEXT NOT NULL DEFAULT 'active',
		imported_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_synced_at   TIMESTAMPTZ,
		owner_email      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_repositories_owner ON repositories (owner_email, imported_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_repositories_status ON repositories (status)`,

	`CREATE TABLE IF NOT EXISTS import_jobs (
		id            TEXT PRIMARY KEY,
		repository_id TEXT NOT NULL,
		source_url    TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		progress      INTEGER NOT NULL DEFAULT 0,
		message       TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		started_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at  TIMESTAMPTZ,
		owner_email   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_jobs_repository ON import_jobs (repository_id)`,

	`CREATE TABLE IF NOT EXISTS repository_versions (
		id               TEXT PRIMARY KEY,
		repository_id    TEXT NOT NULL,
		commit_hash      TEXT NOT NULL DEFAULT '',
		branch           TEXT NOT NULL DEFAULT '',
		file_count       INTEGER NOT NULL DEFAULT 0,
		total_size_bytes BIGINT NOT NULL DEFAULT 0,
		change_summary   TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_repository_versions_repo ON repository_versions (repository_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS audit_entries (
		id          TEXT PRIMARY KEY,
		user_email  TEXT NOT NULL DEFAULT '',
		method      TEXT NOT NULL,
		path        TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// ensureSchema applies the schema statements in order.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
