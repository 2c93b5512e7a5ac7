package sqlstore

import (
	"context"
	"fmt"

	"github.com/insano70/bcos-sub014/store"
)

// schemaStatements is valid under both supported dialects.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token_id           TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL,
		session_id         TEXT NOT NULL,
		token_hash         TEXT NOT NULL,
		device_fingerprint TEXT NOT NULL,
		access_jti         TEXT NOT NULL,
		access_expires_at  BIGINT NOT NULL,
		created_at         BIGINT NOT NULL,
		expires_at         BIGINT NOT NULL,
		revoked_at         BIGINT,
		revoke_reason      TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_refresh_tokens_hash
		ON refresh_tokens (token_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_active
		ON refresh_tokens (user_id, revoked_at)`,
	`CREATE TABLE IF NOT EXISTS user_sessions (
		session_id         TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL,
		device_fingerprint TEXT NOT NULL,
		device_name        TEXT NOT NULL,
		ip_address         TEXT NOT NULL,
		user_agent         TEXT NOT NULL,
		created_at         BIGINT NOT NULL,
		last_active_at     BIGINT NOT NULL,
		is_active          INTEGER NOT NULL DEFAULT 1,
		ended_at           BIGINT,
		end_reason         TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_sessions_user_active
		ON user_sessions (user_id, is_active)`,
	`CREATE TABLE IF NOT EXISTS account_security (
		user_id                    TEXT PRIMARY KEY,
		failed_login_attempts      INTEGER NOT NULL DEFAULT 0,
		locked_until               BIGINT,
		lockout_reason             TEXT,
		max_concurrent_sessions    INTEGER NOT NULL,
		require_fresh_auth_minutes INTEGER NOT NULL,
		suspicious_activity        INTEGER NOT NULL DEFAULT 0,
		mfa_skip_count             INTEGER NOT NULL DEFAULT 0,
		mfa_first_skipped_at       BIGINT,
		mfa_last_skipped_at        BIGINT,
		created_at                 BIGINT NOT NULL,
		updated_at                 BIGINT NOT NULL
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
// Idempotent; safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
	}
	return nil
}
