package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// TokenStore is the refresh-token view of a Store. It implements
// store.TokenStore.
type TokenStore struct {
	db *sql.DB
	d  Dialect
}

const refreshColumns = `token_id, user_id, session_id, token_hash, device_fingerprint,
	access_jti, access_expires_at, created_at, expires_at, revoked_at, revoke_reason`

// Insert stores a new refresh token row.
func (s *TokenStore) Insert(ctx context.Context, token *store.RefreshToken) error {
	q := s.d.rebind(`INSERT INTO refresh_tokens (` + refreshColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		token.TokenID, token.UserID, token.SessionID, token.TokenHash,
		token.DeviceFingerprint, token.AccessJTI, token.AccessExpiresAt.UnixMilli(),
		token.CreatedAt.UnixMilli(), token.ExpiresAt.UnixMilli(),
		timeMS(token.RevokedAt), nullText(token.RevokeReason))
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// GetByHash returns the row for the hash or store.ErrNotFound.
func (s *TokenStore) GetByHash(ctx context.Context, tokenHash string) (*store.RefreshToken, error) {
	q := s.d.rebind(`SELECT ` + refreshColumns + ` FROM refresh_tokens WHERE token_hash = ?`)
	return scanRefresh(s.db.QueryRowContext(ctx, q, tokenHash))
}

// Rotate revokes the active row matching oldHash and inserts next inside one
// transaction, touching the successor session's last-active stamp. The update
// is the compare-and-swap: zero affected rows means the hash was already
// redeemed or revoked, and the caller lost.
func (s *TokenStore) Rotate(ctx context.Context, oldHash string, next *store.RefreshToken, now time.Time) error {
	return runInTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.d.rebind(
			`UPDATE refresh_tokens SET revoked_at = ?, revoke_reason = ?
				WHERE token_hash = ? AND revoked_at IS NULL`),
			now.UnixMilli(), "rotated", oldHash)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		if affected == 0 {
			return store.ErrRotated
		}

		if _, err := tx.ExecContext(ctx, s.d.rebind(
			`INSERT INTO refresh_tokens (`+refreshColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			next.TokenID, next.UserID, next.SessionID, next.TokenHash,
			next.DeviceFingerprint, next.AccessJTI, next.AccessExpiresAt.UnixMilli(),
			next.CreatedAt.UnixMilli(), next.ExpiresAt.UnixMilli(),
			timeMS(next.RevokedAt), nullText(next.RevokeReason)); err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}

		if _, err := tx.ExecContext(ctx, s.d.rebind(
			`UPDATE user_sessions SET last_active_at = ? WHERE session_id = ? AND is_active = 1`),
			now.UnixMilli(), next.SessionID); err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return nil
	})
}

// Revoke marks the active row matching the hash revoked; false when no active
// row matched.
func (s *TokenStore) Revoke(ctx context.Context, tokenHash, reason string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE refresh_tokens SET revoked_at = ?, revoke_reason = ?
			WHERE token_hash = ? AND revoked_at IS NULL`),
		now.UnixMilli(), reason, tokenHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return affected > 0, nil
}

// RevokeBySession revokes every active row belonging to the session.
func (s *TokenStore) RevokeBySession(ctx context.Context, sessionID, reason string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE refresh_tokens SET revoked_at = ?, revoke_reason = ?
			WHERE session_id = ? AND revoked_at IS NULL`),
		now.UnixMilli(), reason, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return int(affected), nil
}

// RevokeAllForUser revokes every non-revoked row for the user and returns the
// chains that were still live, so outstanding access tokens can be
// blacklisted.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID, reason string, now time.Time) ([]store.RevokedChain, error) {
	var chains []store.RevokedChain
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.d.rebind(
			`SELECT session_id, access_jti, access_expires_at FROM refresh_tokens
				WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?`),
			userID, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		for rows.Next() {
			var c store.RevokedChain
			var expMS int64
			if err := rows.Scan(&c.SessionID, &c.AccessJTI, &expMS); err != nil {
				rows.Close()
				return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
			}
			c.AccessExpiresAt = time.UnixMilli(expMS).UTC()
			chains = append(chains, c)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx, s.d.rebind(
			`UPDATE refresh_tokens SET revoked_at = ?, revoke_reason = ?
				WHERE user_id = ? AND revoked_at IS NULL`),
			now.UnixMilli(), reason, userID); err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chains, nil
}

// DeleteExpired removes rows whose expiry predates the cutoff.
func (s *TokenStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`DELETE FROM refresh_tokens WHERE expires_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return int(affected), nil
}

func scanRefresh(row *sql.Row) (*store.RefreshToken, error) {
	var (
		t                store.RefreshToken
		accessExpMS      int64
		createdMS, expMS int64
		revokedMS        sql.NullInt64
		revokeReason     sql.NullString
	)
	err := row.Scan(&t.TokenID, &t.UserID, &t.SessionID, &t.TokenHash,
		&t.DeviceFingerprint, &t.AccessJTI, &accessExpMS, &createdMS, &expMS,
		&revokedMS, &revokeReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	t.AccessExpiresAt = time.UnixMilli(accessExpMS).UTC()
	t.CreatedAt = time.UnixMilli(createdMS).UTC()
	t.ExpiresAt = time.UnixMilli(expMS).UTC()
	t.RevokedAt = msTime(revokedMS)
	t.RevokeReason = textOrEmpty(revokeReason)
	return &t, nil
}
