package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// SessionStore is the session view of a Store. It implements
// store.SessionStore.
type SessionStore struct {
	db *sql.DB
	d  Dialect
}

const sessionColumns = `session_id, user_id, device_fingerprint, device_name, ip_address,
	user_agent, created_at, last_active_at, is_active, ended_at, end_reason`

// Insert stores a new session row.
func (s *SessionStore) Insert(ctx context.Context, sess *store.Session) error {
	q := s.d.rebind(`INSERT INTO user_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		sess.SessionID, sess.UserID, sess.DeviceFingerprint, sess.DeviceName,
		sess.IPAddress, sess.UserAgent, sess.CreatedAt.UnixMilli(),
		sess.LastActiveAt.UnixMilli(), boolInt(sess.IsActive),
		timeMS(sess.EndedAt), nullText(sess.EndReason))
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// Get returns the session or store.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	q := s.d.rebind(`SELECT ` + sessionColumns + ` FROM user_sessions WHERE session_id = ?`)
	return scanSession(s.db.QueryRowContext(ctx, q, sessionID))
}

// ListActive returns the user's active sessions oldest first, ties broken by
// lowest session id.
func (s *SessionStore) ListActive(ctx context.Context, userID string) ([]*store.Session, error) {
	q := s.d.rebind(`SELECT ` + sessionColumns + ` FROM user_sessions
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at ASC, session_id ASC`)
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var sessions []*store.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return sessions, nil
}

// CountActive returns the number of active sessions for the user.
func (s *SessionStore) CountActive(ctx context.Context, userID string) (int, error) {
	q := s.d.rebind(`SELECT COUNT(*) FROM user_sessions WHERE user_id = ? AND is_active = 1`)
	var n int
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return n, nil
}

// Touch updates the last-active stamp of an active session.
func (s *SessionStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE user_sessions SET last_active_at = ? WHERE session_id = ? AND is_active = 1`),
		at.UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// End marks the session inactive; false when it was already ended or missing.
func (s *SessionStore) End(ctx context.Context, sessionID, reason string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE user_sessions SET is_active = 0, ended_at = ?, end_reason = ?
			WHERE session_id = ? AND is_active = 1`),
		at.UnixMilli(), reason, sessionID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*store.Session, error) {
	var (
		sess              store.Session
		createdMS, lastMS int64
		isActive          int
		endedMS           sql.NullInt64
		endReason         sql.NullString
	)
	err := r.Scan(&sess.SessionID, &sess.UserID, &sess.DeviceFingerprint,
		&sess.DeviceName, &sess.IPAddress, &sess.UserAgent, &createdMS, &lastMS,
		&isActive, &endedMS, &endReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	sess.CreatedAt = time.UnixMilli(createdMS).UTC()
	sess.LastActiveAt = time.UnixMilli(lastMS).UTC()
	sess.IsActive = isActive != 0
	sess.EndedAt = msTime(endedMS)
	sess.EndReason = textOrEmpty(endReason)
	return &sess, nil
}
