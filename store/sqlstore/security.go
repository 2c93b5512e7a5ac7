package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// SecurityStore is the account-security view of a Store. It implements
// store.SecurityStore.
type SecurityStore struct {
	db *sql.DB
	d  Dialect
}

const securityColumns = `user_id, failed_login_attempts, locked_until, lockout_reason,
	max_concurrent_sessions, require_fresh_auth_minutes, suspicious_activity,
	mfa_skip_count, mfa_first_skipped_at, mfa_last_skipped_at, created_at, updated_at`

// Ensure lazily creates the record with the given defaults. The insert is
// conflict-tolerant so concurrent first-touches of the same user do not error.
func (s *SecurityStore) Ensure(ctx context.Context, userID string, defaults store.SecurityDefaults, now time.Time) error {
	q := s.d.rebind(`INSERT INTO account_security
		(user_id, failed_login_attempts, max_concurrent_sessions,
			require_fresh_auth_minutes, suspicious_activity, mfa_skip_count,
			created_at, updated_at)
		VALUES (?, 0, ?, ?, 0, 0, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`)
	_, err := s.db.ExecContext(ctx, q,
		userID, defaults.MaxConcurrentSessions, defaults.RequireFreshAuthMinutes,
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// Get returns the record or store.ErrNotFound.
func (s *SecurityStore) Get(ctx context.Context, userID string) (*store.SecurityRecord, error) {
	q := s.d.rebind(`SELECT ` + securityColumns + ` FROM account_security WHERE user_id = ?`)
	return scanSecurity(s.db.QueryRowContext(ctx, q, userID))
}

// RecordFailure increments the failure counter and applies the decision
// computed from the new count inside one transaction, so two concurrent
// failures cannot interleave into an out-of-order lock. decide runs while the
// row is locked and must not touch the store itself.
func (s *SecurityStore) RecordFailure(ctx context.Context, userID string, decide func(newCount int) store.LockDecision, now time.Time) (*store.SecurityRecord, error) {
	var rec *store.SecurityRecord
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		q := s.d.rebind(`SELECT `+securityColumns+` FROM account_security WHERE user_id = ?`) + s.d.forUpdate()
		r, err := scanSecurity(tx.QueryRowContext(ctx, q, userID))
		if err != nil {
			return err
		}

		newCount := r.FailedLoginAttempts + 1
		dec := decide(newCount)
		susp := r.SuspiciousActivity || dec.Suspicious

		if _, err := tx.ExecContext(ctx, s.d.rebind(
			`UPDATE account_security SET failed_login_attempts = ?, locked_until = ?,
				lockout_reason = ?, suspicious_activity = ?, updated_at = ?
				WHERE user_id = ?`),
			newCount, timeMS(dec.LockUntil), nullText(dec.Reason), boolInt(susp),
			now.UnixMilli(), userID); err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}

		r.FailedLoginAttempts = newCount
		r.LockedUntil = dec.LockUntil
		r.LockoutReason = dec.Reason
		r.SuspiciousActivity = susp
		r.UpdatedAt = now
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ClearFailures resets the failure counter, lock fields, and the
// suspicious-activity marker after a fully successful authentication.
func (s *SecurityStore) ClearFailures(ctx context.Context, userID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE account_security SET failed_login_attempts = 0, locked_until = NULL,
			lockout_reason = NULL, suspicious_activity = 0, updated_at = ?
			WHERE user_id = ?`),
		now.UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// ClearExpiredLocks batch-clears locks whose window has elapsed. Failure
// counters are left alone; they reset only on successful login.
func (s *SecurityStore) ClearExpiredLocks(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE account_security SET locked_until = NULL, lockout_reason = NULL, updated_at = ?
			WHERE locked_until IS NOT NULL AND locked_until <= ?`),
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return int(affected), nil
}

// IncrementMFASkip bumps the skip counter only while below the allowance. The
// guarded update is the compare-and-swap: zero affected rows on an existing
// record means the allowance is spent.
func (s *SecurityStore) IncrementMFASkip(ctx context.Context, userID string, allowance int, now time.Time) (*store.SecurityRecord, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE account_security SET mfa_skip_count = mfa_skip_count + 1,
			mfa_first_skipped_at = COALESCE(mfa_first_skipped_at, ?),
			mfa_last_skipped_at = ?, updated_at = ?
			WHERE user_id = ? AND mfa_skip_count < ?`),
		now.UnixMilli(), now.UnixMilli(), now.UnixMilli(), userID, allowance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, userID); err != nil {
			return nil, err
		}
		return nil, store.ErrSkipsExhausted
	}
	return s.Get(ctx, userID)
}

// MarkSuspicious arms the suspicious-activity flag.
func (s *SecurityStore) MarkSuspicious(ctx context.Context, userID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE account_security SET suspicious_activity = 1, updated_at = ? WHERE user_id = ?`),
		now.UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func scanSecurity(r rowScanner) (*store.SecurityRecord, error) {
	var (
		rec                  store.SecurityRecord
		lockedMS             sql.NullInt64
		lockReason           sql.NullString
		susp                 int
		firstMS, lastMS      sql.NullInt64
		createdMS, updatedMS int64
	)
	err := r.Scan(&rec.UserID, &rec.FailedLoginAttempts, &lockedMS, &lockReason,
		&rec.MaxConcurrentSessions, &rec.RequireFreshAuthMinutes, &susp,
		&rec.MFASkipCount, &firstMS, &lastMS, &createdMS, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	rec.LockedUntil = msTime(lockedMS)
	rec.LockoutReason = textOrEmpty(lockReason)
	rec.SuspiciousActivity = susp != 0
	rec.MFAFirstSkippedAt = msTime(firstMS)
	rec.MFALastSkippedAt = msTime(lastMS)
	rec.CreatedAt = time.UnixMilli(createdMS).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return &rec, nil
}
