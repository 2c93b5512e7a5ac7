package store

import (
	"context"
	"time"
)

// TokenStore persists refresh-token chains.
//
// TokenStore implementations must be safe for concurrent use; Rotate is the
// single-redemption point and must guarantee at most one winner per hash.
type TokenStore interface {
	// Insert stores a new refresh token row.
	Insert(ctx context.Context, token *RefreshToken) error

	// GetByHash returns the row for the hash or ErrNotFound.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Rotate revokes the active row matching oldHash (revoke_reason "rotated")
	// and inserts next in the same transaction, touching the session's
	// last-active stamp. Returns ErrRotated when no active row matched, which
	// is how a concurrent loser learns it lost.
	Rotate(ctx context.Context, oldHash string, next *RefreshToken, now time.Time) error

	// Revoke marks the active row matching the hash revoked. The boolean is
	// false when no active row matched.
	Revoke(ctx context.Context, tokenHash, reason string, now time.Time) (bool, error)

	// RevokeBySession revokes every active row belonging to the session.
	RevokeBySession(ctx context.Context, sessionID, reason string, now time.Time) (int, error)

	// RevokeAllForUser revokes every active row for the user and reports the
	// affected chains so outstanding access tokens can be blacklisted.
	RevokeAllForUser(ctx context.Context, userID, reason string, now time.Time) ([]RevokedChain, error)

	// DeleteExpired removes rows whose expiry predates the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionStore persists user sessions.
type SessionStore interface {
	Insert(ctx context.Context, sess *Session) error

	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// ListActive returns the user's active sessions ordered oldest first,
	// ties broken by lowest session id.
	ListActive(ctx context.Context, userID string) ([]*Session, error)

	CountActive(ctx context.Context, userID string) (int, error)

	// Touch updates the last-active stamp of an active session.
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// End marks the session inactive with the given reason. The boolean is
	// false when the session was already ended or does not exist.
	End(ctx context.Context, sessionID, reason string, at time.Time) (bool, error)
}

// LockDecision is what the lockout policy derives from a new failure count.
type LockDecision struct {
	LockUntil  time.Time
	Reason     string
	Suspicious bool
}

// SecurityStore persists the per-user account security record.
type SecurityStore interface {
	// Ensure lazily creates the record with the given defaults. Concurrent
	// callers must not error (upsert-on-conflict, not check-then-insert).
	Ensure(ctx context.Context, userID string, defaults SecurityDefaults, now time.Time) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, userID string) (*SecurityRecord, error)

	// RecordFailure increments the failure counter and applies the decision
	// computed from the new count, all inside one transaction. decide must be
	// a pure function; it runs while the row is locked.
	RecordFailure(ctx context.Context, userID string, decide func(newCount int) LockDecision, now time.Time) (*SecurityRecord, error)

	// ClearFailures resets the failure counter, lock fields, and the
	// suspicious-activity marker.
	ClearFailures(ctx context.Context, userID string, now time.Time) error

	// ClearExpiredLocks batch-clears locks whose window has elapsed.
	ClearExpiredLocks(ctx context.Context, now time.Time) (int, error)

	// IncrementMFASkip bumps the skip counter only while below the allowance,
	// stamping first/last skip times; ErrSkipsExhausted when at the cap.
	IncrementMFASkip(ctx context.Context, userID string, allowance int, now time.Time) (*SecurityRecord, error)

	// MarkSuspicious arms the suspicious-activity flag.
	MarkSuspicious(ctx context.Context, userID string, now time.Time) error
}

// Pinger reports backend liveness for health probes.
type Pinger interface {
	Ping(ctx context.Context) error
}
