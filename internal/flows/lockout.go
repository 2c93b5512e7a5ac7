package flows

import (
	"context"
	"errors"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

const (
	lockThreshold = 3
	lockReason    = "too many failed login attempts"
)

// LockTiers is the progressive lockout table applied to the new failure
// count: First at the third failure, Second at the fourth, Ceiling at the
// fifth and every failure after it.
type LockTiers struct {
	First   time.Duration
	Second  time.Duration
	Ceiling time.Duration
}

// DecideLock computes the lock decision for a new failure count. Counts below
// the threshold never lock. At the ceiling every further failure re-arms the
// full window from now, so hammering a locked account keeps it locked, and
// the record is flagged suspicious.
func DecideLock(newCount int, now time.Time, tiers LockTiers) store.LockDecision {
	switch {
	case newCount < lockThreshold:
		return store.LockDecision{}
	case newCount == lockThreshold:
		return store.LockDecision{LockUntil: now.Add(tiers.First), Reason: lockReason}
	case newCount == lockThreshold+1:
		return store.LockDecision{LockUntil: now.Add(tiers.Second), Reason: lockReason}
	default:
		return store.LockDecision{LockUntil: now.Add(tiers.Ceiling), Reason: lockReason, Suspicious: true}
	}
}

// LockoutStatus reports lock state for one identity. Known is false when the
// identity did not resolve to an account; such lookups still report an
// unlocked status so response shape cannot probe for account existence.
type LockoutStatus struct {
	Known       bool
	Locked      bool
	LockedUntil time.Time
	Attempts    int
}

type LockoutSecurityStore interface {
	Ensure(ctx context.Context, userID string, defaults store.SecurityDefaults, now time.Time) error
	Get(ctx context.Context, userID string) (*store.SecurityRecord, error)
	RecordFailure(ctx context.Context, userID string, decide func(newCount int) store.LockDecision, now time.Time) (*store.SecurityRecord, error)
	ClearFailures(ctx context.Context, userID string, now time.Time) error
}

// LockoutDeps captures lockout tracking dependencies. LookupUser resolves an
// e-mail to a user id; the second return is false on a miss.
type LockoutDeps struct {
	Now           func() time.Time
	LookupUser    func(ctx context.Context, email string) (string, bool, error)
	Tiers         LockTiers
	Defaults      store.SecurityDefaults
	SecurityStore LockoutSecurityStore
}

// RunRecordFailedAttempt counts one failed login and applies the tier table
// under the store's row lock, so concurrent failures each land on a distinct
// count.
func RunRecordFailedAttempt(ctx context.Context, email string, deps LockoutDeps) (*LockoutStatus, error) {
	userID, ok, err := deps.LookupUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &LockoutStatus{}, nil
	}

	now := deps.Now()
	if err := deps.SecurityStore.Ensure(ctx, userID, deps.Defaults, now); err != nil {
		return nil, err
	}
	rec, err := deps.SecurityStore.RecordFailure(ctx, userID, func(newCount int) store.LockDecision {
		return DecideLock(newCount, now, deps.Tiers)
	}, now)
	if err != nil {
		return nil, err
	}
	return &LockoutStatus{
		Known:       true,
		Locked:      rec.LockedAt(now),
		LockedUntil: rec.LockedUntil,
		Attempts:    rec.FailedLoginAttempts,
	}, nil
}

// RunIsLocked reports whether an identity is currently locked out. An
// elapsed lock reads as unlocked without clearing the row; the sweep owns
// that.
func RunIsLocked(ctx context.Context, email string, deps LockoutDeps) (*LockoutStatus, error) {
	userID, ok, err := deps.LookupUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &LockoutStatus{}, nil
	}

	rec, err := deps.SecurityStore.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &LockoutStatus{Known: true}, nil
	}
	if err != nil {
		return nil, err
	}
	now := deps.Now()
	return &LockoutStatus{
		Known:       true,
		Locked:      rec.LockedAt(now),
		LockedUntil: rec.LockedUntil,
		Attempts:    rec.FailedLoginAttempts,
	}, nil
}

// RunClearFailures resets the failure counter and any lock after a
// successful authentication. Unknown identities are a silent no-op.
func RunClearFailures(ctx context.Context, email string, deps LockoutDeps) error {
	userID, ok, err := deps.LookupUser(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return deps.SecurityStore.ClearFailures(ctx, userID, deps.Now())
}
