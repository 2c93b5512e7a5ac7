package flows

import (
	"context"
	"time"
)

// TokenSweepResult reports one pass of the expired token sweep. Success is
// false when either backend failed; the counts still reflect what was
// removed before the failure.
type TokenSweepResult struct {
	RefreshTokens    int
	BlacklistEntries int
	Success          bool
}

// LockoutSweepResult reports one pass of the expired lockout sweep.
type LockoutSweepResult struct {
	Cleared int
	Success bool
}

type SweepTokenStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

type SweepBlacklist interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type SweepSecurityStore interface {
	ClearExpiredLocks(ctx context.Context, now time.Time) (int, error)
}

// SweepDeps captures maintenance sweep dependencies. Grace keeps rows
// around past expiry so a rejection can still be attributed before cleanup.
type SweepDeps struct {
	Now           func() time.Time
	Grace         time.Duration
	TokenStore    SweepTokenStore
	Blacklist     SweepBlacklist
	SecurityStore SweepSecurityStore
	Warn          func(string, ...any)
}

// RunTokenSweep deletes refresh rows past expiry plus grace and trims the
// blacklist index. Both halves are delete-only and idempotent, so concurrent
// sweeps cannot disagree.
func RunTokenSweep(ctx context.Context, deps SweepDeps) TokenSweepResult {
	now := deps.Now()
	res := TokenSweepResult{Success: true}

	n, err := deps.TokenStore.DeleteExpired(ctx, now.Add(-deps.Grace))
	if err != nil {
		if deps.Warn != nil {
			deps.Warn("authcore: refresh token sweep failed: %v", err)
		}
		res.Success = false
	} else {
		res.RefreshTokens = n
	}

	m, err := deps.Blacklist.PurgeExpired(ctx, now)
	if err != nil {
		if deps.Warn != nil {
			deps.Warn("authcore: blacklist purge failed: %v", err)
		}
		res.Success = false
	} else {
		res.BlacklistEntries = m
	}
	return res
}

// RunLockoutSweep clears lapsed lock windows. Failure counters stay put; a
// successful login is the only thing that resets them.
func RunLockoutSweep(ctx context.Context, deps SweepDeps) LockoutSweepResult {
	n, err := deps.SecurityStore.ClearExpiredLocks(ctx, deps.Now())
	if err != nil {
		if deps.Warn != nil {
			deps.Warn("authcore: lockout sweep failed: %v", err)
		}
		return LockoutSweepResult{}
	}
	return LockoutSweepResult{Cleared: n, Success: true}
}
