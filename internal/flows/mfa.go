package flows

import (
	"context"
	"errors"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// MFASkipResult reports the allowance left after a recorded skip.
type MFASkipResult struct {
	SkipsRemaining int
}

type MFASecurityStore interface {
	Ensure(ctx context.Context, userID string, defaults store.SecurityDefaults, now time.Time) error
	Get(ctx context.Context, userID string) (*store.SecurityRecord, error)
	IncrementMFASkip(ctx context.Context, userID string, allowance int, now time.Time) (*store.SecurityRecord, error)
}

// MFADeps captures MFA grace tracking dependencies.
type MFADeps struct {
	Now           func() time.Time
	Allowance     int
	Defaults      store.SecurityDefaults
	SecurityStore MFASecurityStore
}

// RunRecordSkip burns one MFA setup deferral. The store's guarded increment
// is the consumption point, so concurrent skips cannot spend the same slot;
// an exhausted allowance surfaces the store sentinel untouched.
func RunRecordSkip(ctx context.Context, userID string, deps MFADeps) (*MFASkipResult, error) {
	now := deps.Now()
	if err := deps.SecurityStore.Ensure(ctx, userID, deps.Defaults, now); err != nil {
		return nil, err
	}
	rec, err := deps.SecurityStore.IncrementMFASkip(ctx, userID, deps.Allowance, now)
	if err != nil {
		return nil, err
	}
	remaining := deps.Allowance - rec.MFASkipCount
	if remaining < 0 {
		remaining = 0
	}
	return &MFASkipResult{SkipsRemaining: remaining}, nil
}

// RunIsEnforced reports whether the deferral allowance is spent. A user with
// no record has skipped nothing.
func RunIsEnforced(ctx context.Context, userID string, deps MFADeps) (bool, error) {
	rec, err := deps.SecurityStore.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return deps.Allowance <= 0, nil
	}
	if err != nil {
		return false, err
	}
	return rec.MFASkipCount >= deps.Allowance, nil
}
