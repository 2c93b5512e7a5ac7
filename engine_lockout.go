package authcore

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RecordFailedAttempt counts one failed credential check against an e-mail
// and applies the progressive lock table: the third failure arms the first
// window, the fourth the second, the fifth and beyond re-arm the ceiling
// window from now. An e-mail that resolves to no account reports an unlocked
// status indistinguishable from a fresh one, so the caller leaks nothing.
func (e *Engine) RecordFailedAttempt(ctx context.Context, email string) (*LockoutStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res, err := e.flows.RecordFailedAttempt(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Every failure feeds the per-IP monitor, resolved or not, so an
	// enumeration sweep across unknown accounts still trips the threshold.
	e.recordRejection(ctx, "login_failure", clientIPFromContext(ctx), userAgentFromContext(ctx), SeverityWarning)

	if res.Known {
		e.emitAudit(ctx, auditEventFailedAttempt, SeverityInfo, false, "", "", nil, func() map[string]string {
			return map[string]string{
				"email":    email,
				"attempts": strconv.Itoa(res.Attempts),
			}
		})
		if res.Locked {
			e.metricInc(MetricLockoutArmed)
			e.emitAudit(ctx, auditEventLockoutArmed, SeverityWarning, false, "", "", ErrAccountLocked, func() map[string]string {
				return map[string]string{
					"email":        email,
					"attempts":     strconv.Itoa(res.Attempts),
					"locked_until": res.LockedUntil.UTC().Format(time.RFC3339),
				}
			})
		}
	}

	return &LockoutStatus{
		Locked:      res.Locked,
		LockedUntil: res.LockedUntil,
		Attempts:    res.Attempts,
	}, nil
}

// IsAccountLocked reports lock state without mutating it. An elapsed window
// reads as unlocked; the row itself is cleared lazily by the sweep or by the
// next successful login.
func (e *Engine) IsAccountLocked(ctx context.Context, email string) (*LockoutStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res, err := e.flows.IsLocked(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &LockoutStatus{
		Locked:      res.Locked,
		LockedUntil: res.LockedUntil,
		Attempts:    res.Attempts,
	}, nil
}

// ClearFailedAttempts resets the failure counter, any lock window, and the
// suspicious flag. Call it only after a fully successful authentication,
// including any second factor. Unknown e-mails are a silent no-op.
func (e *Engine) ClearFailedAttempts(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.flows.ClearFailures(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// CleanupExpiredLockouts batch-clears lock windows that have elapsed.
// Failure counters are left alone; only a successful login resets those.
func (e *Engine) CleanupExpiredLockouts(ctx context.Context) LockoutSweepResult {
	if err := e.ready(); err != nil {
		return LockoutSweepResult{}
	}

	res := e.flows.LockoutSweep(ctx)
	e.metricAdd(MetricSweepLockoutsCleared, res.Cleared)
	e.emitAudit(ctx, auditEventLockoutSweep, SeverityInfo, res.Success, "", "", nil, func() map[string]string {
		return map[string]string{
			"cleared": strconv.Itoa(res.Cleared),
		}
	})
	return res
}
