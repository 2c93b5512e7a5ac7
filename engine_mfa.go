package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/insano70/bcos-sub014/store"
)

// RecordMFASkip burns one MFA enrollment deferral for the user. The
// allowance is consumed by a guarded increment, so two concurrent skips on
// the last slot produce exactly one success; the loser, like any caller with
// nothing left, gets ErrMFASkipsExhausted and must route into enrollment.
func (e *Engine) RecordMFASkip(ctx context.Context, userID string, device DeviceInfo) (*MFASkipResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if device.IPAddress != "" {
		ctx = WithClientIP(ctx, device.IPAddress)
	}
	if device.UserAgent != "" {
		ctx = WithUserAgent(ctx, device.UserAgent)
	}

	res, err := e.flows.RecordSkip(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrSkipsExhausted) {
			e.metricInc(MetricMFAExhausted)
			e.emitAudit(ctx, auditEventMFASkipsExhausted, SeverityWarning, false, userID, "", ErrMFASkipsExhausted, nil)
			return nil, ErrMFASkipsExhausted
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricMFASkip)
	e.emitAudit(ctx, auditEventMFASkipRecorded, SeverityInfo, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"skips_remaining": strconv.Itoa(res.SkipsRemaining),
		}
	})
	return &MFASkipResult{SkipsRemaining: res.SkipsRemaining}, nil
}

// IsMFAEnforced reports whether the user has spent the whole deferral
// allowance. It is derived from the counter alone, so there is no separate
// flag to fall out of sync.
func (e *Engine) IsMFAEnforced(ctx context.Context, userID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	enforced, err := e.flows.IsEnforced(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return enforced, nil
}
