package authcore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/insano70/bcos-sub014/internal/flows"
	"github.com/insano70/bcos-sub014/jwt"
)

// CreateTokenPair starts a session for an authenticated user and returns its
// access/refresh pair. A currently locked account is refused with
// ErrAccountLocked. When the new session pushes the user over the concurrent
// session cap, the oldest sessions are ended and their refresh chains revoked
// before the call returns.
//
// CreateTokenPair trusts the caller's credential check; it never sees a
// password.
func (e *Engine) CreateTokenPair(ctx context.Context, userID, email string, device DeviceInfo, rememberMe bool) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.Issue(ctx, flows.IssueRequest{
		UserID:     userID,
		Email:      email,
		Device:     flowDevice(device),
		RememberMe: rememberMe,
	})

	switch res.Failure {
	case flows.IssueFailureNone:
	case flows.IssueFailureLocked:
		e.metricInc(MetricIssueRejectedLocked)
		e.emitAudit(ctx, auditEventPairRejected, SeverityWarning, false, userID, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"locked_until": res.LockedUntil.UTC().Format(time.RFC3339),
			}
		})
		return nil, ErrAccountLocked
	case flows.IssueFailureStore:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	default:
		return nil, fmt.Errorf("issue token pair: %w", res.Err)
	}

	e.metricInc(MetricPairIssued)
	e.metricInc(MetricSessionCreated)
	for _, victim := range res.Evicted {
		e.metricInc(MetricSessionEvicted)
		e.emitAudit(ctx, auditEventSessionEvicted, SeverityInfo, true, userID, victim.SessionID, nil, func() map[string]string {
			return map[string]string{
				"replaced_by": res.SessionID,
			}
		})
	}
	e.emitAudit(ctx, auditEventPairIssued, SeverityInfo, true, userID, res.SessionID, nil, func() map[string]string {
		return map[string]string{
			"remember_me": strconv.FormatBool(rememberMe),
			"device_name": device.DeviceName,
		}
	})

	return &TokenPair{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
		ExpiresAt:    res.ExpiresAt,
	}, nil
}

// ValidateAccessToken verifies an access token on the request hot path:
// signature, expiry with leeway, issuer and audience, and required claims.
// It never touches Redis or the database, so a cache outage cannot take
// request authentication down with it.
func (e *Engine) ValidateAccessToken(ctx context.Context, accessToken string) (*jwt.AccessClaims, error) {
	return e.Validate(ctx, accessToken, ModeFast)
}

// Validate verifies an access token under an explicit validation mode.
// ModeInherit adopts the engine's configured default. Strict mode adds a
// blacklist membership check and fails closed with ErrCacheUnavailable when
// the blacklist backend cannot answer.
func (e *Engine) Validate(ctx context.Context, accessToken string, mode ValidationMode) (*jwt.AccessClaims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	res := e.flows.Validate(ctx, accessToken, int(mode))
	switch res.Failure {
	case flows.ValidateFailureNone:
		e.metricInc(MetricValidateOK)
		return res.Claims, nil
	case flows.ValidateFailureInvalidMode:
		return nil, ErrInvalidValidationMode
	case flows.ValidateFailureUnavailable:
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, res.Err)
	case flows.ValidateFailureBlacklisted:
		e.metricInc(MetricValidateFailure)
		e.emitAudit(ctx, auditEventBlacklistedTokenUse, SeverityWarning, false, res.Claims.Subject, res.Claims.SID, ErrAccessTokenInvalid, func() map[string]string {
			return map[string]string{
				"jti": res.Claims.ID,
			}
		})
		return nil, ErrAccessTokenInvalid
	default:
		e.metricInc(MetricValidateFailure)
		return nil, ErrAccessTokenInvalid
	}
}

// RequireFreshAuth gates a sensitive operation on recent authentication. It
// returns nil when the token's issued-at is within the freshness window (the
// per-account override when set, the configured default otherwise) and
// ErrFreshAuthRequired when the caller must re-authenticate first.
func (e *Engine) RequireFreshAuth(ctx context.Context, claims *jwt.AccessClaims) error {
	if err := e.ready(); err != nil {
		return err
	}
	if claims == nil {
		return ErrAccessTokenInvalid
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	fresh, err := e.flows.RequireFreshAuth(ctx, claims.Subject, issuedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !fresh {
		return ErrFreshAuthRequired
	}
	return nil
}

// RefreshTokenPair redeems a refresh token for a new pair, rotating the
// stored secret. Under concurrent redemption of the same token exactly one
// caller wins; the rest get ErrRefreshTokenInvalid, as does any reuse of a
// consumed token, which is additionally escalated as suspected theft.
func (e *Engine) RefreshTokenPair(ctx context.Context, refreshToken string, device DeviceInfo) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.Refresh(ctx, refreshToken, flowDevice(device))
	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureThrottled:
		e.metricInc(MetricRefreshRateLimited)
		e.emitAudit(ctx, auditEventRefreshRateLimited, SeverityWarning, false, "", res.SessionID, ErrRefreshRateLimited, nil)
		return nil, ErrRefreshRateLimited
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseBlocked)
		e.recordRejection(ctx, "refresh_reuse", sourceIP(ctx, device), sourceUserAgent(ctx, device), SeverityCritical)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, SeverityCritical, false, res.UserID, res.SessionID, ErrRefreshTokenInvalid, nil)
		return nil, ErrRefreshTokenInvalid
	case flows.RefreshFailureStore:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	case flows.RefreshFailureSecret, flows.RefreshFailureSignAccess, flows.RefreshFailureEncode:
		return nil, fmt.Errorf("rotate refresh token: %w", res.Err)
	default:
		e.metricInc(MetricRefreshFailure)
		e.recordRejection(ctx, "refresh", sourceIP(ctx, device), sourceUserAgent(ctx, device), SeverityWarning)
		e.emitAudit(ctx, auditEventRefreshInvalid, SeverityWarning, false, res.UserID, res.SessionID, ErrRefreshTokenInvalid, func() map[string]string {
			return map[string]string{
				"kind": refreshFailureLabel(res.Failure),
			}
		})
		return nil, ErrRefreshTokenInvalid
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, SeverityInfo, true, res.UserID, res.SessionID, nil, nil)

	return &TokenPair{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
		ExpiresAt:    res.ExpiresAt,
	}, nil
}

func refreshFailureLabel(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureDecode:
		return "malformed"
	case flows.RefreshFailureNotFound:
		return "unknown"
	case flows.RefreshFailureExpired:
		return "expired"
	case flows.RefreshFailureFingerprint:
		return "device_mismatch"
	default:
		return "invalid"
	}
}

// RevokeRefreshToken revokes one refresh token. The bool reports whether a
// live token was actually revoked; a malformed or unknown token is (false,
// nil), so logout handlers stay idempotent.
func (e *Engine) RevokeRefreshToken(ctx context.Context, refreshToken, reason string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if reason == "" {
		reason = "revoked"
	}

	revoked, err := e.flows.RevokeToken(ctx, refreshToken, reason)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		e.metricInc(MetricTokenRevoked)
		e.emitAudit(ctx, auditEventTokenRevoked, SeverityInfo, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
	}
	return revoked, nil
}

// RevokeAllUserTokens cuts off every credential a user holds: all live
// refresh chains are revoked, their paired access tokens blacklisted for
// their remaining lifetime, and all active sessions ended. It returns the
// number of refresh chains revoked. On a partial failure the completed work
// stands and the error reports the first fault.
func (e *Engine) RevokeAllUserTokens(ctx context.Context, userID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	res := e.flows.RevokeAll(ctx, userID, "global revoke")
	e.metricAdd(MetricTokenRevoked, res.Revoked)
	e.metricAdd(MetricAccessBlacklisted, res.Blacklisted)
	e.metricAdd(MetricSessionEnded, res.Ended)

	if res.Err != nil && res.Revoked == 0 && res.Blacklisted == 0 && res.Ended == 0 {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	}

	e.emitAudit(ctx, auditEventUserTokensRevoked, SeverityWarning, res.Err == nil, userID, "", res.Err, func() map[string]string {
		return map[string]string{
			"revoked":     strconv.Itoa(res.Revoked),
			"blacklisted": strconv.Itoa(res.Blacklisted),
			"ended":       strconv.Itoa(res.Ended),
		}
	})

	if res.Err != nil {
		return res.Revoked, fmt.Errorf("revoke all user tokens: %w", res.Err)
	}
	return res.Revoked, nil
}

// BlacklistAccessToken invalidates a single access token before its natural
// expiry. The entry lives exactly as long as the token would have, after
// which the blacklist forgets it. Only strict-mode validation consults the
// blacklist.
func (e *Engine) BlacklistAccessToken(ctx context.Context, accessToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flows.BlacklistAccess(ctx, accessToken)
	if res.Invalid {
		return ErrAccessTokenInvalid
	}
	if res.Err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, res.Err)
	}

	e.metricInc(MetricAccessBlacklisted)
	e.emitAudit(ctx, auditEventAccessBlacklisted, SeverityInfo, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"jti": res.JTI,
		}
	})
	return nil
}

// CleanupExpiredTokens runs one maintenance sweep: refresh rows past expiry
// plus the retention grace are deleted and the blacklist index is trimmed.
// Both halves are idempotent, so overlapping sweeps from multiple instances
// are safe. Partial results carry Success false with the counts that did
// complete.
func (e *Engine) CleanupExpiredTokens(ctx context.Context) TokenSweepResult {
	if err := e.ready(); err != nil {
		return TokenSweepResult{}
	}

	res := e.flows.TokenSweep(ctx)
	e.metricAdd(MetricSweepTokensDeleted, res.RefreshTokens)
	e.metricAdd(MetricSweepBlacklistPurged, res.BlacklistEntries)
	e.emitAudit(ctx, auditEventTokenSweep, SeverityInfo, res.Success, "", "", nil, func() map[string]string {
		return map[string]string{
			"refresh_tokens":    strconv.Itoa(res.RefreshTokens),
			"blacklist_entries": strconv.Itoa(res.BlacklistEntries),
		}
	})
	return res
}
