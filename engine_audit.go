package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/insano70/bcos-sub014/internal/audit"
)

const (
	auditEventPairIssued           = "token_pair_issued"
	auditEventPairRejected         = "token_pair_rejected"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventRefreshRateLimited   = "refresh_rate_limited"
	auditEventTokenRevoked         = "refresh_token_revoked"
	auditEventUserTokensRevoked    = "user_tokens_revoked"
	auditEventAccessBlacklisted    = "access_token_blacklisted"
	auditEventBlacklistedTokenUse  = "blacklisted_token_use"
	auditEventSessionEvicted       = "session_evicted"
	auditEventSessionEnded         = "session_ended"
	auditEventCSRFCrossFlow        = "csrf_cross_flow_rejected"
	auditEventFailedAttempt        = "login_failure_recorded"
	auditEventLockoutArmed         = "account_lockout_armed"
	auditEventMFASkipRecorded      = "mfa_skip_recorded"
	auditEventMFASkipsExhausted    = "mfa_skips_exhausted"
	auditEventTokenSweep           = "token_sweep_completed"
	auditEventLockoutSweep         = "lockout_sweep_completed"
)

// AuditErrorCode is the stable error vocabulary written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrAccessInvalid     AuditErrorCode = "access_token_invalid"
	auditErrRefreshInvalid    AuditErrorCode = "refresh_token_invalid"
	auditErrCSRFInvalid       AuditErrorCode = "csrf_token_invalid"
	auditErrAccountLocked     AuditErrorCode = "account_locked"
	auditErrSkipsExhausted    AuditErrorCode = "mfa_skips_exhausted"
	auditErrFreshAuthRequired AuditErrorCode = "fresh_auth_required"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrInvalidMode       AuditErrorCode = "invalid_validation_mode"
	auditErrStoreUnavailable  AuditErrorCode = "store_unavailable"
	auditErrCacheUnavailable  AuditErrorCode = "cache_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

// emitAudit queues one event. The metadata closure is only evaluated when a
// dispatcher is attached, so hot paths pay nothing for rich details.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	severity string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  severity,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAccessTokenInvalid):
		return auditErrAccessInvalid
	case errors.Is(err, ErrRefreshTokenInvalid):
		return auditErrRefreshInvalid
	case errors.Is(err, ErrCSRFTokenInvalid):
		return auditErrCSRFInvalid
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrMFASkipsExhausted):
		return auditErrSkipsExhausted
	case errors.Is(err, ErrFreshAuthRequired):
		return auditErrFreshAuthRequired
	case errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidValidationMode):
		return auditErrInvalidMode
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrCacheUnavailable):
		return auditErrCacheUnavailable
	default:
		return auditErrInternal
	}
}
