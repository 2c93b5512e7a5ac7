package authcore

import (
	"context"
	"errors"

	"github.com/insano70/bcos-sub014/csrf"
)

// IssueAnonymousCSRFToken mints a stateless CSRF token for a pre-login
// surface, bound to the requesting client's IP, user agent, and the current
// time window. Device fields take precedence over context values.
func (e *Engine) IssueAnonymousCSRFToken(ctx context.Context, device DeviceInfo) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	token, err := e.csrf.IssueAnonymous(sourceIP(ctx, device), sourceUserAgent(ctx, device))
	if err != nil {
		return "", err
	}
	e.metricInc(MetricCSRFIssued)
	return token, nil
}

// IssueAuthenticatedCSRFToken mints a stateless CSRF token for a post-login
// surface, bound to the user id and issuance time.
func (e *Engine) IssueAuthenticatedCSRFToken(ctx context.Context, userID string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	token, err := e.csrf.IssueAuthenticated(userID)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricCSRFIssued)
	return token, nil
}

// VerifyCSRFToken checks a CSRF token against the flow the surface declares.
// Anonymous tokens must match the current client facts and window (the
// previous window is also accepted outside production); authenticated tokens
// must match the user id within the configured age. A token from the wrong
// flow is a hard reject escalated as a critical security event, and an
// authenticated-surface mismatch marks the account suspicious. Every
// rejection returns the same generic ErrCSRFTokenInvalid.
func (e *Engine) VerifyCSRFToken(ctx context.Context, token string, flow CSRFFlow, device DeviceInfo, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	var err error
	switch flow {
	case CSRFFlowAnonymous:
		err = e.csrf.VerifyAnonymous(token, sourceIP(ctx, device), sourceUserAgent(ctx, device))
	case CSRFFlowAuthenticated:
		err = e.csrf.VerifyAuthenticated(token, userID)
	default:
		err = csrf.ErrWrongFlow
	}
	if err == nil {
		return nil
	}

	e.metricInc(MetricCSRFRejected)
	kind := "csrf"
	severity := SeverityWarning
	if errors.Is(err, csrf.ErrWrongFlow) {
		e.metricInc(MetricCSRFCrossFlow)
		kind = "csrf_cross_flow"
		severity = SeverityCritical
		if flow == CSRFFlowAuthenticated && userID != "" {
			e.markSuspicious(ctx, userID)
			e.emitAudit(ctx, auditEventCSRFCrossFlow, SeverityCritical, false, userID, "", ErrCSRFTokenInvalid, func() map[string]string {
				return map[string]string{
					"declared_flow": string(flow),
				}
			})
		}
	}
	e.recordRejection(ctx, kind, sourceIP(ctx, device), sourceUserAgent(ctx, device), severity)
	return ErrCSRFTokenInvalid
}
