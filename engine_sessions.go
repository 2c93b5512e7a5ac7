package authcore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/insano70/bcos-sub014/store"
)

// ActiveSessionCount reports how many sessions a user currently has active.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	n, err := e.flows.ActiveSessionCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// ListUserSessions returns a user's active sessions in eviction order:
// oldest created first, ties broken by session id.
func (e *Engine) ListUserSessions(ctx context.Context, userID string) ([]*store.Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	sessions, err := e.flows.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sessions, nil
}

// GetSession fetches one session row regardless of its active flag. A
// missing row reports store.ErrNotFound.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.flows.GetSession(ctx, sessionID)
}

// TouchSession advances a session's last-active stamp, typically from
// request middleware. Ended sessions are left untouched.
func (e *Engine) TouchSession(ctx context.Context, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.flows.TouchSession(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// EndSession terminates one session and revokes its refresh chain. The bool
// reports whether the session was live; the chain revoke runs either way, so
// retrying a partial failure still cleans up.
func (e *Engine) EndSession(ctx context.Context, sessionID, reason string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if reason == "" {
		reason = "ended"
	}

	res := e.flows.EndSession(ctx, sessionID, reason)
	if res.Err != nil {
		return res.Ended, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	}
	if res.Ended {
		e.metricInc(MetricSessionEnded)
		e.emitAudit(ctx, auditEventSessionEnded, SeverityInfo, true, "", sessionID, nil, func() map[string]string {
			return map[string]string{
				"reason":         reason,
				"chains_revoked": strconv.Itoa(res.ChainsRevoked),
			}
		})
	}
	return res.Ended, nil
}
