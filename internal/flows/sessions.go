package flows

import (
	"context"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// EvictionVictims returns the sessions to end so the active count comes back
// to the cap: exactly enough, never more. The input carries the store's list
// order, oldest created first with ties on the lower session id, so the
// victims are the leading slice.
func EvictionVictims(active []*store.Session, limit int) []*store.Session {
	if limit <= 0 || len(active) <= limit {
		return nil
	}
	return active[:len(active)-limit]
}

type IntrospectSessionStore interface {
	Get(ctx context.Context, sessionID string) (*store.Session, error)
	ListActive(ctx context.Context, userID string) ([]*store.Session, error)
	CountActive(ctx context.Context, userID string) (int, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
}

// SessionsDeps captures session introspection dependencies.
type SessionsDeps struct {
	Now          func() time.Time
	SessionStore IntrospectSessionStore
}

func RunActiveSessionCount(ctx context.Context, userID string, deps SessionsDeps) (int, error) {
	return deps.SessionStore.CountActive(ctx, userID)
}

func RunListSessions(ctx context.Context, userID string, deps SessionsDeps) ([]*store.Session, error) {
	return deps.SessionStore.ListActive(ctx, userID)
}

func RunGetSession(ctx context.Context, sessionID string, deps SessionsDeps) (*store.Session, error) {
	return deps.SessionStore.Get(ctx, sessionID)
}

// RunTouchSession advances a session's activity stamp. Inactive sessions are
// left alone.
func RunTouchSession(ctx context.Context, sessionID string, deps SessionsDeps) error {
	return deps.SessionStore.Touch(ctx, sessionID, deps.Now())
}
