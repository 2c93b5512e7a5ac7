package flows

import (
	"context"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureLocked
	IssueFailureSessionID
	IssueFailureSecret
	IssueFailureSignAccess
	IssueFailureEncode
	IssueFailureStore
)

// Device carries caller-observed client facts. Flows trust these for binding
// decisions but never compute them.
type Device struct {
	IPAddress   string
	UserAgent   string
	Fingerprint string
	DeviceName  string
}

// IssueRequest is the input to RunIssue.
type IssueRequest struct {
	UserID     string
	Email      string
	Device     Device
	RememberMe bool
}

// EvictedSession identifies one session removed by the cap check.
type EvictedSession struct {
	SessionID string
}

// IssueResult carries the issued pair or failure metadata.
type IssueResult struct {
	Failure      IssueFailureKind
	Err          error
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	LockedUntil  time.Time
	Evicted      []EvictedSession
}

type IssueTokenStore interface {
	Insert(ctx context.Context, token *store.RefreshToken) error
	RevokeBySession(ctx context.Context, sessionID, reason string, now time.Time) (int, error)
}

type IssueSessionStore interface {
	Insert(ctx context.Context, sess *store.Session) error
	ListActive(ctx context.Context, userID string) ([]*store.Session, error)
	End(ctx context.Context, sessionID, reason string, at time.Time) (bool, error)
}

type IssueSecurityStore interface {
	Ensure(ctx context.Context, userID string, defaults store.SecurityDefaults, now time.Time) error
	Get(ctx context.Context, userID string) (*store.SecurityRecord, error)
}

// IssueDeps captures token issuance dependencies.
type IssueDeps struct {
	Now              func() time.Time
	NewSessionID     func() (string, error)
	NewID            func() string
	NewRefreshSecret func() ([32]byte, error)
	HashSecret       func([32]byte) string
	EncodeRefresh    func(sessionID string, secret [32]byte) (string, error)
	SignAccess       func(userID, email, sessionID, jti string) (string, time.Time, error)
	HashFingerprint  func(string) string
	RefreshTTL       time.Duration
	RememberMeTTL    time.Duration
	Defaults         store.SecurityDefaults
	TokenStore       IssueTokenStore
	SessionStore     IssueSessionStore
	SecurityStore    IssueSecurityStore
	Warn             func(string, ...any)
}

// RunIssue creates a session with a fresh access/refresh pair, then brings
// the user's active session count back under the cap. Eviction follows the
// insert, so a concurrent double-login can overshoot for at most one pass;
// the next issuance corrects it.
func RunIssue(ctx context.Context, req IssueRequest, deps IssueDeps) IssueResult {
	now := deps.Now()

	if err := deps.SecurityStore.Ensure(ctx, req.UserID, deps.Defaults, now); err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err}
	}
	rec, err := deps.SecurityStore.Get(ctx, req.UserID)
	if err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err}
	}
	if rec.LockedAt(now) {
		return IssueResult{Failure: IssueFailureLocked, LockedUntil: rec.LockedUntil}
	}

	maxSessions := rec.MaxConcurrentSessions
	if maxSessions <= 0 {
		maxSessions = deps.Defaults.MaxConcurrentSessions
	}

	sessionID, err := deps.NewSessionID()
	if err != nil {
		return IssueResult{Failure: IssueFailureSessionID, Err: err}
	}
	secret, err := deps.NewRefreshSecret()
	if err != nil {
		return IssueResult{Failure: IssueFailureSecret, Err: err}
	}

	jti := deps.NewID()
	access, accessExpiry, err := deps.SignAccess(req.UserID, req.Email, sessionID, jti)
	if err != nil {
		return IssueResult{Failure: IssueFailureSignAccess, Err: err}
	}
	refresh, err := deps.EncodeRefresh(sessionID, secret)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncode, Err: err}
	}

	refreshTTL := deps.RefreshTTL
	if req.RememberMe {
		refreshTTL = deps.RememberMeTTL
	}
	fingerprint := deps.HashFingerprint(req.Device.Fingerprint)

	sess := &store.Session{
		SessionID:         sessionID,
		UserID:            req.UserID,
		DeviceFingerprint: fingerprint,
		DeviceName:        req.Device.DeviceName,
		IPAddress:         req.Device.IPAddress,
		UserAgent:         req.Device.UserAgent,
		CreatedAt:         now,
		LastActiveAt:      now,
		IsActive:          true,
	}
	if err := deps.SessionStore.Insert(ctx, sess); err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err}
	}

	row := &store.RefreshToken{
		TokenID:           deps.NewID(),
		UserID:            req.UserID,
		SessionID:         sessionID,
		TokenHash:         deps.HashSecret(secret),
		DeviceFingerprint: fingerprint,
		AccessJTI:         jti,
		AccessExpiresAt:   accessExpiry,
		CreatedAt:         now,
		ExpiresAt:         now.Add(refreshTTL),
	}
	if err := deps.TokenStore.Insert(ctx, row); err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err}
	}

	active, err := deps.SessionStore.ListActive(ctx, req.UserID)
	if err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err}
	}

	var evicted []EvictedSession
	for _, victim := range EvictionVictims(active, maxSessions) {
		if _, err := deps.SessionStore.End(ctx, victim.SessionID, "evicted", now); err != nil {
			if deps.Warn != nil {
				deps.Warn("authcore: session eviction failed: %v", err)
			}
			continue
		}
		if _, err := deps.TokenStore.RevokeBySession(ctx, victim.SessionID, "evicted", now); err != nil && deps.Warn != nil {
			deps.Warn("authcore: evicted session chain revoke failed: %v", err)
		}
		evicted = append(evicted, EvictedSession{SessionID: victim.SessionID})
	}

	return IssueResult{
		SessionID:    sessionID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiry,
		Evicted:      evicted,
	}
}
