package flows

import (
	"context"
	"time"

	"github.com/insano70/bcos-sub014/jwt"
	"github.com/insano70/bcos-sub014/store"
)

type RevokeTokenStore interface {
	Revoke(ctx context.Context, tokenHash, reason string, now time.Time) (bool, error)
	RevokeBySession(ctx context.Context, sessionID, reason string, now time.Time) (int, error)
	RevokeAllForUser(ctx context.Context, userID, reason string, now time.Time) ([]store.RevokedChain, error)
}

type RevokeSessionStore interface {
	ListActive(ctx context.Context, userID string) ([]*store.Session, error)
	End(ctx context.Context, sessionID, reason string, at time.Time) (bool, error)
}

type RevokeBlacklist interface {
	Add(ctx context.Context, jti string, expiresAt, now time.Time) error
}

// RevokeDeps captures revocation dependencies.
type RevokeDeps struct {
	Now           func() time.Time
	DecodeRefresh func(string) (string, [32]byte, error)
	HashSecret    func([32]byte) string
	ParseAccess   func(string) (*jwt.AccessClaims, error)
	TokenStore    RevokeTokenStore
	SessionStore  RevokeSessionStore
	Blacklist     RevokeBlacklist
}

// RunRevokeToken revokes a single refresh token. Malformed tokens match
// nothing and report false without an error; only infrastructure faults
// surface as errors.
func RunRevokeToken(ctx context.Context, refreshToken, reason string, deps RevokeDeps) (bool, error) {
	_, secret, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return false, nil
	}
	return deps.TokenStore.Revoke(ctx, deps.HashSecret(secret), reason, deps.Now())
}

// RevokeAllResult reports the scope of a global revocation. Err holds the
// first failure while the remaining work still ran, so a blacklist outage
// cannot silently shrink the revoked set.
type RevokeAllResult struct {
	Revoked     int
	Blacklisted int
	Ended       int
	Err         error
}

// RunRevokeAll revokes every live refresh chain for a user, blacklists the
// paired access tokens for their remaining lifetime, and ends all active
// sessions.
func RunRevokeAll(ctx context.Context, userID, reason string, deps RevokeDeps) RevokeAllResult {
	now := deps.Now()

	chains, err := deps.TokenStore.RevokeAllForUser(ctx, userID, reason, now)
	if err != nil {
		return RevokeAllResult{Err: err}
	}

	res := RevokeAllResult{Revoked: len(chains)}
	for _, chain := range chains {
		if err := deps.Blacklist.Add(ctx, chain.AccessJTI, chain.AccessExpiresAt, now); err != nil {
			if res.Err == nil {
				res.Err = err
			}
			continue
		}
		res.Blacklisted++
	}

	active, err := deps.SessionStore.ListActive(ctx, userID)
	if err != nil {
		if res.Err == nil {
			res.Err = err
		}
		return res
	}
	for _, sess := range active {
		ended, err := deps.SessionStore.End(ctx, sess.SessionID, reason, now)
		if err != nil {
			if res.Err == nil {
				res.Err = err
			}
			continue
		}
		if ended {
			res.Ended++
		}
	}
	return res
}

// BlacklistAccessResult carries the outcome of an immediate access token
// invalidation.
type BlacklistAccessResult struct {
	JTI     string
	Invalid bool
	Err     error
}

// RunBlacklistAccess parses an access token and blacklists its jti for the
// token's remaining lifetime.
func RunBlacklistAccess(ctx context.Context, accessToken string, deps RevokeDeps) BlacklistAccessResult {
	claims, err := deps.ParseAccess(accessToken)
	if err != nil {
		return BlacklistAccessResult{Invalid: true, Err: err}
	}

	now := deps.Now()
	expiresAt := now
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := deps.Blacklist.Add(ctx, claims.ID, expiresAt, now); err != nil {
		return BlacklistAccessResult{JTI: claims.ID, Err: err}
	}
	return BlacklistAccessResult{JTI: claims.ID}
}

// EndSessionResult reports one administrative session termination.
type EndSessionResult struct {
	Ended         bool
	ChainsRevoked int
	Err           error
}

// RunEndSession ends one session and revokes its refresh chains. The chain
// revoke runs even when the session was already inactive, so a retried call
// still cleans up.
func RunEndSession(ctx context.Context, sessionID, reason string, deps RevokeDeps) EndSessionResult {
	now := deps.Now()

	ended, err := deps.SessionStore.End(ctx, sessionID, reason, now)
	if err != nil {
		return EndSessionResult{Err: err}
	}
	n, err := deps.TokenStore.RevokeBySession(ctx, sessionID, reason, now)
	if err != nil {
		return EndSessionResult{Ended: ended, Err: err}
	}
	return EndSessionResult{Ended: ended, ChainsRevoked: n}
}
