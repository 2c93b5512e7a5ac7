package flows

import (
	"context"
	"errors"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureThrottled
	RefreshFailureNotFound
	RefreshFailureReuse
	RefreshFailureExpired
	RefreshFailureFingerprint
	RefreshFailureSecret
	RefreshFailureSignAccess
	RefreshFailureEncode
	RefreshFailureStore
)

// RefreshResult carries the rotated pair or failure metadata. UserID and
// SessionID are populated whenever the presented token resolved to a stored
// row, so callers can attribute reuse and mismatch rejections.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type RefreshTokenStore interface {
	GetByHash(ctx context.Context, tokenHash string) (*store.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, next *store.RefreshToken, now time.Time) error
}

// RefreshDeps captures refresh rotation dependencies. LookupEmail is best
// effort: a miss or directory outage yields an empty claim rather than a
// failed refresh.
type RefreshDeps struct {
	Now              func() time.Time
	DecodeRefresh    func(string) (string, [32]byte, error)
	NewRefreshSecret func() ([32]byte, error)
	HashSecret       func([32]byte) string
	EncodeRefresh    func(sessionID string, secret [32]byte) (string, error)
	SignAccess       func(userID, email, sessionID, jti string) (string, time.Time, error)
	HashFingerprint  func(string) string
	LookupEmail      func(ctx context.Context, userID string) string
	NewID            func() string
	Throttle         func(ctx context.Context, sessionID string) error
	TokenStore       RefreshTokenStore
}

// RunRefresh redeems a refresh token. The stored row is classified first
// (revoked, expired, wrong device), then the rotation compare-and-swap picks
// the single winner under concurrency; a lost swap reports reuse exactly like
// a pre-observed revoked row.
func RunRefresh(ctx context.Context, refreshToken string, device Device, deps RefreshDeps) RefreshResult {
	now := deps.Now()

	sessionID, providedSecret, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	if deps.Throttle != nil {
		if err := deps.Throttle(ctx, sessionID); err != nil {
			return RefreshResult{Failure: RefreshFailureThrottled, Err: err, SessionID: sessionID}
		}
	}

	providedHash := deps.HashSecret(providedSecret)
	row, err := deps.TokenStore.GetByHash(ctx, providedHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureNotFound, Err: err, SessionID: sessionID}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err, SessionID: sessionID}
	}

	if row.Revoked() {
		return RefreshResult{Failure: RefreshFailureReuse, Err: store.ErrRotated, UserID: row.UserID, SessionID: row.SessionID}
	}
	if !row.ExpiresAt.After(now) {
		return RefreshResult{Failure: RefreshFailureExpired, Err: store.ErrExpired, UserID: row.UserID, SessionID: row.SessionID}
	}
	if row.DeviceFingerprint != deps.HashFingerprint(device.Fingerprint) {
		return RefreshResult{Failure: RefreshFailureFingerprint, Err: store.ErrFingerprintMismatch, UserID: row.UserID, SessionID: row.SessionID}
	}

	var email string
	if deps.LookupEmail != nil {
		email = deps.LookupEmail(ctx, row.UserID)
	}

	jti := deps.NewID()
	access, accessExpiry, err := deps.SignAccess(row.UserID, email, row.SessionID, jti)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureSignAccess, Err: err, UserID: row.UserID, SessionID: row.SessionID}
	}

	nextSecret, err := deps.NewRefreshSecret()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureSecret, Err: err, UserID: row.UserID, SessionID: row.SessionID}
	}
	refresh, err := deps.EncodeRefresh(row.SessionID, nextSecret)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureEncode, Err: err, UserID: row.UserID, SessionID: row.SessionID}
	}

	next := &store.RefreshToken{
		TokenID:           deps.NewID(),
		UserID:            row.UserID,
		SessionID:         row.SessionID,
		TokenHash:         deps.HashSecret(nextSecret),
		DeviceFingerprint: row.DeviceFingerprint,
		AccessJTI:         jti,
		AccessExpiresAt:   accessExpiry,
		CreatedAt:         now,
		// The chain's absolute expiry is fixed at issuance; rotation renews
		// the secret, not the lifetime.
		ExpiresAt: row.ExpiresAt,
	}
	if err := deps.TokenStore.Rotate(ctx, providedHash, next, now); err != nil {
		if errors.Is(err, store.ErrRotated) {
			return RefreshResult{Failure: RefreshFailureReuse, Err: err, UserID: row.UserID, SessionID: row.SessionID}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err, UserID: row.UserID, SessionID: row.SessionID}
	}

	return RefreshResult{
		UserID:       row.UserID,
		SessionID:    row.SessionID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiry,
	}
}
