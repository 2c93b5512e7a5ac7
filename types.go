package authcore

import (
	"context"
	"time"

	"github.com/insano70/bcos-sub014/csrf"
	"github.com/insano70/bcos-sub014/internal/flows"
)

// DeviceInfo describes the client observed on a request. Fingerprint is the
// caller-computed device fingerprint; IPAddress and UserAgent feed CSRF
// binding and audit attribution.
type DeviceInfo struct {
	IPAddress   string
	UserAgent   string
	Fingerprint string
	DeviceName  string
}

// TokenPair is the credential set returned by issuance and rotation.
// RefreshToken is the only copy of the opaque secret; the store keeps a hash.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresAt    time.Time
}

// LockoutStatus reports brute-force lock state for one identity. Lookups on
// unknown identities report the zero status, so the shape of the answer
// cannot probe for account existence.
type LockoutStatus struct {
	Locked      bool
	LockedUntil time.Time
	Attempts    int
}

// MFASkipResult reports the deferral allowance left after a recorded skip.
type MFASkipResult struct {
	SkipsRemaining int
}

// DirectoryUser is the directory's view of one account.
type DirectoryUser struct {
	UserID string
	Email  string
}

// UserDirectory resolves identities for the lockout tracker and for claims
// on refreshed access tokens. The host application supplies the
// implementation; the engine never stores credentials or profile data.
type UserDirectory interface {
	LookupByEmail(ctx context.Context, email string) (DirectoryUser, bool, error)
	LookupByID(ctx context.Context, userID string) (DirectoryUser, bool, error)
}

// CSRFFlow names the surface flavor a CSRF token was issued for.
type CSRFFlow = csrf.Flow

const (
	// CSRFFlowAnonymous marks pre-authentication surfaces (login, signup).
	CSRFFlowAnonymous = csrf.FlowAnonymous
	// CSRFFlowAuthenticated marks surfaces behind a session.
	CSRFFlowAuthenticated = csrf.FlowAuthenticated
)

// Sweep and health results are produced by the flow layer and returned
// unchanged.
type (
	TokenSweepResult   = flows.TokenSweepResult
	LockoutSweepResult = flows.LockoutSweepResult
	HealthStatus       = flows.HealthResult
)
