package store

import "time"

// RefreshToken defines a public type used by the session-security store APIs.
//
// RefreshToken rows are created on login and rotation; after insert only the
// revocation fields are ever mutated. Rows are removed solely by the expiry
// sweep once past the retention grace period.
type RefreshToken struct {
	TokenID           string
	UserID            string
	SessionID         string
	TokenHash         string
	DeviceFingerprint string

	// AccessJTI and AccessExpiresAt track the most recent access token issued
	// against this chain so a global revoke can blacklist it.
	AccessJTI       string
	AccessExpiresAt time.Time

	CreatedAt time.Time
	ExpiresAt time.Time

	RevokedAt    time.Time
	RevokeReason string
}

// Revoked reports whether the revocation marker has been set.
func (t *RefreshToken) Revoked() bool {
	return !t.RevokedAt.IsZero()
}

// Active reports whether the token is neither revoked nor expired at the given instant.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked() && t.ExpiresAt.After(now)
}

// Session defines a public type used by the session-security store APIs.
type Session struct {
	SessionID         string
	UserID            string
	DeviceFingerprint string
	DeviceName        string
	IPAddress         string
	UserAgent         string

	CreatedAt    time.Time
	LastActiveAt time.Time

	IsActive  bool
	EndedAt   time.Time
	EndReason string
}

// SecurityRecord defines a public type used by the session-security store APIs.
//
// One row exists per user, lazily created on first touch with fixed defaults.
// The lockout tracker mutates the failure fields, the MFA skip tracker the
// mfa fields, and the session limiter reads MaxConcurrentSessions.
type SecurityRecord struct {
	UserID string

	FailedLoginAttempts int
	LockedUntil         time.Time
	LockoutReason       string

	MaxConcurrentSessions   int
	RequireFreshAuthMinutes int

	SuspiciousActivity bool

	MFASkipCount      int
	MFAFirstSkippedAt time.Time
	MFALastSkippedAt  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockedAt reports whether the record holds an unexpired lock at the given instant.
func (r *SecurityRecord) LockedAt(now time.Time) bool {
	return !r.LockedUntil.IsZero() && r.LockedUntil.After(now)
}

// SecurityDefaults seeds a lazily created SecurityRecord.
type SecurityDefaults struct {
	MaxConcurrentSessions   int
	RequireFreshAuthMinutes int
}

// RevokedChain reports one refresh chain affected by a bulk revocation,
// carrying what the caller needs to blacklist the outstanding access token.
type RevokedChain struct {
	SessionID       string
	AccessJTI       string
	AccessExpiresAt time.Time
}
