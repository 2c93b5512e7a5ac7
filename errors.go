package authcore

import "errors"

var (
	// ErrAccessTokenInvalid covers every access token rejection: malformed,
	// bad signature, expired, not yet valid, blacklisted. The precise reason
	// is audited internally and never returned to the caller.
	ErrAccessTokenInvalid = errors.New("invalid access token")
	// ErrRefreshTokenInvalid covers every refresh rejection the client could
	// have caused: unknown, revoked, expired, reused, wrong device.
	ErrRefreshTokenInvalid = errors.New("invalid refresh token")
	// ErrCSRFTokenInvalid covers every CSRF rejection: signature, binding,
	// window, age, cross-flow.
	ErrCSRFTokenInvalid = errors.New("invalid csrf token")
	// ErrAccountLocked rejects issuance while a brute-force lock is armed.
	ErrAccountLocked = errors.New("account locked")
	// ErrMFASkipsExhausted is distinct so callers can branch to forced
	// enrollment.
	ErrMFASkipsExhausted = errors.New("mfa skips exhausted")
	// ErrFreshAuthRequired signals a step-up surface that the access token is
	// older than the account's freshness window; callers re-prompt for
	// credentials.
	ErrFreshAuthRequired = errors.New("fresh authentication required")
	// ErrRefreshRateLimited is returned when a session's refresh attempts
	// exceed the configured throttle window.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrInvalidValidationMode rejects Validate calls with an unknown mode.
	ErrInvalidValidationMode = errors.New("invalid validation mode")
	// ErrStoreUnavailable wraps relational store faults.
	ErrStoreUnavailable = errors.New("auth store unavailable")
	// ErrCacheUnavailable wraps key/value store faults, including strict-mode
	// blacklist checks that fail closed.
	ErrCacheUnavailable = errors.New("auth cache unavailable")
	// ErrEngineNotReady is returned by methods on an engine that was not
	// produced by Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
