// Package authcore is the session-security layer beneath a multi-tenant web
// application: JWT access tokens with rotating opaque refresh tokens,
// progressive account lockout, concurrent-session limiting, stateless CSRF
// tokens for anonymous and authenticated flows, and an MFA onboarding grace
// allowance.
//
// The package sits behind the credential check, not in front of it: callers
// verify passwords against their own user store, then drive this engine for
// everything that happens after. Engine methods are safe to call from
// multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, LockoutStatus, MetricsSnapshot, etc.), plus the
// store contracts under store/ for custom persistence. Flow orchestration,
// refresh-token encoding, the blacklist index, window counters, and audit
// dispatch live under internal/ and are never exported.
//
// # Trust and failure model
//
// A signed access token is proof of an active session until it expires;
// revocation beyond expiry requires the strict validation mode, which
// consults the blacklist and fails closed when that backend is unreachable.
// The fast mode is pure local verification: no Redis, no database, so a
// cache outage cannot take request authentication down. Identity resolution
// goes through the caller-supplied [UserDirectory], and lookups that resolve
// nothing answer with shapes indistinguishable from fresh accounts.
//
// # Performance contract
//
// ValidateAccessToken is the hot path: signature and claim checks only, no
// network round-trips. Refresh and revocation are allowed store transactions;
// issuance additionally reads the active session set to enforce the cap.
package authcore
