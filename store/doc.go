// Package store defines the persistent domain records and store contracts for
// the session-security engine: refresh-token chains, user sessions, and the
// per-user account security record.
//
// # Ownership
//
// Records are owned by the engine components: refresh tokens by the token
// lifecycle manager, sessions by the session limiter, and the account security
// record shared between the lockout tracker, the session limiter (read-only),
// and the MFA skip tracker.
//
// # Concurrency contract
//
// Implementations provide correctness through store transactions, never
// through in-process locking. Rotate, RecordFailure, and IncrementMFASkip are
// the compare-and-swap points: each runs as one transaction and reports a lost
// race through a sentinel error instead of blocking.
//
// # What this package must NOT do
//
//   - Import the root engine package (no upward imports).
//   - Compute security policy (lockout tiers, caps, allowances) — policy is
//     injected by callers; stores only apply it atomically.
//   - Hold raw token secrets; only hashes cross this boundary.
package store
