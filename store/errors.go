package store

import "errors"

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrRotated is returned when a rotation compare-and-swap finds no active
	// row for the presented hash: the token was already redeemed, revoked, or
	// lost a concurrent rotation race.
	ErrRotated = errors.New("refresh token already rotated")

	// ErrExpired is returned when a row exists but its expiry has passed.
	ErrExpired = errors.New("record expired")

	// ErrFingerprintMismatch is returned when a presented device fingerprint
	// does not match the one bound at issuance.
	ErrFingerprintMismatch = errors.New("device fingerprint mismatch")

	// ErrSkipsExhausted is returned when an MFA skip increment finds the
	// counter already at the allowance.
	ErrSkipsExhausted = errors.New("mfa skip allowance exhausted")

	// ErrUnavailable wraps driver and connection failures so callers can
	// separate infrastructure faults from domain outcomes.
	ErrUnavailable = errors.New("store unavailable")
)
