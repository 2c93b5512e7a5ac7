package csrf

import "errors"

var (
	// ErrTokenMalformed marks tokens that do not decode into the expected
	// two-part shape.
	ErrTokenMalformed = errors.New("csrf token malformed")
	// ErrSignatureMismatch marks tokens whose payload fails the HMAC check.
	ErrSignatureMismatch = errors.New("csrf signature mismatch")
	// ErrWrongFlow marks tokens presented against the other flow. Callers
	// should treat this as a deliberate bypass attempt, not client drift.
	ErrWrongFlow = errors.New("csrf token flow mismatch")
	// ErrBindingMismatch marks tokens whose embedded client facts do not
	// match the presenting request.
	ErrBindingMismatch = errors.New("csrf binding mismatch")
	// ErrExpired marks tokens outside their validity window.
	ErrExpired = errors.New("csrf token expired")
)
