package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestAuthenticationLifecycle walks one account from brute-force lockout
// through login, rotation, and global revocation, checking the cross-cutting
// guarantees at each step.
func TestAuthenticationLifecycle(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	// Two bad passwords leave the account open.
	for i := 1; i <= 2; i++ {
		status, err := env.engine.RecordFailedAttempt(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if status.Locked {
			t.Fatalf("attempt %d should not lock", i)
		}
	}

	// The third arms a one-minute window and blocks issuance outright.
	status, err := env.engine.RecordFailedAttempt(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if !status.Locked {
		t.Fatal("third failure should lock")
	}
	if want := env.clock.Now().Add(time.Minute); !status.LockedUntil.Equal(want) {
		t.Fatalf("locked until %v, want %v", status.LockedUntil, want)
	}
	if _, err := env.engine.CreateTokenPair(ctx, "u1", "alice@example.com", testDevice(), false); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("issuance under lockout: got %v, want ErrAccountLocked", err)
	}

	// A successful password check clears the slate and login proceeds.
	env.clock.Advance(61 * time.Second)
	if err := env.engine.ClearFailedAttempts(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ClearFailedAttempts: %v", err)
	}
	first := env.createPair(t, "u1", "alice@example.com", testDevice())

	claims, err := env.engine.ValidateAccessToken(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("validate fresh access token: %v", err)
	}
	if claims.Subject != "u1" || claims.SID != first.SessionID {
		t.Fatalf("claims carry %s/%s, want u1/%s", claims.Subject, claims.SID, first.SessionID)
	}

	// Rotation keeps the session and kills the predecessor.
	second, err := env.engine.RefreshTokenPair(ctx, first.RefreshToken, testDevice())
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("rotation moved the session: %s -> %s", first.SessionID, second.SessionID)
	}
	if _, err := env.engine.RefreshTokenPair(ctx, first.RefreshToken, testDevice()); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("replaying the rotated token: got %v, want ErrRefreshTokenInvalid", err)
	}

	// The successor's access token passes the blacklist check: rotation is
	// not revocation.
	if _, err := env.engine.Validate(ctx, second.AccessToken, ModeStrict); err != nil {
		t.Fatalf("strict validate after rotation: %v", err)
	}

	// Global revocation kills the chain, its access token, and the session.
	revoked, err := env.engine.RevokeAllUserTokens(ctx, "u1")
	if err != nil {
		t.Fatalf("RevokeAllUserTokens: %v", err)
	}
	if revoked != 1 {
		t.Fatalf("revoked %d chains, want 1", revoked)
	}
	if _, err := env.engine.RefreshTokenPair(ctx, second.RefreshToken, testDevice()); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("refresh after global revoke: got %v, want ErrRefreshTokenInvalid", err)
	}
	if _, err := env.engine.Validate(ctx, second.AccessToken, ModeStrict); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("strict validate after global revoke: got %v, want ErrAccessTokenInvalid", err)
	}
	// Fast mode stays signature-only, so the revoked token rides out its TTL
	// on surfaces that opted into that window.
	if _, err := env.engine.Validate(ctx, second.AccessToken, ModeFast); err != nil {
		t.Fatalf("fast validate after global revoke: %v", err)
	}

	count, err := env.engine.ActiveSessionCount(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveSessionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("active sessions after global revoke: %d, want 0", count)
	}
}
