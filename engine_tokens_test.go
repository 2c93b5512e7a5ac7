package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequireFreshAuthWindow(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	pair := env.createPair(t, "u1", "alice@example.com", testDevice())
	claims, err := env.engine.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}

	if err := env.engine.RequireFreshAuth(ctx, claims); err != nil {
		t.Fatalf("just-issued token should be fresh: %v", err)
	}

	// The window is inclusive: exactly five minutes old still passes.
	env.clock.Advance(5 * time.Minute)
	if err := env.engine.RequireFreshAuth(ctx, claims); err != nil {
		t.Fatalf("token at the window edge should be fresh: %v", err)
	}

	env.clock.Advance(time.Second)
	if err := env.engine.RequireFreshAuth(ctx, claims); !errors.Is(err, ErrFreshAuthRequired) {
		t.Fatalf("expected ErrFreshAuthRequired past the window, got %v", err)
	}

	if err := env.engine.RequireFreshAuth(ctx, nil); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for nil claims, got %v", err)
	}
}

func TestRequireFreshAuthConfiguredWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions.RequireFreshAuthMinutes = 10
	env, done := newTestEngine(t, cfg)
	defer done()
	ctx := context.Background()

	pair := env.createPair(t, "u1", "alice@example.com", testDevice())
	claims, err := env.engine.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}

	env.clock.Advance(9 * time.Minute)
	if err := env.engine.RequireFreshAuth(ctx, claims); err != nil {
		t.Fatalf("nine minutes should be inside a ten minute window: %v", err)
	}

	env.clock.Advance(2 * time.Minute)
	if err := env.engine.RequireFreshAuth(ctx, claims); !errors.Is(err, ErrFreshAuthRequired) {
		t.Fatalf("expected ErrFreshAuthRequired at eleven minutes, got %v", err)
	}
}

func TestRequireFreshAuthMissingIssuedAt(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	pair := env.createPair(t, "u1", "alice@example.com", testDevice())
	claims, err := env.engine.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}

	// A token with no issued-at has no provable age and is never fresh.
	claims.IssuedAt = nil
	if err := env.engine.RequireFreshAuth(ctx, claims); !errors.Is(err, ErrFreshAuthRequired) {
		t.Fatalf("expected ErrFreshAuthRequired without issued-at, got %v", err)
	}
}

func TestRevokeRefreshTokenIdempotent(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	pair := env.createPair(t, "u1", "alice@example.com", testDevice())

	revoked, err := env.engine.RevokeRefreshToken(ctx, pair.RefreshToken, "")
	if err != nil || !revoked {
		t.Fatalf("first revoke: got (%v, %v), want (true, nil)", revoked, err)
	}
	revoked, err = env.engine.RevokeRefreshToken(ctx, pair.RefreshToken, "")
	if err != nil || revoked {
		t.Fatalf("second revoke: got (%v, %v), want (false, nil)", revoked, err)
	}
	revoked, err = env.engine.RevokeRefreshToken(ctx, "not-a-refresh-token", "cleanup")
	if err != nil || revoked {
		t.Fatalf("garbage revoke: got (%v, %v), want (false, nil)", revoked, err)
	}

	if _, err := env.engine.RefreshTokenPair(ctx, pair.RefreshToken, testDevice()); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected ErrRefreshTokenInvalid after revocation, got %v", err)
	}

	if got := env.engine.MetricsSnapshot().Counters[MetricTokenRevoked]; got != 1 {
		t.Fatalf("expected exactly one revocation counted, got %d", got)
	}
}

func TestRevokeAllUserTokens(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	deviceA := testDevice()
	deviceB := testDevice()
	deviceB.Fingerprint = "fp-beta"

	pairA := env.createPair(t, "u1", "alice@example.com", deviceA)
	env.clock.Advance(time.Minute)
	pairB := env.createPair(t, "u1", "alice@example.com", deviceB)
	bystander := env.createPair(t, "u2", "bob@example.com", testDevice())

	n, err := env.engine.RevokeAllUserTokens(ctx, "u1")
	if err != nil {
		t.Fatalf("RevokeAllUserTokens failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chains revoked, got %d", n)
	}

	if _, err := env.engine.RefreshTokenPair(ctx, pairA.RefreshToken, deviceA); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected first chain dead, got %v", err)
	}
	if _, err := env.engine.RefreshTokenPair(ctx, pairB.RefreshToken, deviceB); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected second chain dead, got %v", err)
	}

	count, err := env.engine.ActiveSessionCount(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveSessionCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no active sessions after global revoke, got %d", count)
	}

	// The paired access tokens are blacklisted for their remaining lifetime:
	// strict validation rejects them while the blacklist-blind fast path,
	// which only checks the signature and expiry, still accepts them.
	if _, err := env.engine.Validate(ctx, pairA.AccessToken, ModeStrict); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected strict validation to reject blacklisted token, got %v", err)
	}
	if _, err := env.engine.ValidateAccessToken(ctx, pairA.AccessToken); err != nil {
		t.Fatalf("fast validation should not consult the blacklist: %v", err)
	}

	// The other user's credentials are untouched.
	if _, err := env.engine.RefreshTokenPair(ctx, bystander.RefreshToken, testDevice()); err != nil {
		t.Fatalf("bystander refresh failed: %v", err)
	}
	count, err = env.engine.ActiveSessionCount(ctx, "u2")
	if err != nil {
		t.Fatalf("ActiveSessionCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected bystander session to survive, got %d", count)
	}

	snap := env.engine.MetricsSnapshot()
	if got := snap.Counters[MetricTokenRevoked]; got != 2 {
		t.Fatalf("expected 2 revocations counted, got %d", got)
	}
	if got := snap.Counters[MetricAccessBlacklisted]; got != 2 {
		t.Fatalf("expected 2 blacklist entries counted, got %d", got)
	}
	if got := snap.Counters[MetricSessionEnded]; got != 2 {
		t.Fatalf("expected 2 ended sessions counted, got %d", got)
	}
}

func TestRevokeAllUserTokensUnknownUser(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()

	n, err := env.engine.RevokeAllUserTokens(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("RevokeAllUserTokens failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 chains for unknown user, got %d", n)
	}
}

func TestBlacklistAccessToken(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	pair := env.createPair(t, "u1", "alice@example.com", testDevice())
	if err := env.engine.BlacklistAccessToken(ctx, pair.AccessToken); err != nil {
		t.Fatalf("BlacklistAccessToken failed: %v", err)
	}

	if _, err := env.engine.Validate(ctx, pair.AccessToken, ModeStrict); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected strict validation to reject blacklisted token, got %v", err)
	}
	if _, err := env.engine.ValidateAccessToken(ctx, pair.AccessToken); err != nil {
		t.Fatalf("fast validation should still accept the token: %v", err)
	}

	if err := env.engine.BlacklistAccessToken(ctx, "garbage"); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for garbage, got %v", err)
	}

	// An already-expired token cannot be parsed, so there is nothing to deny.
	env.clock.Advance(16 * time.Minute)
	if err := env.engine.BlacklistAccessToken(ctx, pair.AccessToken); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for expired token, got %v", err)
	}

	fresh := env.createPair(t, "u1", "alice@example.com", testDevice())
	env.mr.Close()
	if err := env.engine.BlacklistAccessToken(ctx, fresh.AccessToken); !errors.Is(err, ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable with redis down, got %v", err)
	}
}

func TestRotateSigningKeyContinuity(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	before := env.createPair(t, "u1", "alice@example.com", testDevice())

	if err := env.engine.RotateSigningKey("k2", []byte("fedcba9876543210fedcba9876543210")); err != nil {
		t.Fatalf("RotateSigningKey failed: %v", err)
	}

	// Tokens signed under the retired key keep verifying through the ring.
	if _, err := env.engine.ValidateAccessToken(ctx, before.AccessToken); err != nil {
		t.Fatalf("pre-rotation token should still validate: %v", err)
	}

	after := env.createPair(t, "u1", "alice@example.com", testDevice())
	if _, err := env.engine.ValidateAccessToken(ctx, after.AccessToken); err != nil {
		t.Fatalf("post-rotation token should validate: %v", err)
	}

	// A refresh of a pre-rotation chain re-signs under the new key.
	rotated, err := env.engine.RefreshTokenPair(ctx, before.RefreshToken, testDevice())
	if err != nil {
		t.Fatalf("refresh across rotation failed: %v", err)
	}
	if _, err := env.engine.ValidateAccessToken(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("refreshed token should validate: %v", err)
	}

	if err := env.engine.RotateSigningKey("", []byte("0000111122223333444455556666777788")); err == nil {
		t.Fatal("expected rotation without a key id to fail")
	}
	if err := env.engine.RotateSigningKey("k3", nil); err == nil {
		t.Fatal("expected rotation without a secret to fail")
	}
}

func TestCleanupExpiredTokens(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	stale := env.createPair(t, "u1", "alice@example.com", testDevice())
	if err := env.engine.BlacklistAccessToken(ctx, stale.AccessToken); err != nil {
		t.Fatalf("BlacklistAccessToken failed: %v", err)
	}

	// Past refresh expiry plus the retention grace; the fresh pair created
	// after the jump must survive the sweep.
	env.clock.Advance(7*24*time.Hour + 25*time.Hour)
	live := env.createPair(t, "u2", "bob@example.com", testDevice())

	res := env.engine.CleanupExpiredTokens(ctx)
	if !res.Success {
		t.Fatal("expected sweep to succeed")
	}
	if res.RefreshTokens != 1 {
		t.Fatalf("expected 1 refresh row swept, got %d", res.RefreshTokens)
	}
	if res.BlacklistEntries != 1 {
		t.Fatalf("expected 1 blacklist index entry purged, got %d", res.BlacklistEntries)
	}

	if _, err := env.engine.RefreshTokenPair(ctx, stale.RefreshToken, testDevice()); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected swept chain to be unusable, got %v", err)
	}
	if _, err := env.engine.RefreshTokenPair(ctx, live.RefreshToken, testDevice()); err != nil {
		t.Fatalf("live chain should survive the sweep: %v", err)
	}

	again := env.engine.CleanupExpiredTokens(ctx)
	if !again.Success || again.RefreshTokens != 0 || again.BlacklistEntries != 0 {
		t.Fatalf("expected idempotent second sweep, got %+v", again)
	}

	snap := env.engine.MetricsSnapshot()
	if got := snap.Counters[MetricSweepTokensDeleted]; got != 1 {
		t.Fatalf("expected 1 swept token counted, got %d", got)
	}
	if got := snap.Counters[MetricSweepBlacklistPurged]; got != 1 {
		t.Fatalf("expected 1 purged entry counted, got %d", got)
	}
}
