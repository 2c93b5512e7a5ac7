package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAnonymousCSRFRoundTrip(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	token, err := env.engine.IssueAnonymousCSRFToken(ctx, testDevice())
	if err != nil {
		t.Fatalf("IssueAnonymousCSRFToken: %v", err)
	}
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, testDevice(), ""); err != nil {
		t.Fatalf("verify from the issuing client: %v", err)
	}

	otherIP := testDevice()
	otherIP.IPAddress = "203.0.113.99"
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, otherIP, ""); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected IP binding rejection, got %v", err)
	}

	otherUA := testDevice()
	otherUA.UserAgent = "different-agent/2"
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, otherUA, ""); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected user-agent binding rejection, got %v", err)
	}
}

func TestAnonymousCSRFWindowRollover(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	token, err := env.engine.IssueAnonymousCSRFToken(ctx, testDevice())
	if err != nil {
		t.Fatalf("IssueAnonymousCSRFToken: %v", err)
	}

	// Still inside the hour window.
	env.clock.Advance(59 * time.Minute)
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, testDevice(), ""); err != nil {
		t.Fatalf("verify inside window: %v", err)
	}

	// One window later the development posture still accepts it.
	env.clock.Advance(2 * time.Minute)
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, testDevice(), ""); err != nil {
		t.Fatalf("verify in grace window: %v", err)
	}

	// Two windows later it is gone.
	env.clock.Advance(time.Hour)
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, testDevice(), ""); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestAnonymousCSRFProductionDropsGraceWindow(t *testing.T) {
	cfg := ProductionConfig()
	cfg.Tokens.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Tokens.KeyID = "k1"
	cfg.Tokens.Issuer = "authcore-test"
	cfg.Tokens.Audience = "app"
	cfg.CSRF.Secret = []byte("fedcba9876543210fedcba9876543210")
	env, done := newTestEngine(t, cfg)
	defer done()
	ctx := context.Background()

	token, err := env.engine.IssueAnonymousCSRFToken(ctx, testDevice())
	if err != nil {
		t.Fatalf("IssueAnonymousCSRFToken: %v", err)
	}

	env.clock.Advance(29 * time.Minute)
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, testDevice(), ""); err != nil {
		t.Fatalf("verify inside production window: %v", err)
	}

	// Production accepts only the current window.
	env.clock.Advance(2 * time.Minute)
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, testDevice(), ""); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected single-window rejection, got %v", err)
	}
}

func TestAuthenticatedCSRFRoundTrip(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	token, err := env.engine.IssueAuthenticatedCSRFToken(ctx, "u1")
	if err != nil {
		t.Fatalf("IssueAuthenticatedCSRFToken: %v", err)
	}
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAuthenticated, DeviceInfo{}, "u1"); err != nil {
		t.Fatalf("verify for the bound user: %v", err)
	}
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAuthenticated, DeviceInfo{}, "u2"); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected user binding rejection, got %v", err)
	}

	env.clock.Advance(23 * time.Hour)
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAuthenticated, DeviceInfo{}, "u1"); err != nil {
		t.Fatalf("verify inside age budget: %v", err)
	}
	env.clock.Advance(2 * time.Hour)
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAuthenticated, DeviceInfo{}, "u1"); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected age rejection, got %v", err)
	}
}

func TestCSRFCrossFlowEscalates(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	// The security row exists once the user has logged in.
	env.createPair(t, "u1", "alice@example.com", testDevice())

	anonToken, err := env.engine.IssueAnonymousCSRFToken(ctx, testDevice())
	if err != nil {
		t.Fatalf("IssueAnonymousCSRFToken: %v", err)
	}

	// An anonymous token presented on an authenticated surface is a forgery
	// attempt, not a stale form.
	if err := env.engine.VerifyCSRFToken(ctx, anonToken, CSRFFlowAuthenticated, testDevice(), "u1"); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected cross-flow rejection, got %v", err)
	}

	counters := env.engine.MetricsSnapshot().Counters
	if counters[MetricCSRFCrossFlow] != 1 {
		t.Fatalf("cross-flow counter = %d", counters[MetricCSRFCrossFlow])
	}
	if counters[MetricCSRFRejected] != 1 {
		t.Fatalf("rejected counter = %d", counters[MetricCSRFRejected])
	}

	rec, err := env.sql.Security().Get(ctx, "u1")
	if err != nil {
		t.Fatalf("security record: %v", err)
	}
	if !rec.SuspiciousActivity {
		t.Fatal("cross-flow on an authenticated surface should mark the account")
	}

	// The reverse direction rejects without blaming a user.
	authToken, err := env.engine.IssueAuthenticatedCSRFToken(ctx, "u1")
	if err != nil {
		t.Fatalf("IssueAuthenticatedCSRFToken: %v", err)
	}
	if err := env.engine.VerifyCSRFToken(ctx, authToken, CSRFFlowAnonymous, testDevice(), ""); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected cross-flow rejection, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricCSRFCrossFlow]; got != 2 {
		t.Fatalf("cross-flow counter after reverse = %d", got)
	}
}

func TestCSRFRejectsUnknownFlowAndGarbage(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	token, err := env.engine.IssueAnonymousCSRFToken(ctx, testDevice())
	if err != nil {
		t.Fatalf("IssueAnonymousCSRFToken: %v", err)
	}
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlow("weird"), testDevice(), ""); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected unknown flow rejection, got %v", err)
	}

	for _, bad := range []string{"", "no-dot", "a.b.c", "!!!.###"} {
		if err := env.engine.VerifyCSRFToken(ctx, bad, CSRFFlowAnonymous, testDevice(), ""); !errors.Is(err, ErrCSRFTokenInvalid) {
			t.Fatalf("token %q: expected rejection, got %v", bad, err)
		}
	}
}

func TestCSRFContextFactsByDefault(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()

	ctx := WithClientIP(context.Background(), "198.51.100.7")
	ctx = WithUserAgent(ctx, "ctx-agent/1")

	token, err := env.engine.IssueAnonymousCSRFToken(ctx, DeviceInfo{})
	if err != nil {
		t.Fatalf("IssueAnonymousCSRFToken: %v", err)
	}
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, DeviceInfo{}, ""); err != nil {
		t.Fatalf("verify with context facts: %v", err)
	}

	// Explicit device fields override whatever the context carries.
	dev := DeviceInfo{IPAddress: "198.51.100.8", UserAgent: "ctx-agent/1"}
	if err := env.engine.VerifyCSRFToken(ctx, token, CSRFFlowAnonymous, dev, ""); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected device override to change the binding, got %v", err)
	}
}
