package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

func TestSessionCapEvictsOldest(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	devices := []DeviceInfo{
		{IPAddress: "203.0.113.1", UserAgent: "ua-1", Fingerprint: "fp-1", DeviceName: "phone"},
		{IPAddress: "203.0.113.2", UserAgent: "ua-2", Fingerprint: "fp-2", DeviceName: "laptop"},
		{IPAddress: "203.0.113.3", UserAgent: "ua-3", Fingerprint: "fp-3", DeviceName: "tablet"},
		{IPAddress: "203.0.113.4", UserAgent: "ua-4", Fingerprint: "fp-4", DeviceName: "desktop"},
	}

	var pairs []*TokenPair
	for _, dev := range devices {
		pairs = append(pairs, env.createPair(t, "u1", "alice@example.com", dev))
		env.clock.Advance(time.Minute)
	}

	n, err := env.engine.ActiveSessionCount(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveSessionCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected cap of 3 active sessions, got %d", n)
	}

	// The oldest session was ended, everything newer survives in order.
	sessions, err := env.engine.ListUserSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	want := []string{pairs[1].SessionID, pairs[2].SessionID, pairs[3].SessionID}
	if len(sessions) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(sessions))
	}
	for i, sess := range sessions {
		if sess.SessionID != want[i] {
			t.Fatalf("session %d: expected %s, got %s", i, want[i], sess.SessionID)
		}
	}

	evicted, err := env.engine.GetSession(ctx, pairs[0].SessionID)
	if err != nil {
		t.Fatalf("GetSession on evicted: %v", err)
	}
	if evicted.IsActive || evicted.EndReason != "evicted" {
		t.Fatalf("evicted session state: active=%v reason=%q", evicted.IsActive, evicted.EndReason)
	}

	// Eviction killed the session's refresh chain too.
	if _, err := env.engine.RefreshTokenPair(ctx, pairs[0].RefreshToken, devices[0]); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected evicted chain rejection, got %v", err)
	}

	if got := env.engine.MetricsSnapshot().Counters[MetricSessionEvicted]; got != 1 {
		t.Fatalf("expected 1 eviction counted, got %d", got)
	}
}

func TestSessionCapIsPerUser(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	bob := env.createPair(t, "u2", "bob@example.com", testDevice())
	env.clock.Advance(time.Second)
	for i := 0; i < 4; i++ {
		env.createPair(t, "u1", "alice@example.com", testDevice())
		env.clock.Advance(time.Second)
	}

	sess, err := env.engine.GetSession(ctx, bob.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.IsActive {
		t.Fatal("another user's logins must not evict this session")
	}
}

func TestEndSessionRevokesChain(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	pair := env.createPair(t, "u1", "alice@example.com", testDevice())

	ended, err := env.engine.EndSession(ctx, pair.SessionID, "user logout")
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if !ended {
		t.Fatal("expected a live session to end")
	}

	sess, err := env.engine.GetSession(ctx, pair.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.IsActive || sess.EndReason != "user logout" {
		t.Fatalf("ended session state: active=%v reason=%q", sess.IsActive, sess.EndReason)
	}
	if !sess.EndedAt.Equal(env.clock.Now()) {
		t.Fatalf("EndedAt = %v, want %v", sess.EndedAt, env.clock.Now())
	}

	if _, err := env.engine.RefreshTokenPair(ctx, pair.RefreshToken, testDevice()); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected dead chain after end, got %v", err)
	}

	n, err := env.engine.ActiveSessionCount(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveSessionCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 active sessions, got %d", n)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	pair := env.createPair(t, "u1", "alice@example.com", testDevice())

	if ended, err := env.engine.EndSession(ctx, pair.SessionID, ""); err != nil || !ended {
		t.Fatalf("first end: ended=%v err=%v", ended, err)
	}
	if ended, err := env.engine.EndSession(ctx, pair.SessionID, ""); err != nil || ended {
		t.Fatalf("second end: ended=%v err=%v", ended, err)
	}
	if ended, err := env.engine.EndSession(ctx, "no-such-session", ""); err != nil || ended {
		t.Fatalf("unknown session: ended=%v err=%v", ended, err)
	}

	// Empty reason falls back to a stable default.
	sess, err := env.engine.GetSession(ctx, pair.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.EndReason != "ended" {
		t.Fatalf("expected default reason, got %q", sess.EndReason)
	}
}

func TestTouchSession(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	pair := env.createPair(t, "u1", "alice@example.com", testDevice())

	env.clock.Advance(30 * time.Minute)
	if err := env.engine.TouchSession(ctx, pair.SessionID); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	sess, err := env.engine.GetSession(ctx, pair.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.LastActiveAt.Equal(env.clock.Now()) {
		t.Fatalf("LastActiveAt = %v, want %v", sess.LastActiveAt, env.clock.Now())
	}

	// Touching an ended session leaves its stamp alone.
	if _, err := env.engine.EndSession(ctx, pair.SessionID, "done"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	stamp := sess.LastActiveAt
	env.clock.Advance(time.Hour)
	if err := env.engine.TouchSession(ctx, pair.SessionID); err != nil {
		t.Fatalf("TouchSession on ended session: %v", err)
	}
	sess, err = env.engine.GetSession(ctx, pair.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.LastActiveAt.Equal(stamp) {
		t.Fatalf("ended session stamp moved: %v", sess.LastActiveAt)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()

	if _, err := env.engine.GetSession(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestSessionRecordsDeviceMetadata(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()

	dev := DeviceInfo{
		IPAddress:   "198.51.100.9",
		UserAgent:   "browser/7",
		Fingerprint: "fp-meta",
		DeviceName:  "workstation",
	}
	pair := env.createPair(t, "u1", "alice@example.com", dev)

	sess, err := env.engine.GetSession(context.Background(), pair.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.UserID != "u1" ||
		sess.IPAddress != dev.IPAddress ||
		sess.UserAgent != dev.UserAgent ||
		sess.DeviceFingerprint != dev.Fingerprint ||
		sess.DeviceName != dev.DeviceName {
		t.Fatalf("session metadata mismatch: %+v", sess)
	}
	if !sess.CreatedAt.Equal(env.clock.Now()) || !sess.LastActiveAt.Equal(env.clock.Now()) {
		t.Fatalf("session stamps: created=%v last=%v", sess.CreatedAt, sess.LastActiveAt)
	}
}
