//go:build integration
// +build integration

package test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	authcore "github.com/insano70/bcos-sub014"
	"github.com/insano70/bcos-sub014/store/sqlstore"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// integrationConfig is the default preset with deterministic test keys. The
// throttle and monitor stay at their shipped values so the suite exercises
// what production runs.
func integrationConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.Tokens.PrivateKey = bytes.Repeat([]byte("s"), 32)
	cfg.Tokens.KeyID = "it"
	cfg.CSRF.Secret = bytes.Repeat([]byte("c"), 32)
	return cfg
}

// newIntegrationEngine builds a full engine on miniredis and an in-memory
// SQLite store.
func newIntegrationEngine(t *testing.T) (*authcore.Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	engine, err := buildIntegrationEngine(rdb)
	if err != nil {
		_ = rdb.Close()
		mr.Close()
		t.Fatalf("build engine: %v", err)
	}

	return engine, func() {
		_ = engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// buildIntegrationEngine wires the shared test posture around any Redis
// backend. The relational side is always a private in-memory SQLite store.
func buildIntegrationEngine(rdb redis.UniversalClient) (*authcore.Engine, error) {
	return authcore.NewBuilder().
		WithConfig(integrationConfig()).
		WithDatabase(sqlstore.DialectSQLite, ":memory:").
		WithRedis(rdb).
		WithUserDirectory(integrationDirectory{}).
		Build()
}

// integrationDirectory resolves every identity deterministically: the local
// part of an e-mail is the user id suffix, and ids map back the same way.
type integrationDirectory struct{}

func (integrationDirectory) LookupByEmail(ctx context.Context, email string) (authcore.DirectoryUser, bool, error) {
	local, _, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return authcore.DirectoryUser{}, false, nil
	}
	return authcore.DirectoryUser{UserID: "uid-" + local, Email: email}, true, nil
}

func (integrationDirectory) LookupByID(ctx context.Context, userID string) (authcore.DirectoryUser, bool, error) {
	local, ok := strings.CutPrefix(userID, "uid-")
	if !ok {
		return authcore.DirectoryUser{}, false, nil
	}
	return authcore.DirectoryUser{UserID: userID, Email: local + "@example.test"}, true, nil
}

func testDevice(name string) authcore.DeviceInfo {
	return authcore.DeviceInfo{
		IPAddress:   "203.0.113.7",
		UserAgent:   "integration-suite/1.0",
		Fingerprint: name + "-fp",
		DeviceName:  name,
	}
}
