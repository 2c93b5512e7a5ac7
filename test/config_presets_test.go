package test

import (
	"bytes"
	"testing"
	"time"

	authcore "github.com/insano70/bcos-sub014"
)

// Presets ship without key material; callers supply signing and CSRF
// secrets. Tests mirror that contract before calling Validate.
func withTestKeys(cfg authcore.Config) authcore.Config {
	cfg.Tokens.PrivateKey = bytes.Repeat([]byte("k"), 32)
	cfg.Tokens.KeyID = "test"
	cfg.CSRF.Secret = bytes.Repeat([]byte("c"), 32)
	return cfg
}

func TestDefaultConfigPresetValidates(t *testing.T) {
	cfg := authcore.DefaultConfig()

	if cfg.Security.ValidationMode != authcore.ModeFast {
		t.Fatalf("expected ModeFast, got %v", cfg.Security.ValidationMode)
	}
	if !cfg.Security.EnableRefreshThrottle {
		t.Fatal("expected refresh throttle to stay enabled")
	}
	if cfg.Security.ProductionMode {
		t.Fatal("expected production mode off in baseline preset")
	}
	if len(cfg.Tokens.PrivateKey) != 0 || len(cfg.CSRF.Secret) != 0 {
		t.Fatal("expected preset to ship without key material")
	}
	if cfg.Tokens.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access TTL, got %v", cfg.Tokens.AccessTTL)
	}
	if cfg.Lockout.FirstLock >= cfg.Lockout.SecondLock || cfg.Lockout.SecondLock >= cfg.Lockout.MaxLock {
		t.Fatal("expected lockout tiers to escalate")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected bare preset to fail validation without keys")
	}

	cfg = withTestKeys(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected keyed preset to validate, got %v", err)
	}
}

func TestProductionConfigPresetValidates(t *testing.T) {
	cfg := authcore.ProductionConfig()

	if !cfg.Security.ProductionMode {
		t.Fatal("expected production mode enabled")
	}
	if cfg.CSRF.AnonWindow > 30*time.Minute {
		t.Fatalf("expected anonymous CSRF window <= 30m, got %v", cfg.CSRF.AnonWindow)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("expected metrics enabled")
	}
	if cfg.Audit.DropIfFull {
		t.Fatal("expected audit backpressure instead of dropping")
	}
	if !cfg.Security.EnableRefreshThrottle {
		t.Fatal("expected refresh throttle enabled")
	}

	cfg = withTestKeys(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected keyed production preset to validate, got %v", err)
	}
}

func TestProductionModeRejectsLooseTTLs(t *testing.T) {
	cfg := withTestKeys(authcore.ProductionConfig())
	cfg.Tokens.AccessTTL = time.Hour
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected production mode to reject a 1h access TTL")
	}

	cfg = withTestKeys(authcore.ProductionConfig())
	cfg.Security.EnableRefreshThrottle = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected production mode to require the refresh throttle")
	}
}
