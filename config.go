package authcore

import (
	"errors"
	"time"
)

// Config groups every engine setting. Zero value is not usable; start from
// DefaultConfig or ProductionConfig and override.
type Config struct {
	Tokens   TokenConfig
	Lockout  LockoutConfig
	Sessions SessionConfig
	CSRF     CSRFConfig
	MFA      MFAConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the access/refresh pair lifecycle and signing.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration
	SigningMethod string // "hs256" (default), "ed25519" optional
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string // required for live key rotation
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// SweepGrace keeps expired refresh rows readable past expiry so a late
	// rejection can still be attributed before the sweep deletes them.
	SweepGrace time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig holds the progressive lock tier table. The third failed
// attempt arms FirstLock, the fourth SecondLock, the fifth and every later
// one MaxLock re-armed from the moment of the attempt.
type LockoutConfig struct {
	FirstLock  time.Duration
	SecondLock time.Duration
	MaxLock    time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig seeds per-account security records. Accounts can carry their
// own values; these are the defaults written when a record is first created.
type SessionConfig struct {
	MaxConcurrentSessions   int
	RequireFreshAuthMinutes int
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig keys and tunes the stateless CSRF envelopes. The anonymous
// window accepts its immediate predecessor only outside production mode.
type CSRFConfig struct {
	Secret     []byte
	AnonWindow time.Duration
	AuthMaxAge time.Duration
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig bounds graceful MFA onboarding.
type MFAConfig struct {
	// SkipAllowance is how many times a user may defer MFA setup before
	// enforcement. Zero enforces immediately.
	SkipAllowance int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds engine-wide posture switches.
type SecurityConfig struct {
	ProductionMode bool
	// ValidationMode is the engine default adopted by Validate calls that
	// pass ModeInherit.
	ValidationMode        ValidationMode
	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
	// MonitorWindow and MonitorThreshold tune abuse-pattern detection:
	// MonitorThreshold rejections from one IP within one window escalate a
	// critical audit event. Zero threshold disables escalation.
	MonitorWindow    time.Duration
	MonitorThreshold int64
	// KeyPrefix namespaces every key the engine writes to the cache store.
	KeyPrefix string
}

// AuditConfig controls the audit dispatch pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the atomic counter set.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode selects how much an access token check costs.
type ValidationMode int

const (
	// ModeInherit resolves to the engine's configured default.
	ModeInherit ValidationMode = -1

	// ModeFast verifies signature and claims only; zero store round-trips.
	ModeFast ValidationMode = iota
	// ModeStrict additionally consults the jti blacklist, for sensitive
	// surfaces that accept the extra round-trip.
	ModeStrict
)

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns development-friendly settings. Signing and CSRF keys
// must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			RememberMeTTL: 30 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
			SweepGrace:    24 * time.Hour,
		},
		Lockout: LockoutConfig{
			FirstLock:  1 * time.Minute,
			SecondLock: 5 * time.Minute,
			MaxLock:    15 * time.Minute,
		},
		Sessions: SessionConfig{
			MaxConcurrentSessions:   3,
			RequireFreshAuthMinutes: 5,
		},
		CSRF: CSRFConfig{
			AnonWindow: 1 * time.Hour,
			AuthMaxAge: 24 * time.Hour,
		},
		MFA: MFAConfig{
			SkipAllowance: 5,
		},
		Security: SecurityConfig{
			ProductionMode:        false,
			ValidationMode:        ModeFast,
			EnableRefreshThrottle: true,
			MaxRefreshAttempts:    20,
			RefreshCooldown:       1 * time.Minute,
			MonitorWindow:         10 * time.Minute,
			MonitorThreshold:      10,
			KeyPrefix:             "ac",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// ProductionConfig hardens DefaultConfig: production mode on (single-window
// CSRF acceptance), a shorter anonymous window, metrics on, and an audit
// buffer that blocks instead of dropping.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.Security.ProductionMode = true
	cfg.CSRF.AnonWindow = 30 * time.Minute
	cfg.Metrics.Enabled = true
	cfg.Audit.BufferSize = 4096
	cfg.Audit.DropIfFull = false
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.PrivateKey = cloneBytes(cfg.Tokens.PrivateKey)
	out.Tokens.PublicKey = cloneBytes(cfg.Tokens.PublicKey)
	out.CSRF.Secret = cloneBytes(cfg.CSRF.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section and returns the first violation.
func (c *Config) Validate() error {
	// Tokens
	if c.Tokens.AccessTTL <= 0 {
		return errors.New("Tokens AccessTTL must be > 0")
	}
	if c.Tokens.RefreshTTL <= 0 {
		return errors.New("Tokens RefreshTTL must be > 0")
	}
	if c.Tokens.RememberMeTTL < c.Tokens.RefreshTTL {
		return errors.New("Tokens RememberMeTTL must be >= RefreshTTL")
	}
	if c.Tokens.SigningMethod != "hs256" && c.Tokens.SigningMethod != "ed25519" {
		return errors.New("unsupported Tokens SigningMethod")
	}
	if len(c.Tokens.PrivateKey) == 0 {
		return errors.New("Tokens PrivateKey is required")
	}
	if c.Tokens.SigningMethod == "hs256" && len(c.Tokens.PrivateKey) < 32 {
		return errors.New("hs256 requires PrivateKey length >= 32 bytes")
	}
	if c.Tokens.SigningMethod == "ed25519" && len(c.Tokens.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.Tokens.Leeway < 0 {
		return errors.New("Tokens Leeway must be >= 0")
	}
	if c.Tokens.Leeway > 2*time.Minute {
		return errors.New("Tokens Leeway must be <= 2m")
	}
	if c.Tokens.SweepGrace < 0 {
		return errors.New("Tokens SweepGrace must be >= 0")
	}

	// Lockout
	if c.Lockout.FirstLock <= 0 {
		return errors.New("Lockout FirstLock must be > 0")
	}
	if c.Lockout.SecondLock < c.Lockout.FirstLock {
		return errors.New("Lockout SecondLock must be >= FirstLock")
	}
	if c.Lockout.MaxLock < c.Lockout.SecondLock {
		return errors.New("Lockout MaxLock must be >= SecondLock")
	}

	// Sessions
	if c.Sessions.MaxConcurrentSessions <= 0 {
		return errors.New("Sessions MaxConcurrentSessions must be > 0")
	}
	if c.Sessions.RequireFreshAuthMinutes <= 0 {
		return errors.New("Sessions RequireFreshAuthMinutes must be > 0")
	}

	// CSRF
	if len(c.CSRF.Secret) < 32 {
		return errors.New("CSRF Secret must be >= 32 bytes")
	}
	if c.CSRF.AnonWindow <= 0 {
		return errors.New("CSRF AnonWindow must be > 0")
	}
	if c.CSRF.AuthMaxAge <= 0 {
		return errors.New("CSRF AuthMaxAge must be > 0")
	}

	// MFA
	if c.MFA.SkipAllowance < 0 {
		return errors.New("MFA SkipAllowance must be >= 0")
	}

	// Security
	switch c.Security.ValidationMode {
	case ModeFast, ModeStrict:
		// valid
	default:
		return errors.New("Security ValidationMode must be ModeFast or ModeStrict")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0 when refresh throttle is enabled")
		}
		if c.Security.RefreshCooldown <= 0 {
			return errors.New("Security RefreshCooldown must be > 0 when refresh throttle is enabled")
		}
	}
	if c.Security.MonitorThreshold < 0 {
		return errors.New("Security MonitorThreshold must be >= 0")
	}
	if c.Security.MonitorThreshold > 0 && c.Security.MonitorWindow <= 0 {
		return errors.New("Security MonitorWindow must be > 0 when MonitorThreshold is set")
	}
	if c.Security.KeyPrefix == "" {
		return errors.New("Security KeyPrefix is required")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.Tokens.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires Tokens AccessTTL <= 15m")
		}
		if c.Tokens.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires Tokens RefreshTTL <= 30d")
		}
		if c.Tokens.RememberMeTTL > 90*24*time.Hour {
			return errors.New("ProductionMode requires Tokens RememberMeTTL <= 90d")
		}
		if c.Tokens.Leeway > time.Minute {
			return errors.New("ProductionMode requires Tokens Leeway <= 1m")
		}
		if c.CSRF.AnonWindow > 30*time.Minute {
			return errors.New("ProductionMode requires CSRF AnonWindow <= 30m")
		}
		if c.MFA.SkipAllowance > 5 {
			return errors.New("ProductionMode requires MFA SkipAllowance <= 5")
		}
		if !c.Security.EnableRefreshThrottle {
			return errors.New("ProductionMode requires the refresh throttle")
		}
		if c.Audit.Enabled && c.Audit.DropIfFull {
			return errors.New("ProductionMode requires Audit DropIfFull off")
		}
	}

	return nil
}
