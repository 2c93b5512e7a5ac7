package authcore

import "time"

// SecurityReport summarizes the engine's effective security posture for
// operational review. Every field derives from live configuration and wiring
// state, never from stored data.
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	ValidationMode        ValidationMode
	StrictMode            bool
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	RememberMeTTL         time.Duration
	MaxConcurrentSessions int
	FreshAuthWindow       time.Duration
	Lockout               LockoutReport
	CSRFAnonWindow        time.Duration
	CSRFAuthMaxAge        time.Duration
	MFASkipAllowance      int
	RefreshThrottleActive bool
	AuditActive           bool
	MetricsActive         bool
}

// LockoutReport mirrors the progressive lock table in effect.
type LockoutReport struct {
	FirstLock  time.Duration
	SecondLock time.Duration
	MaxLock    time.Duration
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	throttle := e.config.Security.EnableRefreshThrottle &&
		e.config.Security.MaxRefreshAttempts > 0 &&
		e.config.Security.RefreshCooldown > 0

	return SecurityReport{
		ProductionMode:        e.config.Security.ProductionMode,
		SigningAlgorithm:      e.config.Tokens.SigningMethod,
		ValidationMode:        e.config.Security.ValidationMode,
		StrictMode:            e.config.Security.ValidationMode == ModeStrict,
		AccessTTL:             e.config.Tokens.AccessTTL,
		RefreshTTL:            e.config.Tokens.RefreshTTL,
		RememberMeTTL:         e.config.Tokens.RememberMeTTL,
		MaxConcurrentSessions: e.config.Sessions.MaxConcurrentSessions,
		FreshAuthWindow:       time.Duration(e.config.Sessions.RequireFreshAuthMinutes) * time.Minute,
		Lockout: LockoutReport{
			FirstLock:  e.config.Lockout.FirstLock,
			SecondLock: e.config.Lockout.SecondLock,
			MaxLock:    e.config.Lockout.MaxLock,
		},
		CSRFAnonWindow:        e.config.CSRF.AnonWindow,
		CSRFAuthMaxAge:        e.config.CSRF.AuthMaxAge,
		MFASkipAllowance:      e.config.MFA.SkipAllowance,
		RefreshThrottleActive: throttle,
		AuditActive:           e.audit != nil,
		MetricsActive:         e.metrics.Enabled(),
	}
}
