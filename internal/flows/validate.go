package flows

import (
	"context"
	"errors"
	"time"

	"github.com/insano70/bcos-sub014/jwt"
	"github.com/insano70/bcos-sub014/store"
)

// ModeResolverConfig lets the root package resolve validation modes through
// this package without importing its enum back.
type ModeResolverConfig struct {
	ModeInherit int
	ModeFast    int
	ModeStrict  int
}

// ResolveMode resolves a per-call mode against the engine default. Inherit
// adopts the engine mode; anything unrecognized reports false.
func ResolveMode(callMode, engineMode int, cfg ModeResolverConfig) (int, bool) {
	switch callMode {
	case cfg.ModeInherit:
		switch engineMode {
		case cfg.ModeFast, cfg.ModeStrict:
			return engineMode, true
		default:
			return 0, false
		}
	case cfg.ModeFast:
		return cfg.ModeFast, true
	case cfg.ModeStrict:
		return cfg.ModeStrict, true
	default:
		return 0, false
	}
}

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureUnauthorized
	ValidateFailureInvalidMode
	ValidateFailureBlacklisted
	ValidateFailureUnavailable
)

// ValidateResult carries verified claims or failure metadata. Claims are
// also set on a blacklisted rejection so the caller can attribute it; only a
// None failure marks them accepted.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
}

// ValidateDeps captures access validation dependencies. ResolveMode is bound
// over the engine default; BlacklistContains is only consulted in strict
// mode.
type ValidateDeps struct {
	ParseAccess       func(string) (*jwt.AccessClaims, error)
	ResolveMode       func(callMode int) (int, bool)
	ModeStrict        int
	BlacklistContains func(ctx context.Context, jti string) (bool, error)
}

// RunValidate verifies an access token. Fast mode is pure signature and
// claim checking; strict mode additionally rejects blacklisted jtis and
// fails closed when the blacklist backend is unreachable.
func RunValidate(ctx context.Context, accessToken string, callMode int, deps ValidateDeps) ValidateResult {
	claims, err := deps.ParseAccess(accessToken)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureUnauthorized, Err: err}
	}

	mode, ok := deps.ResolveMode(callMode)
	if !ok {
		return ValidateResult{Failure: ValidateFailureInvalidMode}
	}
	if mode != deps.ModeStrict {
		return ValidateResult{Claims: claims}
	}

	blacklisted, err := deps.BlacklistContains(ctx, claims.ID)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureUnavailable, Err: err}
	}
	if blacklisted {
		return ValidateResult{Failure: ValidateFailureBlacklisted, Claims: claims}
	}
	return ValidateResult{Claims: claims}
}

type FreshAuthSecurityStore interface {
	Get(ctx context.Context, userID string) (*store.SecurityRecord, error)
}

// FreshAuthDeps captures freshness checking dependencies.
type FreshAuthDeps struct {
	Now            func() time.Time
	DefaultMinutes int
	SecurityStore  FreshAuthSecurityStore
}

// RunRequireFreshAuth reports whether a token issued at issuedAt is recent
// enough for sensitive operations. Per-account windows override the default;
// a missing record or a zero-valued window falls back to it.
func RunRequireFreshAuth(ctx context.Context, userID string, issuedAt time.Time, deps FreshAuthDeps) (bool, error) {
	minutes := deps.DefaultMinutes
	rec, err := deps.SecurityStore.Get(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return false, err
	case rec.RequireFreshAuthMinutes > 0:
		minutes = rec.RequireFreshAuthMinutes
	}

	if issuedAt.IsZero() {
		return false, nil
	}
	return deps.Now().Sub(issuedAt) <= time.Duration(minutes)*time.Minute, nil
}
