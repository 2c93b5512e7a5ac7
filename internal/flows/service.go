package flows

import (
	"context"
	"time"

	"github.com/insano70/bcos-sub014/store"
)

// Service is the centralized flow runner built once by the root engine. It
// holds the dependency sets and exposes one method per operation.
type Service struct {
	deps Deps
}

// New builds a Service around the supplied dependency sets.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service was built through New with its
// validation path wired.
func (s Service) Initialized() bool {
	return s.deps.Validate.ParseAccess != nil
}

func (s Service) Issue(ctx context.Context, req IssueRequest) IssueResult {
	return RunIssue(ctx, req, s.deps.Issue)
}

func (s Service) Refresh(ctx context.Context, refreshToken string, device Device) RefreshResult {
	return RunRefresh(ctx, refreshToken, device, s.deps.Refresh)
}

func (s Service) RevokeToken(ctx context.Context, refreshToken, reason string) (bool, error) {
	return RunRevokeToken(ctx, refreshToken, reason, s.deps.Revoke)
}

func (s Service) RevokeAll(ctx context.Context, userID, reason string) RevokeAllResult {
	return RunRevokeAll(ctx, userID, reason, s.deps.Revoke)
}

func (s Service) BlacklistAccess(ctx context.Context, accessToken string) BlacklistAccessResult {
	return RunBlacklistAccess(ctx, accessToken, s.deps.Revoke)
}

func (s Service) EndSession(ctx context.Context, sessionID, reason string) EndSessionResult {
	return RunEndSession(ctx, sessionID, reason, s.deps.Revoke)
}

func (s Service) Validate(ctx context.Context, accessToken string, callMode int) ValidateResult {
	return RunValidate(ctx, accessToken, callMode, s.deps.Validate)
}

func (s Service) RequireFreshAuth(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	return RunRequireFreshAuth(ctx, userID, issuedAt, s.deps.FreshAuth)
}

func (s Service) RecordFailedAttempt(ctx context.Context, email string) (*LockoutStatus, error) {
	return RunRecordFailedAttempt(ctx, email, s.deps.Lockout)
}

func (s Service) IsLocked(ctx context.Context, email string) (*LockoutStatus, error) {
	return RunIsLocked(ctx, email, s.deps.Lockout)
}

func (s Service) ClearFailures(ctx context.Context, email string) error {
	return RunClearFailures(ctx, email, s.deps.Lockout)
}

func (s Service) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	return RunActiveSessionCount(ctx, userID, s.deps.Sessions)
}

func (s Service) ListSessions(ctx context.Context, userID string) ([]*store.Session, error) {
	return RunListSessions(ctx, userID, s.deps.Sessions)
}

func (s Service) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	return RunGetSession(ctx, sessionID, s.deps.Sessions)
}

func (s Service) TouchSession(ctx context.Context, sessionID string) error {
	return RunTouchSession(ctx, sessionID, s.deps.Sessions)
}

func (s Service) RecordSkip(ctx context.Context, userID string) (*MFASkipResult, error) {
	return RunRecordSkip(ctx, userID, s.deps.MFA)
}

func (s Service) IsEnforced(ctx context.Context, userID string) (bool, error) {
	return RunIsEnforced(ctx, userID, s.deps.MFA)
}

func (s Service) TokenSweep(ctx context.Context) TokenSweepResult {
	return RunTokenSweep(ctx, s.deps.Sweep)
}

func (s Service) LockoutSweep(ctx context.Context) LockoutSweepResult {
	return RunLockoutSweep(ctx, s.deps.Sweep)
}

func (s Service) Health(ctx context.Context) HealthResult {
	return RunHealth(ctx, s.deps.Health)
}
