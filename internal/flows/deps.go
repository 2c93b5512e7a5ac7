package flows

// Deps groups flow dependency sets. The root engine builds this once at
// construction and delegates request methods to the matching flow.
type Deps struct {
	Issue     IssueDeps
	Refresh   RefreshDeps
	Revoke    RevokeDeps
	Validate  ValidateDeps
	FreshAuth FreshAuthDeps
	Lockout   LockoutDeps
	Sessions  SessionsDeps
	MFA       MFADeps
	Sweep     SweepDeps
	Health    HealthDeps
}
