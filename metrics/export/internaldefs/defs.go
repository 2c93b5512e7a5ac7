package internaldefs

import (
	authcore "github.com/insano70/bcos-sub014"
)

// CounterDef names one engine counter for exporters: the stable wire name
// plus its help text.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is the full exportable counter set. Exporters iterate it so a
// new engine counter only needs an entry here to reach every backend.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricPairIssued, Name: "authcore_pair_issued_total", Help: "Issued token pairs."},
	{ID: authcore.MetricIssueRejectedLocked, Name: "authcore_issue_rejected_locked_total", Help: "Issuance attempts rejected on a locked account."},
	{ID: authcore.MetricValidateOK, Name: "authcore_validate_ok_total", Help: "Successful access token validations."},
	{ID: authcore.MetricValidateFailure, Name: "authcore_validate_failure_total", Help: "Failed access token validations."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authcore.MetricRefreshReuseBlocked, Name: "authcore_refresh_reuse_blocked_total", Help: "Replays of consumed refresh tokens."},
	{ID: authcore.MetricRefreshRateLimited, Name: "authcore_refresh_rate_limited_total", Help: "Throttled refresh attempts."},
	{ID: authcore.MetricTokenRevoked, Name: "authcore_token_revoked_total", Help: "Revoked refresh chains."},
	{ID: authcore.MetricAccessBlacklisted, Name: "authcore_access_blacklisted_total", Help: "Blacklisted access tokens."},
	{ID: authcore.MetricLockoutArmed, Name: "authcore_lockout_armed_total", Help: "Armed account lockouts."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionEvicted, Name: "authcore_session_evicted_total", Help: "Sessions evicted by the concurrency cap."},
	{ID: authcore.MetricSessionEnded, Name: "authcore_session_ended_total", Help: "Ended sessions."},
	{ID: authcore.MetricCSRFIssued, Name: "authcore_csrf_issued_total", Help: "Issued CSRF tokens."},
	{ID: authcore.MetricCSRFRejected, Name: "authcore_csrf_rejected_total", Help: "Rejected CSRF tokens."},
	{ID: authcore.MetricCSRFCrossFlow, Name: "authcore_csrf_cross_flow_total", Help: "CSRF tokens presented to the wrong flow."},
	{ID: authcore.MetricMFASkip, Name: "authcore_mfa_skip_total", Help: "Recorded MFA onboarding skips."},
	{ID: authcore.MetricMFAExhausted, Name: "authcore_mfa_exhausted_total", Help: "MFA skip attempts past the allowance."},
	{ID: authcore.MetricSweepTokensDeleted, Name: "authcore_sweep_tokens_deleted_total", Help: "Refresh rows deleted by the token sweep."},
	{ID: authcore.MetricSweepBlacklistPurged, Name: "authcore_sweep_blacklist_purged_total", Help: "Blacklist index entries purged by the token sweep."},
	{ID: authcore.MetricSweepLockoutsCleared, Name: "authcore_sweep_lockouts_cleared_total", Help: "Expired lockouts cleared by the lockout sweep."},
	{ID: authcore.MetricSecurityEscalation, Name: "authcore_security_escalation_total", Help: "Abuse threshold escalations."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's fixed 8-bucket layout.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds per-bucket name suffixes for backends that
// cannot carry a le label.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
