// Package rate provides Redis-backed fixed-window counters shared by the
// refresh throttle and the security-event monitor.
//
// # Window semantics
//
// Keys carry the window index explicitly:
//
//	<prefix>:rl:<scope>:<identifier>:<floor(nowMillis/windowMillis)>
//
// INCR plus a conditional EXPIRE on the first hit; the TTL spans two windows
// so counts stay readable briefly after rollover and keys self-clean.
//
// # What this package must NOT do
//
//   - Decide budgets or thresholds (callers compare counts themselves).
//   - Be imported outside this module.
package rate
