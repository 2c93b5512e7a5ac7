// Package secmon aggregates credential rejections into per-IP abuse signals.
//
// Every rejection (bad CSRF token, wrong-flow token, replayed refresh token)
// increments a fixed-window counter keyed by (kind, source IP) and emits one
// audit event. Crossing the configured threshold inside a window emits a
// single critical escalation event for that window.
//
// # What this package must NOT do
//
//   - Block or fail the operation that produced the rejection. Counter
//     backend errors degrade to a log line and a zero count.
//   - Decide what counts as a rejection; callers classify.
package secmon
