// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunIssue, RunRefresh, RunValidate, etc.) accepts a
// typed dependency struct and returns a result without side effects beyond
// those dependencies. That keeps the root engine thin: it maps results to
// public errors, audit events, and metrics, while the sequencing lives here
// and unit tests drive it with hand-built deps.
//
// # Architecture boundaries
//
// Flow functions coordinate calls into the token, session, and security
// stores, the blacklist, the signer, and the rate limiter. They do not own
// any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (import cycle).
//   - Perform I/O except through dependency interfaces.
package flows
