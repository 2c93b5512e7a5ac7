// Package middleware exposes HTTP adapters for access token and CSRF
// enforcement built on top of authcore.Engine validation.
//
// # Guards
//
//   - [Guard]: bearer token validation under an explicit mode.
//   - [RequireFast]: stateless verification, no Redis call.
//   - [RequireStrict]: verification plus blacklist check, failing closed.
//   - [RequireCSRF]: X-CSRF-Token enforcement for state-changing methods.
//
// Each guard reads the relevant request surface, calls into the engine, and
// injects validated claims into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to the
// engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the engine).
//   - Access Redis or the database (the engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the engine.
package middleware
