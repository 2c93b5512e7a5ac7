// Package stores provides the Redis-backed access-token blacklist.
//
// # Design
//
// Every blacklisted jti gets a value key whose TTL equals the token's
// remaining lifetime, so entries deny exactly as long as the token could
// still be presented and then vanish on their own. A companion sorted set
// scored by expiry lets the sweep job count what it trims, which plain TTL
// expiry cannot.
//
// # Architecture boundaries
//
// This package owns key layout and persistence only. Deciding WHEN a token
// is blacklisted (single-token revoke, global revoke, strict validation)
// belongs to the flow functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import the root package or any sibling internal package.
//   - See raw tokens; callers pass only the jti.
package stores
