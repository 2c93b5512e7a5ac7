// Package internal contains helper utilities that are intentionally private
// to authcore, including secure random generation, opaque refresh token
// packing, and device fingerprint helpers.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - flows — orchestrators behind every Engine operation
//   - rate — Redis-backed fixed-window counters
//   - secmon — rejection counting and abuse escalation
//   - stores — Redis-backed access token blacklist
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside this module.
package internal
