// Package password implements password hashing and verification with
// argon2id.
//
// The engine never sees a credential; this package exists for the caller
// side of that contract, the application code that checks a password before
// asking the engine for a token pair.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.Verify] reads the parameters back out of the stored string, so
// costs can be raised without invalidating existing hashes.
// [Argon2.NeedsUpgrade] reports stored hashes weaker than the current
// configuration; re-hash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive
//     hashes.
//   - Import any other package of this module.
//   - Log plaintext passwords or hash parameters at runtime.
package password
