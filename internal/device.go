package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBindingValue hashes a caller-observed device value so raw client
// identifiers never land in storage.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// FingerprintHex is the storage form of a device fingerprint.
func FingerprintHex(v string) string {
	sum := HashBindingValue(v)
	return hex.EncodeToString(sum[:])
}
