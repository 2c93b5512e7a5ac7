package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	algorithmID           = "argon2id"
)

// DefaultMaxPasswordBytes bounds hashing input when the config leaves
// MaxPasswordBytes zero.
const DefaultMaxPasswordBytes = 1024

// Config holds argon2id cost parameters. Memory is in KB.
// MaxPasswordBytes caps hash and verify input; zero means
// DefaultMaxPasswordBytes.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultConfig returns production-grade costs: 64 MB memory, three passes,
// two lanes.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Argon2 hashes and verifies passwords in PHC string format. Configure once
// and share; all methods are safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates the cost parameters and returns a ready hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Hash derives an argon2id digest of password under a fresh random salt and
// returns it PHC-encoded: $argon2id$v=...$m=...,t=...,p=...$salt$hash.
func (a *Argon2) Hash(password string) (string, error) {
	// Raw string bytes exactly as provided; no Unicode normalization.
	if len(password) < minPassBytes {
		return "", errors.New("password must be at least 10 bytes")
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", errors.New("password exceeds maximum length")
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt,
		a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest under the parameters stored in encodedHash
// and compares in constant time. A malformed hash is an error, not a
// mismatch.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	// Reject oversized input before paying for the key derivation.
	if len(password) > a.config.MaxPasswordBytes {
		return false, errors.New("password exceeds maximum length")
	}

	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := stored.derive(password)

	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced under weaker costs
// than the current configuration, so callers can rehash on next login.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	weaker := a.config.Memory > stored.memory ||
		a.config.Time > stored.passes ||
		a.config.Parallelism > stored.lanes ||
		a.config.KeyLength != uint32(len(stored.key))

	return weaker, nil
}

// hashParams is one stored hash decoded back into its cost parameters,
// salt, and derived key.
type hashParams struct {
	memory uint32
	passes uint32
	lanes  uint8
	salt   []byte
	key    []byte
}

// derive recomputes the key for password under the stored parameters. The
// output length follows the stored key so comparison stays well defined.
func (p hashParams) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt,
		p.passes, p.memory, p.lanes, uint32(len(p.key)))
}

// decodePHC parses "$argon2id$v=19$m=..,t=..,p=..$salt$hash". Anything that
// deviates from that exact shape is rejected; stored hashes are trusted
// input only after this succeeds.
func decodePHC(encodedHash string) (hashParams, error) {
	var p hashParams

	seg := strings.Split(encodedHash, "$")
	if len(seg) != 6 || seg[0] != "" {
		return p, errors.New("password hash is not in PHC form")
	}
	if seg[1] != algorithmID {
		return p, fmt.Errorf("password hash algorithm %q is not %s", seg[1], algorithmID)
	}
	if seg[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, errors.New("password hash carries an unsupported argon2 version")
	}

	n, err := fmt.Sscanf(seg[3], "m=%d,t=%d,p=%d", &p.memory, &p.passes, &p.lanes)
	if n != 3 || err != nil {
		return p, errors.New("password hash cost parameters are malformed")
	}
	// Require the canonical rendering so trailing or reordered parameters
	// cannot sneak past Sscanf.
	if fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.passes, p.lanes) != seg[3] {
		return p, errors.New("password hash cost parameters are malformed")
	}
	if p.memory < minMemoryKB || p.passes < minTimeCost || p.lanes < minParallelism {
		return p, errors.New("password hash cost parameters are below the accepted floor")
	}

	if p.salt, err = base64.StdEncoding.DecodeString(seg[4]); err != nil {
		return p, fmt.Errorf("password hash salt: %w", err)
	}
	if len(p.salt) < int(minSaltLength) {
		return p, errors.New("password hash salt is too short")
	}

	if p.key, err = base64.StdEncoding.DecodeString(seg[5]); err != nil {
		return p, fmt.Errorf("password hash key: %w", err)
	}
	if len(p.key) == 0 {
		return p, errors.New("password hash key is empty")
	}

	return p, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return fmt.Errorf("argon2 memory %d KB is below the %d KB floor", cfg.Memory, minMemoryKB)
	}
	if cfg.Time < minTimeCost {
		return fmt.Errorf("argon2 time cost %d is below %d", cfg.Time, minTimeCost)
	}
	if cfg.Parallelism < minParallelism {
		return fmt.Errorf("argon2 parallelism %d is below %d", cfg.Parallelism, minParallelism)
	}
	if cfg.SaltLength < minSaltLength {
		return fmt.Errorf("argon2 salt length %d is below %d", cfg.SaltLength, minSaltLength)
	}
	if cfg.KeyLength < minKeyLength {
		return fmt.Errorf("argon2 key length %d is below %d", cfg.KeyLength, minKeyLength)
	}
	if cfg.MaxPasswordBytes < minPassBytes {
		return fmt.Errorf("argon2 password cap %d is below %d bytes", cfg.MaxPasswordBytes, minPassBytes)
	}

	return nil
}
