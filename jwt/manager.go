package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared symmetric secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an asymmetric key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Config carries the signing posture for access tokens. It is read once by
// NewManager; later key changes go through Manager.Rotate. Secret holds the
// hs256 secret, or the ed25519 private key when that method is selected.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	Secret        []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	Now           func() time.Time
}

// Manager signs and verifies access tokens. Verification accepts the active
// key plus every verify ring entry, so tokens signed before a rotation keep
// verifying until they expire.
type Manager struct {
	config Config

	mu      sync.RWMutex
	keyID   string
	signKey []byte
	verify  map[string][]byte
}

// AccessClaims is the verified payload of an access token. Subject carries
// the user id and ID the per-token jti; SID ties the token to its session
// row, and Email rides along for handlers that render identity without a
// directory call.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	SID   string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager validates the signing configuration and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("hs256 requires a secret")
		}
	case MethodEd25519:
		if len(cfg.Secret) > 0 {
			if _, err := parseEdPrivateKey(cfg.Secret); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if cfg.SigningMethod == MethodEd25519 {
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		} else if len(key) == 0 {
			return nil, fmt.Errorf("empty verify key for kid %q", kid)
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	verify := make(map[string][]byte, len(cfg.VerifyKeys))
	for kid, key := range cfg.VerifyKeys {
		verify[kid] = key
	}
	return &Manager{
		config:  cfg,
		keyID:   cfg.KeyID,
		signKey: cfg.Secret,
		verify:  verify,
	}, nil
}

// Rotate swaps the active hs256 secret. The outgoing secret joins the verify
// ring under its key id, so in-flight tokens stay valid until they expire.
// The active key must already carry a key id: unstamped tokens cannot be
// matched to a ring entry after the swap.
func (j *Manager) Rotate(keyID string, secret []byte) error {
	if j.config.SigningMethod != MethodHS256 {
		return errors.New("rotation is only supported for hs256")
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return errors.New("rotation requires a key id")
	}
	if len(secret) == 0 {
		return errors.New("rotation requires a secret")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.keyID == "" {
		return errors.New("rotation requires the active key to carry a key id")
	}

	// Copy on write: in-flight parses keep reading the map they snapshotted.
	verify := make(map[string][]byte, len(j.verify)+2)
	for kid, key := range j.verify {
		verify[kid] = key
	}
	verify[j.keyID] = j.signKey
	verify[keyID] = secret

	j.keyID = keyID
	j.signKey = secret
	j.verify = verify
	return nil
}

func (j *Manager) keyState() (keyID string, signKey []byte, verify map[string][]byte) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.keyID, j.signKey, j.verify
}

// CreateAccess signs an access token for one user session and returns it
// together with its expiry.
func (j *Manager) CreateAccess(userID, email, sessionID, jti string) (string, time.Time, error) {
	now := j.config.Now()
	expiresAt := now.Add(j.config.AccessTTL)

	claims := AccessClaims{
		Email: email,
		SID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	keyID, signKey, _ := j.keyState()
	token := jwt.NewWithClaims(j.getMethod(), claims)
	if keyID != "" {
		token.Header["kid"] = keyID
	}

	key, err := j.toSignKey(signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccess verifies a token's signature and registered claims and returns
// the typed claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	activeKID, signKey, verify := j.keyState()

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(verify) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := verify[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return j.toVerifyKey(key)
		}

		if activeKID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != activeKID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.activeVerifyKey(signKey)
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := j.config.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) toSignKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPrivateKey(key)
	}
}

func (j *Manager) activeVerifyKey(signKey []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return signKey, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) toVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
