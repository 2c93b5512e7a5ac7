package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/insano70/bcos-sub014/internal"
)

// Flow names which issuance path a token belongs to. The two flows are
// deliberately incompatible: an anonymous token never authorizes an
// authenticated request, and vice versa.
type Flow string

const (
	// FlowAnonymous covers pre-login forms. Tokens bind to the client's
	// address and user agent and roll over with a time window, so they need
	// no server-side state.
	FlowAnonymous Flow = "anonymous"
	// FlowAuthenticated covers post-login forms. Tokens bind to the user id
	// and age out on a fixed budget.
	FlowAuthenticated Flow = "authenticated"
)

// Config carries the double-submit token posture.
type Config struct {
	// Secret keys the HMAC. Both flows share it; the payload type keeps
	// them apart.
	Secret []byte
	// AnonWindow is the anonymous rollover window length.
	AnonWindow time.Duration
	// AllowPrevious additionally accepts the window before the current one,
	// so a form rendered just before rollover still submits. Production
	// deployments keep this off.
	AllowPrevious bool
	// AuthMaxAge bounds authenticated token age.
	AuthMaxAge time.Duration
	// Now supplies time; nil means time.Now.
	Now func() time.Time
}

// Validator issues and checks CSRF tokens for both flows. It holds no
// per-token state: everything needed to verify rides inside the token under
// the HMAC.
type Validator struct {
	config Config
}

const minSecretLen = 32

// NewValidator validates the posture and builds a Validator.
func NewValidator(cfg Config) (*Validator, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("csrf secret must be at least %d bytes", minSecretLen)
	}
	if cfg.AnonWindow <= 0 {
		return nil, errors.New("csrf anonymous window must be positive")
	}
	if cfg.AuthMaxAge <= 0 {
		return nil, errors.New("csrf authenticated max age must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Validator{config: cfg}, nil
}

type anonymousPayload struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	UserAgent  string `json:"userAgent"`
	TimeWindow int64  `json:"timeWindow"`
	Nonce      string `json:"nonce"`
}

type authenticatedPayload struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
}

// IssueAnonymous mints a token bound to the presenting client for the
// current time window.
func (v *Validator) IssueAnonymous(ip, userAgent string) (string, error) {
	nonce, err := internal.NewNonce()
	if err != nil {
		return "", fmt.Errorf("csrf nonce: %w", err)
	}
	payload, err := json.Marshal(anonymousPayload{
		Type:       string(FlowAnonymous),
		IP:         ip,
		UserAgent:  userAgent,
		TimeWindow: v.window(v.config.Now()),
		Nonce:      nonce,
	})
	if err != nil {
		return "", fmt.Errorf("csrf payload: %w", err)
	}
	return v.encode(payload), nil
}

// IssueAuthenticated mints a token bound to a signed-in user.
func (v *Validator) IssueAuthenticated(userID string) (string, error) {
	nonce, err := internal.NewNonce()
	if err != nil {
		return "", fmt.Errorf("csrf nonce: %w", err)
	}
	payload, err := json.Marshal(authenticatedPayload{
		Type:      string(FlowAuthenticated),
		UserID:    userID,
		Timestamp: v.config.Now().UnixMilli(),
		Nonce:     nonce,
	})
	if err != nil {
		return "", fmt.Errorf("csrf payload: %w", err)
	}
	return v.encode(payload), nil
}

// VerifyAnonymous checks a token against the presenting client. The
// signature check runs before anything is read out of the payload, so a
// forged payload never influences the verdict.
func (v *Validator) VerifyAnonymous(token, ip, userAgent string) error {
	payload, err := v.open(token)
	if err != nil {
		return err
	}

	var p anonymousPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ErrTokenMalformed
	}
	if p.Type != string(FlowAnonymous) {
		return ErrWrongFlow
	}
	if p.IP != ip || p.UserAgent != userAgent {
		return ErrBindingMismatch
	}

	current := v.window(v.config.Now())
	if p.TimeWindow == current {
		return nil
	}
	if v.config.AllowPrevious && p.TimeWindow == current-1 {
		return nil
	}
	return ErrExpired
}

// VerifyAuthenticated checks a token against the signed-in user.
func (v *Validator) VerifyAuthenticated(token, userID string) error {
	payload, err := v.open(token)
	if err != nil {
		return err
	}

	var p authenticatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ErrTokenMalformed
	}
	if p.Type != string(FlowAuthenticated) {
		return ErrWrongFlow
	}
	if p.UserID != userID {
		return ErrBindingMismatch
	}

	age := v.config.Now().Sub(time.UnixMilli(p.Timestamp))
	if age < 0 || age > v.config.AuthMaxAge {
		return ErrExpired
	}
	return nil
}

func (v *Validator) window(now time.Time) int64 {
	return now.UnixMilli() / v.config.AnonWindow.Milliseconds()
}

func (v *Validator) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, v.config.Secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

func (v *Validator) encode(payload []byte) string {
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(v.sign(payload))
}

// open splits and decodes a token and verifies its signature, returning the
// raw payload bytes.
func (v *Validator) open(token string) ([]byte, error) {
	dot := strings.IndexByte(token, '.')
	if dot < 0 || strings.IndexByte(token[dot+1:], '.') >= 0 {
		return nil, ErrTokenMalformed
	}
	payload, err := base64.RawURLEncoding.DecodeString(token[:dot])
	if err != nil {
		return nil, ErrTokenMalformed
	}
	sig, err := base64.RawURLEncoding.DecodeString(token[dot+1:])
	if err != nil {
		return nil, ErrTokenMalformed
	}
	if !hmac.Equal(sig, v.sign(payload)) {
		return nil, ErrSignatureMismatch
	}
	return payload, nil
}
