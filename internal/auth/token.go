// Package auth issues and checks the compact HS256 tokens that notification hub
// subscribers present when they connect.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultAudience is the audience claim hub tokens carry.
const DefaultAudience = "parkrep-hub"

var (
	// ErrInvalidToken indicates a malformed token or a bad signature.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken signals that the token's expiry is in the past.
	ErrExpiredToken = errors.New("auth: token expired")
	// ErrAudience reports a token minted for another service.
	ErrAudience = errors.New("auth: token audience mismatch")
)

// Claims are the verified contents of a token.
type Claims struct {
	Subject   string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

type payload struct {
	Subject  string `json:"sub"`
	Audience string `json:"aud,omitempty"`
	Issued   int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

// Signer mints and verifies tokens with one shared secret.
type Signer struct {
	secret   []byte
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithAudience replaces DefaultAudience. An empty audience disables the check.
func WithAudience(audience string) Option {
	return func(s *Signer) { s.audience = strings.TrimSpace(audience) }
}

// WithLeeway tolerates clock skew between the minting and verifying hosts.
func WithLeeway(d time.Duration) Option {
	return func(s *Signer) {
		if d > 0 {
			s.leeway = d
		}
	}
}

// WithClock overrides the signer clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Signer) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewSigner constructs a signer for the supplied shared secret.
func NewSigner(secret string, opts ...Option) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: hmac secret must not be empty")
	}
	s := &Signer{secret: []byte(secret), audience: DefaultAudience, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue mints a token for subject that expires after ttl.
func (s *Signer) Issue(subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("auth: subject must not be empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("auth: ttl must be positive, got %s", ttl)
	}
	now := s.now()
	head, err := json.Marshal(header{Algorithm: "HS256", Type: "JWT"})
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(payload{
		Subject:  subject,
		Audience: s.audience,
		Issued:   now.Unix(),
		Expires:  now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	signed := encodeSegment(head) + "." + encodeSegment(body)
	return signed + "." + encodeSegment(s.sign(signed)), nil
}

// Verify checks the signature, expiry and audience of token and returns its claims.
func (s *Signer) Verify(token string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	var head header
	if err := decodeSegment(parts[0], &head); err != nil {
		return Claims{}, err
	}
	if head.Algorithm != "HS256" {
		return Claims{}, fmt.Errorf("%w: unexpected algorithm %q", ErrInvalidToken, head.Algorithm)
	}
	//1.- The signature is checked before any claim is trusted.
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || !hmac.Equal(signature, s.sign(parts[0]+"."+parts[1])) {
		return Claims{}, ErrInvalidToken
	}

	var body payload
	if err := decodeSegment(parts[1], &body); err != nil {
		return Claims{}, err
	}
	if strings.TrimSpace(body.Subject) == "" || body.Expires <= 0 {
		return Claims{}, ErrInvalidToken
	}
	now := s.now()
	claims := Claims{
		Subject:   body.Subject,
		Audience:  body.Audience,
		IssuedAt:  time.Unix(body.Issued, 0),
		ExpiresAt: time.Unix(body.Expires, 0),
	}
	if claims.ExpiresAt.Add(s.leeway).Before(now) {
		return Claims{}, ErrExpiredToken
	}
	if claims.IssuedAt.After(now.Add(s.leeway)) {
		return Claims{}, fmt.Errorf("%w: issued in the future", ErrInvalidToken)
	}
	if s.audience != "" && body.Audience != s.audience {
		return Claims{}, fmt.Errorf("%w: got %q", ErrAudience, body.Audience)
	}
	return claims, nil
}

func (s *Signer) sign(signed string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signed))
	return mac.Sum(nil)
}

func encodeSegment(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeSegment(segment string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidToken
	}
	return nil
}
