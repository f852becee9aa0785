package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL applies when the authority is built without a positive TTL.
const DefaultTTL = time.Hour

// Authority issues and verifies HS256 tokens signed with a process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type Authority struct {
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	tokenIDs bool
	parser   *jwt.Parser
}

// Option customizes an Authority.
type Option func(*Authority)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTokenIDs stamps a random jti on every issued token so it can be revoked.
func WithTokenIDs() Option {
	return func(a *Authority) {
		a.tokenIDs = true
	}
}

// NewAuthority builds an authority for the given secret and default TTL.
func NewAuthority(secret string, ttl time.Duration, opts ...Option) (*Authority, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	a := &Authority{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		parser: jwt.NewParser(jwt.WithStrictDecoding(), jwt.WithJSONNumber()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// TTL returns the default lifetime of issued tokens.
func (a *Authority) TTL() time.Duration {
	return a.ttl
}

// Issue signs claims with the default TTL.
func (a *Authority) Issue(claims Claims) (string, error) {
	return a.IssueWithTTL(claims, a.ttl)
}

// IssueWithTTL signs claims so that they expire ttl from now. The caller's map
// is left untouched; iat and exp are always set by the authority.
func (a *Authority) IssueWithTTL(claims Claims, ttl time.Duration) (string, error) {
	if ttl < time.Second {
		return "", fmt.Errorf("%w: ttl must be at least one second", ErrValidation)
	}

	payload := claims.clone()
	if sub, ok := payload[ClaimSubject].(string); !ok || strings.TrimSpace(sub) == "" {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, ClaimSubject)
	}
	role := payload.Role()
	if role == "" {
		return "", fmt.Errorf("%w: %s must be one of admin, editor, viewer", ErrValidation, ClaimRole)
	}
	payload[ClaimRole] = string(role)

	iat := a.now().Unix()
	payload[ClaimIssuedAt] = iat
	payload[ClaimExpiry] = iat + int64(ttl/time.Second)
	if a.tokenIDs {
		payload[ClaimTokenID] = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(payload))
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tokenString and returns its claims.
// The signature is checked against the segments exactly as transmitted, before
// anything inside them is decoded. Numeric claims come back as json.Number.
func (a *Authority) Verify(tokenString string) (Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	sig, err := a.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, a.secret); err != nil {
		return nil, ErrInvalidSignature
	}

	var header map[string]any
	if err := a.decodeJSON(parts[0], &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	if alg, _ := header["alg"].(string); alg != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("%w: unexpected alg %q", ErrMalformedToken, alg)
	}

	var claims Claims
	if err := a.decodeJSON(parts[1], &claims); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedToken)
	}

	exp, ok := claims.ExpiresAt()
	if !ok {
		return nil, fmt.Errorf("%w: %s claim missing", ErrMalformedToken, ClaimExpiry)
	}
	if !exp.After(a.now()) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

func (a *Authority) decodeJSON(segment string, dst any) error {
	raw, err := a.parser.DecodeSegment(segment)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
