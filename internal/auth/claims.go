package auth

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/token-authority/internal/domain"
)

// Reserved claim names.
const (
	ClaimSubject  = "sub"
	ClaimRole     = "role"
	ClaimIssuedAt = "iat"
	ClaimExpiry   = "exp"
	ClaimTokenID  = "jti"
)

// Claims is the payload carried inside a token.
type Claims map[string]any

// Subject returns the identity the token was issued to.
func (c Claims) Subject() string {
	sub, _ := c[ClaimSubject].(string)
	return sub
}

// Role returns the role claim, or an empty Role when absent or unknown.
func (c Claims) Role() domain.Role {
	switch v := c[ClaimRole].(type) {
	case domain.Role:
		if v.Valid() {
			return v
		}
	case string:
		if role := domain.Role(v); role.Valid() {
			return role
		}
	}
	return ""
}

// TokenID returns the jti claim if present.
func (c Claims) TokenID() string {
	jti, _ := c[ClaimTokenID].(string)
	return jti
}

// IssuedAt returns the iat claim.
func (c Claims) IssuedAt() (time.Time, bool) {
	return c.numericDate(ClaimIssuedAt)
}

// ExpiresAt returns the exp claim.
func (c Claims) ExpiresAt() (time.Time, bool) {
	return c.numericDate(ClaimExpiry)
}

func (c Claims) numericDate(key string) (time.Time, bool) {
	var (
		date *jwt.NumericDate
		err  error
	)
	mc := jwt.MapClaims(c)
	switch key {
	case ClaimIssuedAt:
		date, err = mc.GetIssuedAt()
	case ClaimExpiry:
		date, err = mc.GetExpirationTime()
	default:
		return time.Time{}, false
	}
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}

func (c Claims) clone() Claims {
	out := make(Claims, len(c)+3)
	for k, v := range c {
		out[k] = v
	}
	return out
}
