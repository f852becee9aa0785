package auth

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/spec-kit/token-authority/internal/domain"
)

var bearerPattern = regexp.MustCompile(`(?i)^bearer\s+(\S+)$`)

// RevocationChecker reports whether a token ID has been revoked before expiry.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Gate turns request headers into verified claims.
type Gate struct {
	authority   *Authority
	revocations RevocationChecker
}

// NewGate constructs a gate. revocations may be nil.
func NewGate(authority *Authority, revocations RevocationChecker) *Gate {
	return &Gate{authority: authority, revocations: revocations}
}

// Authenticate extracts the bearer token from headers and verifies it.
func (g *Gate) Authenticate(ctx context.Context, headers http.Header) (Claims, error) {
	raw, err := BearerToken(headers)
	if err != nil {
		return nil, err
	}

	claims, err := g.authority.Verify(raw)
	if err != nil {
		return nil, err
	}

	if g.revocations == nil {
		return claims, nil
	}
	jti := claims.TokenID()
	if jti == "" {
		return claims, nil
	}
	revoked, err := g.revocations.IsRevoked(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// BearerToken finds the Authorization header regardless of key casing and
// returns the token from a "Bearer <token>" value.
func BearerToken(headers http.Header) (string, error) {
	for key, values := range headers {
		if !strings.EqualFold(key, "Authorization") {
			continue
		}
		if len(values) == 0 {
			break
		}
		match := bearerPattern.FindStringSubmatch(strings.TrimSpace(values[0]))
		if match == nil {
			return "", ErrMissingToken
		}
		return match[1], nil
	}
	return "", ErrMissingToken
}

// Authorize checks that the claims carry one of the allowed roles. An empty
// allowed set admits nobody.
func Authorize(claims Claims, allowed ...domain.Role) error {
	role := claims.Role()
	if role == "" {
		return ErrForbidden
	}
	for _, candidate := range allowed {
		if candidate == role {
			return nil
		}
	}
	return ErrForbidden
}
