package auth

import (
	"errors"
	"net/http"

	apperrors "github.com/spec-kit/token-authority/pkg/util"
)

// Failure kinds produced while issuing, verifying and gating tokens.
var (
	ErrMissingToken     = errors.New("missing or malformed authorization header")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpiredToken     = errors.New("token expired")
	ErrRevokedToken     = errors.New("token revoked")
	ErrForbidden        = errors.New("role not permitted")
	ErrValidation       = errors.New("invalid token claims")
)

// ToDomainError maps auth failures onto the HTTP error envelope. Anything that
// is not an auth failure becomes an internal error.
func ToDomainError(err error) error {
	if err == nil {
		return nil
	}
	var (
		code   string
		status = http.StatusUnauthorized
	)
	switch {
	case errors.Is(err, ErrMissingToken):
		code = "MISSING_TOKEN"
	case errors.Is(err, ErrMalformedToken):
		code = "MALFORMED_TOKEN"
	case errors.Is(err, ErrInvalidSignature):
		code = "INVALID_SIGNATURE"
	case errors.Is(err, ErrExpiredToken):
		code = "TOKEN_EXPIRED"
	case errors.Is(err, ErrRevokedToken):
		code = "TOKEN_REVOKED"
	case errors.Is(err, ErrForbidden):
		code, status = "FORBIDDEN", http.StatusForbidden
	case errors.Is(err, ErrValidation):
		code, status = "VALIDATION_FAILED", http.StatusBadRequest
	default:
		return apperrors.MapError(err)
	}
	return apperrors.Wrap(err, code, err.Error(), status)
}
