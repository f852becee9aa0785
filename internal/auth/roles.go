package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-authority/internal/domain"
)

// RequireRoles ensures the authenticated caller holds one of the allowed roles.
// It must run after AuthMiddleware.Handle.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	roles := append([]domain.Role(nil), allowed...)

	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return ToDomainError(ErrMissingToken)
		}
		if err := Authorize(claims, roles...); err != nil {
			return ToDomainError(err)
		}
		return c.Next()
	}
}

// RequireAnyRole ensures the caller is authenticated with any known role.
func RequireAnyRole() fiber.Handler {
	return RequireRoles(domain.Roles()...)
}
