package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-authority/internal/api/dto"
	"github.com/spec-kit/token-authority/internal/auth"
	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/service"
	apperrors "github.com/spec-kit/token-authority/pkg/util"
)

// AuthHandler exposes login and token inspection endpoints.
type AuthHandler struct {
	auth *service.AuthService
	now  func() time.Time
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService, now: time.Now}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, issued, err := h.auth.Login(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(*user),
			"auth": dto.NewAuthResponse(issued.Token, issued.ExpiresAt, h.now()),
		},
	})
}

// Verify handles GET /auth/verify and echoes the verified claims.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	claims, err := claimsOf(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"valid":  true,
			"claims": claims,
		},
	})
}

// Authorize handles GET /auth/authorize?roles=a,b.
func (h *AuthHandler) Authorize(c *fiber.Ctx) error {
	claims, err := claimsOf(c)
	if err != nil {
		return err
	}

	var allowed []domain.Role
	for _, raw := range strings.Split(c.Query("roles"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		role, err := domain.ParseRole(raw)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), map[string]any{"roles": c.Query("roles")})
		}
		allowed = append(allowed, role)
	}
	if len(allowed) == 0 {
		return apperrors.NewValidationError("roles query parameter required", nil)
	}

	if err := auth.Authorize(claims, allowed...); err != nil {
		return auth.ToDomainError(err)
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"allowed": true,
			"subject": claims.Subject(),
			"role":    claims.Role(),
		},
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims, err := claimsOf(c)
	if err != nil {
		return err
	}
	exp, _ := claims.ExpiresAt()
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"subject":    claims.Subject(),
			"role":       claims.Role(),
			"email":      claims["email"],
			"expires_at": exp.UTC(),
		},
	})
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	claims, err := claimsOf(c)
	if err != nil {
		return err
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("current_password and new_password required", nil)
	}

	issued, err := h.auth.ChangePassword(c.UserContext(), claims, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"auth": dto.NewAuthResponse(issued.Token, issued.ExpiresAt, h.now()),
		},
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, err := claimsOf(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), claims); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"revoked": h.auth.RevocationEnabled() && claims.TokenID() != "",
		},
	})
}

func claimsOf(c *fiber.Ctx) (auth.Claims, error) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return nil, auth.ToDomainError(auth.ErrMissingToken)
	}
	return claims, nil
}

