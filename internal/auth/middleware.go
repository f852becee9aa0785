package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-authority/internal/events"
	apperrors "github.com/spec-kit/token-authority/pkg/util"
)

const claimsKey = "auth_claims"

// AuthMiddleware validates bearer tokens and stores the verified claims.
type AuthMiddleware struct {
	gate       *Gate
	dispatcher events.Dispatcher
}

// NewAuthMiddleware constructs middleware. dispatcher may be nil.
func NewAuthMiddleware(gate *Gate, dispatcher events.Dispatcher) *AuthMiddleware {
	return &AuthMiddleware{gate: gate, dispatcher: dispatcher}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	claims, err := m.gate.Authenticate(c.UserContext(), c.GetReqHeaders())
	if err != nil {
		mapped := ToDomainError(err)
		m.publishRejected(c, mapped)
		return mapped
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

func (m *AuthMiddleware) publishRejected(c *fiber.Ctx, err error) {
	if m.dispatcher == nil {
		return
	}
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		return
	}
	_ = m.dispatcher.Publish(c.UserContext(), events.Event{
		Type: events.EventTokenRejected,
		Payload: events.TokenRejectedPayload{
			Code:     domainErr.Code,
			Method:   c.Method(),
			Path:     c.Path(),
			RemoteIP: c.IP(),
		},
	})
}

// ClaimsFromContext retrieves the verified claims of the caller.
func ClaimsFromContext(c *fiber.Ctx) (Claims, bool) {
	claims, ok := c.Locals(claimsKey).(Claims)
	return claims, ok
}
