package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/events"
	apperrors "github.com/spec-kit/token-authority/pkg/util"
)

func newProtectedApp(t *testing.T, gate *Gate, dispatcher events.Dispatcher) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"code": domainErr.Code})
		},
	})

	mw := NewAuthMiddleware(gate, dispatcher)
	app.Get("/me", mw.Handle, RequireAnyRole(), func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return errors.New("claims missing")
		}
		return c.SendString(claims.Subject())
	})
	app.Get("/admin", mw.Handle, RequireRoles(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	app.Get("/unguarded", RequireRoles(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func doGet(t *testing.T, app *fiber.App, path, authorization string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	a := newTestAuthority(t, testSecret)
	dispatcher := events.NewInMemoryDispatcher(nil)
	var rejected []events.TokenRejectedPayload
	dispatcher.Subscribe(events.EventTokenRejected, func(_ context.Context, e events.Event) error {
		rejected = append(rejected, e.Payload.(events.TokenRejectedPayload))
		return nil
	})
	app := newProtectedApp(t, NewGate(a, nil), dispatcher)

	editor, err := a.Issue(Claims{"sub": "u1", "role": "editor"})
	require.NoError(t, err)
	admin, err := a.Issue(Claims{"sub": "u2", "role": "admin"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "/me", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "/me", "Bearer abc").StatusCode)
	assert.Equal(t, http.StatusOK, doGet(t, app, "/me", "Bearer "+editor).StatusCode)

	assert.Equal(t, http.StatusForbidden, doGet(t, app, "/admin", "Bearer "+editor).StatusCode)
	assert.Equal(t, http.StatusNoContent, doGet(t, app, "/admin", "Bearer "+admin).StatusCode)

	assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "/unguarded", "Bearer "+admin).StatusCode)

	require.Len(t, rejected, 2)
	assert.Equal(t, "MISSING_TOKEN", rejected[0].Code)
	assert.Equal(t, "MALFORMED_TOKEN", rejected[1].Code)
	assert.Equal(t, "/me", rejected[1].Path)
}
