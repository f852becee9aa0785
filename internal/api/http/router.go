package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-authority/internal/api/http/handlers"
	"github.com/spec-kit/token-authority/internal/auth"
	"github.com/spec-kit/token-authority/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
	LoginLimiter   *RateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	if cfg.LoginLimiter != nil {
		authGroup.Post("/login", cfg.LoginLimiter.Handler(), cfg.Auth.Login)
	} else {
		authGroup.Post("/login", cfg.Auth.Login)
	}

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Get("/verify", cfg.Auth.Verify)
	protected.Get("/authorize", cfg.Auth.Authorize)
	protected.Get("/me", cfg.Auth.Me)
	protected.Post("/password/change", cfg.Auth.ChangePassword)
	protected.Post("/logout", cfg.Auth.Logout)

	app.Get("/metrics", cfg.AuthMiddleware.Handle, auth.RequireRoles(domain.RoleAdmin), cfg.Metrics.Snapshot)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Get("/users", auth.RequireRoles(domain.RoleAdmin, domain.RoleEditor), cfg.Users.List)
	admin.Post("/users", auth.RequireRoles(domain.RoleAdmin), cfg.Users.Create)
}
