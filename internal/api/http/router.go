package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civic-kit/report-service/internal/api/http/handlers"
	"github.com/civic-kit/report-service/internal/auth"
	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Reports        *handlers.ReportsHandler
	Staff          *handlers.StaffReportsHandler
	Admin          *handlers.AdminHandler
	Public         *handlers.PublicStatsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if registry := cfg.Metrics.Registry(); registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	public := app.Group("/public")
	public.Get("/tenants/:tenant/summary", cfg.Public.Summary)
	public.Get("/tenants/:tenant/heatmap", cfg.Public.Heatmap)
	public.Get("/comparison", cfg.Public.Comparison)
	public.Get("/sensitive-total", cfg.Public.SensitiveTotal)

	// Lookups by tracking number accept anonymous callers so that an unauthenticated
	// probe gets the same not-found as everyone else the policy denies.
	reports := app.Group("/reports")
	reports.Post("/", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleCitizen), cfg.Reports.Submit)
	reports.Get("/mine", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Reports.ListMine)
	reports.Get("/:tracking", cfg.AuthMiddleware.Optional, cfg.Reports.Get)
	reports.Get("/:tracking/history", cfg.AuthMiddleware.Optional, cfg.Reports.History)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Get("/reports", cfg.Staff.List)
	staff.Patch("/reports/:tracking/status", cfg.Staff.UpdateStatus)
	staff.Post("/reports/:tracking/assign", cfg.Staff.Assign)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Post("/accounts", cfg.Admin.CreateStaff)
}
