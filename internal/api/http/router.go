package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/sla-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	SLA            *handlers.SLAHandler
	Policies       *handlers.PoliciesHandler
	Sweeps         *handlers.SweepsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics serves the prometheus exposition; nil disables /metrics.
	Metrics http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	slaGroup := app.Group("/sla")
	slaGroup.Post("/deadlines", cfg.SLA.Deadlines)
	slaGroup.Post("/status", cfg.SLA.Status)
	slaGroup.Post("/breaches", cfg.SLA.Breaches)
	slaGroup.Post("/urgency", cfg.SLA.Urgency)

	admin := app.Group("/admin/sla", cfg.AuthMiddleware.Handle, auth.RequireAdmin())

	policies := admin.Group("/policies")
	policies.Get("", cfg.Policies.List)
	policies.Post("", cfg.Policies.Create)
	policies.Post("/seed", cfg.Policies.Seed)
	policies.Get("/:id", cfg.Policies.Get)
	policies.Put("/:id", cfg.Policies.Update)
	policies.Delete("/:id", cfg.Policies.Delete)
	policies.Post("/:id/activate", cfg.Policies.Activate)
	policies.Post("/:id/deactivate", cfg.Policies.Deactivate)

	admin.Post("/sweeps", cfg.Sweeps.Trigger)
	admin.Get("/sweeps/latest", cfg.Sweeps.Latest)
	admin.Post("/reports/daily", cfg.Sweeps.RunDaily)
	admin.Get("/reports/daily/:date", cfg.Sweeps.GetDaily)
}
