package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/api/http/handlers"
	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Customers      *handlers.CustomersHandler
	Tickets        *handlers.TicketsHandler
	Inventory      *handlers.InventoryHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Deletions and account management require the admin role.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Users.Login)

	api := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	admin := auth.RequireRole(domain.RoleAdmin)

	api.Get("/auth/me", cfg.Users.Me)
	api.Post("/auth/password", cfg.Users.ChangePassword)

	api.Get("/users", admin, cfg.Users.List)
	api.Post("/users", admin, cfg.Users.Create)
	api.Delete("/users/:id", admin, cfg.Users.Delete)

	api.Get("/customers", cfg.Customers.List)
	api.Post("/customers", cfg.Customers.Create)
	api.Post("/customers/sync", admin, cfg.Customers.Sync)
	api.Post("/customers/backfill-codes", admin, cfg.Customers.BackfillCodes)
	api.Get("/customers/code/:code", cfg.Customers.GetByCode)
	api.Get("/customers/:id", cfg.Customers.Get)
	api.Get("/customers/:id/tickets", cfg.Customers.Tickets)
	api.Put("/customers/:id", cfg.Customers.Update)
	api.Delete("/customers/:id", admin, cfg.Customers.Delete)

	api.Get("/tickets", cfg.Tickets.List)
	api.Post("/tickets", cfg.Tickets.Create)
	api.Get("/tickets/statuses", cfg.Tickets.Statuses)
	api.Get("/tickets/:id", cfg.Tickets.Get)
	api.Patch("/tickets/:id", cfg.Tickets.Update)
	api.Delete("/tickets/:id", admin, cfg.Tickets.Delete)
	api.Get("/tickets/:id/history", cfg.Tickets.History)
	api.Get("/tickets/:id/attachments", cfg.Tickets.Attachments)
	api.Post("/tickets/:id/attachments", cfg.Tickets.Upload)
	api.Post("/tickets/:id/suggestions", cfg.Tickets.Suggest)
	api.Get("/attachments/:id/download", cfg.Tickets.Download)

	api.Get("/inventory", cfg.Inventory.List)
	api.Post("/inventory", cfg.Inventory.Create)
	api.Get("/inventory/low-stock", cfg.Inventory.LowStock)
	api.Get("/inventory/:id", cfg.Inventory.Get)
	api.Put("/inventory/:id", cfg.Inventory.Update)
	api.Post("/inventory/:id/adjust", cfg.Inventory.Adjust)
	api.Delete("/inventory/:id", admin, cfg.Inventory.Delete)

	api.Get("/dashboard", cfg.Admin.Dashboard)
	api.Post("/maintenance/normalize-statuses", admin, cfg.Admin.NormalizeStatuses)
}
