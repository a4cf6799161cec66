package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/service"
)

// AdminHandler exposes the dashboard and maintenance jobs.
type AdminHandler struct {
	dashboard   *service.DashboardService
	maintenance *service.MaintenanceService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(dashboard *service.DashboardService, maintenance *service.MaintenanceService) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, maintenance: maintenance}
}

// Dashboard GET /dashboard.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	summary, err := h.dashboard.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// NormalizeStatuses POST /maintenance/normalize-statuses.
func (h *AdminHandler) NormalizeStatuses(c *fiber.Ctx) error {
	report, err := h.maintenance.NormalizeStatuses(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
