package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/service"
)

// InventoryHandler manages the stock ledger.
type InventoryHandler struct {
	inventory *service.InventoryService
}

// NewInventoryHandler constructs handler.
func NewInventoryHandler(inventory *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// List GET /inventory.
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	limit, offset := page(c)
	items, err := h.inventory.List(c.UserContext(), service.InventoryListFilter{
		Search:   c.Query("q"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInventoryResponses(items)})
}

// LowStock GET /inventory/low-stock.
func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	items, err := h.inventory.LowStock(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInventoryResponses(items)})
}

// Create POST /inventory.
func (h *InventoryHandler) Create(c *fiber.Ctx) error {
	var req dto.InventoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.inventory.Create(c.UserContext(), req.Input())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewInventoryResponse(item)})
}

// Get GET /inventory/:id.
func (h *InventoryHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	item, err := h.inventory.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInventoryResponse(item)})
}

// Update PUT /inventory/:id.
func (h *InventoryHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.InventoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.inventory.Update(c.UserContext(), id, req.Input())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInventoryResponse(item)})
}

// Adjust POST /inventory/:id/adjust.
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.InventoryAdjustRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.inventory.Adjust(c.UserContext(), id, req.Delta)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInventoryResponse(item)})
}

// Delete DELETE /inventory/:id.
func (h *InventoryHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.inventory.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
