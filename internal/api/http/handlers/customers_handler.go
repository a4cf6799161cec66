package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/service"
)

// CustomersHandler manages the customer directory.
type CustomersHandler struct {
	customers *service.CustomerService
	tickets   *service.TicketService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customers *service.CustomerService, tickets *service.TicketService) *CustomersHandler {
	return &CustomersHandler{customers: customers, tickets: tickets}
}

// List GET /customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	limit, offset := page(c)
	customers, err := h.customers.List(c.UserContext(), c.Query("q"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponses(customers)})
}

// Create POST /customers.
func (h *CustomersHandler) Create(c *fiber.Ctx) error {
	var req dto.CustomerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	customer, err := h.customers.Create(c.UserContext(), req.Input())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// Get GET /customers/:id.
func (h *CustomersHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	customer, err := h.customers.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// GetByCode GET /customers/code/:code.
func (h *CustomersHandler) GetByCode(c *fiber.Ctx) error {
	customer, err := h.customers.GetByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// Tickets GET /customers/:id/tickets.
func (h *CustomersHandler) Tickets(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.customers.Get(c.UserContext(), id); err != nil {
		return err
	}
	limit, offset := page(c)
	tickets, err := h.tickets.List(c.UserContext(), service.TicketListFilter{CustomerID: &id, Limit: limit, Offset: offset})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// Update PUT /customers/:id.
func (h *CustomersHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CustomerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	customer, err := h.customers.Update(c.UserContext(), id, req.Input())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// Delete DELETE /customers/:id. Tickets of the customer go with it.
func (h *CustomersHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.customers.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Sync POST /customers/sync.
func (h *CustomersHandler) Sync(c *fiber.Ctx) error {
	var req dto.CustomerSyncRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	stats, err := h.customers.Sync(c.UserContext(), req.Inputs())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// BackfillCodes POST /customers/backfill-codes.
func (h *CustomersHandler) BackfillCodes(c *fiber.Ctx) error {
	assigned, err := h.customers.BackfillCodes(c.UserContext())
	if err != nil {
		return err
	}
	if assigned == nil {
		assigned = []service.CodeAssignment{}
	}
	return c.JSON(fiber.Map{"data": assigned})
}
