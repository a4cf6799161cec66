package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/service"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// TicketsHandler manages tickets, their history, attachments and suggestions.
type TicketsHandler struct {
	tickets     *service.TicketService
	attachments *service.AttachmentService
	suggestions *service.SuggestionService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, attachments *service.AttachmentService, suggestions *service.SuggestionService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, attachments: attachments, suggestions: suggestions}
}

// Statuses GET /tickets/statuses.
func (h *TicketsHandler) Statuses(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewStatusCatalog()})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	filter := service.TicketListFilter{
		Statuses:       splitList(c.Query("status")),
		RepairStatuses: splitList(c.Query("repair_status")),
		Search:         c.Query("q"),
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid customer_id", nil)
		}
		filter.CustomerID = &id
	}
	filter.Limit, filter.Offset = page(c)

	tickets, err := h.tickets.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Create(c.UserContext(), req.Input(), actorID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Update PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, changes, err := h.tickets.Update(c.UserContext(), id, req.Patch(), actorID(c))
	if err != nil {
		return err
	}
	if changes == nil {
		changes = []domain.FieldChange{}
	}
	return c.JSON(fiber.Map{"data": dto.TicketUpdateResponse{
		Ticket:  dto.NewTicketResponse(ticket),
		Changes: changes,
	}})
}

// Delete DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), id, actorID(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.tickets.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

// Attachments GET /tickets/:id/attachments.
func (h *TicketsHandler) Attachments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	attachments, err := h.attachments.List(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentResponses(attachments)})
}

// Upload POST /tickets/:id/attachments as multipart form field "file".
func (h *TicketsHandler) Upload(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", map[string]any{"fields": map[string]any{"file": "file is required"}})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	attachment, err := h.attachments.Upload(c.UserContext(), service.UploadInput{
		TicketID:    id,
		Filename:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Content:     file,
	}, actorID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment)})
}

// Download GET /attachments/:id/download.
func (h *TicketsHandler) Download(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	attachment, body, err := h.attachments.Open(c.UserContext(), id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, attachment.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", attachment.OriginalFilename))
	return c.SendStream(body, int(attachment.FileSize))
}

// Suggest POST /tickets/:id/suggestions. The ticket is never modified.
func (h *TicketsHandler) Suggest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SuggestionRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	resp, err := h.suggestions.Suggest(c.UserContext(), id, req.Target, actorName(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}
