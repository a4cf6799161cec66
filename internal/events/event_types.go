package events

import (
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketUpdated   EventType = "ticket_updated"
	EventTicketDeleted   EventType = "ticket_deleted"
	EventAttachmentAdded EventType = "attachment_added"
)

// Actor identifies who caused an event. A nil UserID means a system action.
type Actor struct {
	UserID *int64 `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerID   int64               `json:"customer_id"`
	Subject      string              `json:"subject"`
	Status       domain.TicketStatus `json:"status"`
	RepairStatus domain.RepairStatus `json:"repair_status"`
}

// TicketUpdatedPayload lists the changed fields in application order.
type TicketUpdatedPayload struct {
	Changes []domain.FieldChange `json:"changes"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	CustomerID int64  `json:"customer_id"`
	Subject    string `json:"subject"`
}

// AttachmentAddedPayload payload.
type AttachmentAddedPayload struct {
	AttachmentID     int64  `json:"attachment_id"`
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
	FileSize         int64  `json:"file_size"`
}
