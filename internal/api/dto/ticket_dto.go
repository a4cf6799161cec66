package dto

import (
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/service"
)

// CreateTicketRequest payload. Status values may be legacy aliases; dates use YYYY-MM-DD.
type CreateTicketRequest struct {
	CustomerID       int64   `json:"customer_id" validate:"required,gt=0"`
	Subject          string  `json:"subject" validate:"required,max=255"`
	Description      *string `json:"description"`
	Status           string  `json:"status"`
	RepairStatus     string  `json:"repair_status"`
	Product          *string `json:"product" validate:"omitempty,max=255"`
	IssueDescription *string `json:"issue_description"`
	PaymentInfo      *string `json:"payment_info"`
	DateReceived     *string `json:"date_received"`
	DateRepaired     *string `json:"date_repaired"`
	DateReturned     *string `json:"date_returned"`
}

func (r CreateTicketRequest) Input() service.TicketCreateInput {
	return service.TicketCreateInput{
		CustomerID:       r.CustomerID,
		Subject:          r.Subject,
		Description:      r.Description,
		Status:           r.Status,
		RepairStatus:     r.RepairStatus,
		Product:          r.Product,
		IssueDescription: r.IssueDescription,
		PaymentInfo:      r.PaymentInfo,
		DateReceived:     r.DateReceived,
		DateRepaired:     r.DateRepaired,
		DateReturned:     r.DateReturned,
	}
}

// UpdateTicketRequest is a partial update. Omitted fields are untouched; "" clears optional fields.
type UpdateTicketRequest struct {
	Subject          *string `json:"subject" validate:"omitempty,max=255"`
	Description      *string `json:"description"`
	Status           *string `json:"status"`
	RepairStatus     *string `json:"repair_status"`
	Product          *string `json:"product" validate:"omitempty,max=255"`
	IssueDescription *string `json:"issue_description"`
	PaymentInfo      *string `json:"payment_info"`
	DateReceived     *string `json:"date_received"`
	DateRepaired     *string `json:"date_repaired"`
	DateReturned     *string `json:"date_returned"`
}

func (r UpdateTicketRequest) Patch() service.TicketUpdate {
	return service.TicketUpdate{
		Subject:          r.Subject,
		Description:      r.Description,
		Status:           r.Status,
		RepairStatus:     r.RepairStatus,
		Product:          r.Product,
		IssueDescription: r.IssueDescription,
		PaymentInfo:      r.PaymentInfo,
		DateReceived:     r.DateReceived,
		DateRepaired:     r.DateRepaired,
		DateReturned:     r.DateReturned,
	}
}

// TicketResponse representation.
type TicketResponse struct {
	ID                int64     `json:"id"`
	CustomerID        int64     `json:"customer_id"`
	Subject           string    `json:"subject"`
	Description       *string   `json:"description"`
	Status            string    `json:"status"`
	StatusLabel       string    `json:"status_label"`
	RepairStatus      string    `json:"repair_status"`
	RepairStatusLabel string    `json:"repair_status_label"`
	Product           *string   `json:"product"`
	IssueDescription  *string   `json:"issue_description"`
	PaymentInfo       *string   `json:"payment_info"`
	DateReceived      *string   `json:"date_received"`
	DateRepaired      *string   `json:"date_repaired"`
	DateReturned      *string   `json:"date_returned"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	CreatedBy         *int64    `json:"created_by"`
	LastModifiedBy    *int64    `json:"last_modified_by"`
}

func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                t.ID,
		CustomerID:        t.CustomerID,
		Subject:           t.Subject,
		Description:       t.Description,
		Status:            string(t.Status),
		StatusLabel:       t.Status.Label(),
		RepairStatus:      string(t.RepairStatus),
		RepairStatusLabel: t.RepairStatus.Label(),
		Product:           t.Product,
		IssueDescription:  t.IssueDescription,
		PaymentInfo:       t.PaymentInfo,
		DateReceived:      t.Value(domain.FieldDateReceived),
		DateRepaired:      t.Value(domain.FieldDateRepaired),
		DateReturned:      t.Value(domain.FieldDateReturned),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		CreatedBy:         t.CreatedBy,
		LastModifiedBy:    t.LastModifiedBy,
	}
}

func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// TicketUpdateResponse returns the ticket with the changes that were recorded.
type TicketUpdateResponse struct {
	Ticket  TicketResponse       `json:"ticket"`
	Changes []domain.FieldChange `json:"changes"`
}

// TicketHistoryResponse represents one audit row.
type TicketHistoryResponse struct {
	ID        int64     `json:"id"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"old_value"`
	NewValue  *string   `json:"new_value"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy *int64    `json:"changed_by"`
}

func NewHistoryResponses(entries []domain.TicketHistoryEntry) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:        e.ID,
			Field:     string(e.Field),
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			ChangedAt: e.ChangedAt,
			ChangedBy: e.ChangedBy,
		})
	}
	return out
}

// AttachmentResponse metadata. The stored name stays server side.
type AttachmentResponse struct {
	ID               int64     `json:"id"`
	TicketID         int64     `json:"ticket_id"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	FileSize         int64     `json:"file_size"`
	UploadedAt       time.Time `json:"uploaded_at"`
	UploadedBy       *int64    `json:"uploaded_by"`
}

func NewAttachmentResponse(a *domain.TicketAttachment) AttachmentResponse {
	return AttachmentResponse{
		ID:               a.ID,
		TicketID:         a.TicketID,
		OriginalFilename: a.OriginalFilename,
		ContentType:      a.ContentType,
		FileSize:         a.FileSize,
		UploadedAt:       a.UploadedAt,
		UploadedBy:       a.UploadedBy,
	}
}

func NewAttachmentResponses(attachments []domain.TicketAttachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		out = append(out, NewAttachmentResponse(&attachments[i]))
	}
	return out
}

// SuggestionRequest selects the ticket field the advice is for.
type SuggestionRequest struct {
	Target string `json:"target" validate:"omitempty,oneof=issue_description description payment_info product"`
}

// StatusOption is a selectable status value with its display label.
type StatusOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// StatusCatalog lists the canonical values of both lifecycles.
type StatusCatalog struct {
	Statuses       []StatusOption `json:"statuses"`
	RepairStatuses []StatusOption `json:"repair_statuses"`
}

func NewStatusCatalog() StatusCatalog {
	catalog := StatusCatalog{}
	for _, s := range domain.TicketStatuses {
		catalog.Statuses = append(catalog.Statuses, StatusOption{Value: string(s), Label: s.Label()})
	}
	for _, s := range domain.RepairStatuses {
		catalog.RepairStatuses = append(catalog.RepairStatuses, StatusOption{Value: string(s), Label: s.Label()})
	}
	return catalog
}
