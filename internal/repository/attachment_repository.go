package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.TicketAttachment) error
	GetByID(ctx context.Context, id int64) (*domain.TicketAttachment, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketAttachment, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.TicketAttachment, error)
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

const attachmentColumns = `a.id, a.ticket_id, a.original_filename, a.stored_filename, a.content_type, a.file_size,
               a.uploaded_at, a.uploaded_by`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.TicketAttachment) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, original_filename, stored_filename, content_type, file_size, uploaded_at, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.OriginalFilename,
		attachment.StoredFilename,
		attachment.ContentType,
		attachment.FileSize,
		attachment.UploadedAt,
		attachment.UploadedBy,
	).Scan(&attachment.ID)
	return mapError(err)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id int64) (*domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments a WHERE a.id=$1`
	attachment, err := scanAttachment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return attachment, nil
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments a WHERE a.ticket_id=$1 ORDER BY a.uploaded_at ASC, a.id ASC`
	return r.list(ctx, query, ticketID)
}

func (r *attachmentRepository) ListByCustomer(ctx context.Context, customerID int64) ([]domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments a
        JOIN tickets t ON t.id = a.ticket_id WHERE t.customer_id=$1 ORDER BY a.id ASC`
	return r.list(ctx, query, customerID)
}

func (r *attachmentRepository) list(ctx context.Context, query string, arg any) ([]domain.TicketAttachment, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.TicketAttachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *attachment)
	}
	return result, rows.Err()
}

func scanAttachment(row pgx.Row) (*domain.TicketAttachment, error) {
	var attachment domain.TicketAttachment
	if err := row.Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.OriginalFilename,
		&attachment.StoredFilename,
		&attachment.ContentType,
		&attachment.FileSize,
		&attachment.UploadedAt,
		&attachment.UploadedBy,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}
