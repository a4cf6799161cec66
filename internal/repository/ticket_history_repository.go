package repository

import (
	"context"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// TicketHistoryRepository stores audit entries. It exposes no update or delete.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistoryEntry) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistoryEntry, error)
}

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, field, old_value, new_value, changed_at, changed_by)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.ChangedAt,
		entry.ChangedBy,
	).Scan(&entry.ID)
	return mapError(err)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, field, old_value, new_value, changed_at, changed_by
        FROM ticket_history WHERE ticket_id=$1 ORDER BY changed_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.TicketHistoryEntry
	for rows.Next() {
		var entry domain.TicketHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Field,
			&entry.OldValue,
			&entry.NewValue,
			&entry.ChangedAt,
			&entry.ChangedBy,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
