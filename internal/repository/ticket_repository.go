package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID     *int64
	Statuses       []domain.TicketStatus
	RepairStatuses []domain.RepairStatus
	SearchTerm     *string
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetForUpdate locks the row until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListNonCanonical(ctx context.Context) ([]int64, error)
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, customer_id, subject, description, status, repair_status, product, issue_description,
               payment_info, date_received, date_repaired, date_returned, created_at, updated_at,
               created_by, last_modified_by`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (customer_id, subject, description, status, repair_status, product, issue_description,
            payment_info, date_received, date_repaired, date_returned, created_at, updated_at, created_by, last_modified_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		ticket.CustomerID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.RepairStatus,
		ticket.Product,
		ticket.IssueDescription,
		ticket.PaymentInfo,
		ticket.DateReceived,
		ticket.DateRepaired,
		ticket.DateReturned,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.CreatedBy,
		ticket.LastModifiedBy,
	).Scan(&ticket.ID)
	return mapError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, repair_status=$4, product=$5,
            issue_description=$6, payment_info=$7, date_received=$8, date_repaired=$9, date_returned=$10,
            updated_at=$11, last_modified_by=$12
        WHERE id=$13`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.RepairStatus,
		ticket.Product,
		ticket.IssueDescription,
		ticket.PaymentInfo,
		ticket.DateReceived,
		ticket.DateRepaired,
		ticket.DateReturned,
		ticket.UpdatedAt,
		ticket.LastModifiedBy,
		ticket.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.RepairStatuses) > 0 {
		placeholders := make([]string, len(filter.RepairStatuses))
		for i, status := range filter.RepairStatuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("repair_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(COALESCE(description,'')) LIKE %s OR LOWER(COALESCE(product,'')) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) ListNonCanonical(ctx context.Context) ([]int64, error) {
	statuses := make([]string, 0, len(domain.TicketStatuses))
	for _, s := range domain.TicketStatuses {
		statuses = append(statuses, string(s))
	}
	repairStatuses := make([]string, 0, len(domain.RepairStatuses))
	for _, s := range domain.RepairStatuses {
		repairStatuses = append(repairStatuses, string(s))
	}

	const query = `
        SELECT id FROM tickets
        WHERE NOT (status = ANY($1)) OR NOT (repair_status = ANY($2))
        ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, statuses, repairStatuses)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.RepairStatus,
		&ticket.Product,
		&ticket.IssueDescription,
		&ticket.PaymentInfo,
		&ticket.DateReceived,
		&ticket.DateRepaired,
		&ticket.DateReturned,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.CreatedBy,
		&ticket.LastModifiedBy,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
