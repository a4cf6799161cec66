package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// InventoryFilter captures listing parameters.
type InventoryFilter struct {
	SearchTerm string
	Category   string
	Limit      int
	Offset     int
}

// InventoryRepository persists stock records.
type InventoryRepository interface {
	Create(ctx context.Context, item *domain.InventoryItem) error
	Update(ctx context.Context, item *domain.InventoryItem) error
	GetByID(ctx context.Context, id int64) (*domain.InventoryItem, error)
	List(ctx context.Context, filter InventoryFilter) ([]domain.InventoryItem, error)
	LowStock(ctx context.Context) ([]domain.InventoryItem, error)
	// Adjust adds delta to the quantity; ErrInsufficientStock when the result would be negative.
	Adjust(ctx context.Context, id int64, delta int) (*domain.InventoryItem, error)
	Delete(ctx context.Context, id int64) error
}

type inventoryRepository struct {
	db DBTX
}

// NewInventoryRepository constructs repository.
func NewInventoryRepository(db DBTX) InventoryRepository {
	return &inventoryRepository{db: db}
}

const inventoryColumns = `id, code, name, description, quantity, minimum_quantity, location, category, notes,
               created_at, updated_at`

func (r *inventoryRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	const query = `
        INSERT INTO inventory_items (code, name, description, quantity, minimum_quantity, location, category, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		item.Code,
		item.Name,
		item.Description,
		item.Quantity,
		item.MinimumQuantity,
		item.Location,
		item.Category,
		item.Notes,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	return mapError(err)
}

func (r *inventoryRepository) Update(ctx context.Context, item *domain.InventoryItem) error {
	const query = `
        UPDATE inventory_items SET code=$1, name=$2, description=$3, quantity=$4, minimum_quantity=$5,
            location=$6, category=$7, notes=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		item.Code,
		item.Name,
		item.Description,
		item.Quantity,
		item.MinimumQuantity,
		item.Location,
		item.Category,
		item.Notes,
		item.ID,
	).Scan(&item.UpdatedAt)
	return mapError(err)
}

func (r *inventoryRepository) GetByID(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	item, err := scanInventoryItem(r.db.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE id=$1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return item, nil
}

func (r *inventoryRepository) List(ctx context.Context, filter InventoryFilter) ([]domain.InventoryItem, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(code) LIKE %s OR LOWER(name) LIKE %s)", p, p))
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		args = append(args, category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM inventory_items WHERE %s ORDER BY name ASC, id ASC LIMIT %d OFFSET %d`,
		inventoryColumns, strings.Join(clauses, " AND "), limit, offset)
	return r.list(ctx, query, args...)
}

func (r *inventoryRepository) LowStock(ctx context.Context) ([]domain.InventoryItem, error) {
	return r.list(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE quantity <= minimum_quantity ORDER BY name ASC, id ASC`)
}

func (r *inventoryRepository) Adjust(ctx context.Context, id int64, delta int) (*domain.InventoryItem, error) {
	query := `UPDATE inventory_items SET quantity = quantity + $1, updated_at=NOW()
        WHERE id=$2 AND quantity + $1 >= 0
        RETURNING ` + inventoryColumns
	item, err := scanInventoryItem(r.db.QueryRow(ctx, query, delta, id))
	if err == nil {
		return item, nil
	}
	if mapped := mapError(err); mapped != ErrNotFound {
		return nil, mapped
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInsufficientStock
}

func (r *inventoryRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *inventoryRepository) list(ctx context.Context, query string, args ...any) ([]domain.InventoryItem, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	return result, rows.Err()
}

func scanInventoryItem(row pgx.Row) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	if err := row.Scan(
		&item.ID,
		&item.Code,
		&item.Name,
		&item.Description,
		&item.Quantity,
		&item.MinimumQuantity,
		&item.Location,
		&item.Category,
		&item.Notes,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
