package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// customerCodeLockKey serializes code assignment across concurrent transactions.
const customerCodeLockKey = 0x637573746f6d6572

// CustomerFilter captures listing parameters.
type CustomerFilter struct {
	SearchTerm string
	Limit      int
	Offset     int
}

// CustomerRepository persists customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	GetByCode(ctx context.Context, code string) (*domain.Customer, error)
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
	FindByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	FindByName(ctx context.Context, name string) (*domain.Customer, error)
	List(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error)
	Count(ctx context.Context) (int, error)
	// Delete cascades to the customer's tickets and their history and attachments.
	Delete(ctx context.Context, id int64) error

	// LockCodes blocks other code assignments until the transaction ends.
	LockCodes(ctx context.Context) error
	HighestCode(ctx context.Context) (string, error)
	ListWithoutCode(ctx context.Context) ([]domain.Customer, error)
	SetCode(ctx context.Context, id int64, code string) error
}

type customerRepository struct {
	db DBTX
}

// NewCustomerRepository constructs repository.
func NewCustomerRepository(db DBTX) CustomerRepository {
	return &customerRepository{db: db}
}

const customerColumns = `id, COALESCE(code, ''), name, email, phone, address, created_at`

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (code, name, email, phone, address)
        VALUES (NULLIF($1,''),$2,$3,$4,$5)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		customer.Code,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Address,
	).Scan(&customer.ID, &customer.CreatedAt)
	return mapError(err)
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	const query = `UPDATE customers SET name=$1, email=$2, phone=$3, address=$4 WHERE id=$5`
	cmd, err := r.db.Exec(ctx, query, customer.Name, customer.Email, customer.Phone, customer.Address, customer.ID)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
}

func (r *customerRepository) GetByCode(ctx context.Context, code string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE code=$1`, domain.NormalizeCustomerCode(code))
}

func (r *customerRepository) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE LOWER(email)=LOWER($1) ORDER BY id LIMIT 1`, email)
}

func (r *customerRepository) FindByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone=$1 ORDER BY id LIMIT 1`, phone)
}

func (r *customerRepository) FindByName(ctx context.Context, name string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE LOWER(name)=LOWER($1) ORDER BY id LIMIT 1`, name)
}

func (r *customerRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Customer, error) {
	customer, err := scanCustomer(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return customer, nil
}

func (r *customerRepository) List(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(COALESCE(email,'')) LIKE %s OR COALESCE(phone,'') LIKE %s OR code LIKE %s)", p, p, p, p))
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY name ASC, id ASC LIMIT %d OFFSET %d`,
		customerColumns, strings.Join(clauses, " AND "), limit, offset)
	return r.list(ctx, query, args...)
}

func (r *customerRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (r *customerRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customerRepository) LockCodes(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(customerCodeLockKey))
	return mapError(err)
}

func (r *customerRepository) HighestCode(ctx context.Context) (string, error) {
	var code string
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(code), '') FROM customers WHERE code IS NOT NULL AND code <> ''`).Scan(&code)
	if err != nil {
		return "", mapError(err)
	}
	return code, nil
}

func (r *customerRepository) ListWithoutCode(ctx context.Context) ([]domain.Customer, error) {
	return r.list(ctx, `SELECT `+customerColumns+` FROM customers WHERE code IS NULL OR code = '' ORDER BY id ASC`)
}

func (r *customerRepository) SetCode(ctx context.Context, id int64, code string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE customers SET code=$1 WHERE id=$2 AND (code IS NULL OR code = '')`, code, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customerRepository) list(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *customer)
	}
	return result, rows.Err()
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var customer domain.Customer
	if err := row.Scan(
		&customer.ID,
		&customer.Code,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.Address,
		&customer.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}
