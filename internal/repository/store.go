package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors shared by every Store implementation.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate value violates unique constraint")
	ErrForeignKey        = errors.New("referenced record does not exist")
	ErrCheckViolation    = errors.New("value violates check constraint")
	ErrInsufficientStock = errors.New("quantity cannot become negative")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Customers   CustomerRepository
	Tickets     TicketRepository
	History     TicketHistoryRepository
	Attachments AttachmentRepository
	Inventory   InventoryRepository
	Users       UserRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	// WithinTx commits when fn returns nil and rolls back every write otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a Store over a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Repositories() Repositories {
	return newRepositories(s.pool)
}

func (s *pgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, newRepositories(tx))
	})
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Customers:   NewCustomerRepository(db),
		Tickets:     NewTicketRepository(db),
		History:     NewTicketHistoryRepository(db),
		Attachments: NewAttachmentRepository(db),
		Inventory:   NewInventoryRepository(db),
		Users:       NewUserRepository(db),
	}
}

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// mapError turns driver errors into the package sentinels, keeping the original for context.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &constraintError{sentinel: ErrDuplicate, constraint: pgErr.ConstraintName, err: err}
		case pgForeignKeyViolation:
			return &constraintError{sentinel: ErrForeignKey, constraint: pgErr.ConstraintName, err: err}
		case pgCheckViolation:
			return &constraintError{sentinel: ErrCheckViolation, constraint: pgErr.ConstraintName, err: err}
		}
	}
	return err
}

type constraintError struct {
	sentinel   error
	constraint string
	err        error
}

func (e *constraintError) Error() string {
	if e.constraint == "" {
		return e.sentinel.Error()
	}
	return e.sentinel.Error() + " (" + e.constraint + ")"
}

func (e *constraintError) Is(target error) bool {
	return target == e.sentinel
}

func (e *constraintError) Unwrap() error {
	return e.err
}

// ConstraintName returns the violated constraint for errors produced by this package.
func ConstraintName(err error) string {
	var ce *constraintError
	if errors.As(err, &ce) {
		return ce.constraint
	}
	return ""
}
