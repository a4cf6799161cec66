package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/storage"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// CustomerService is the customer directory.
type CustomerService struct {
	store  repository.Store
	files  storage.FileStorage
	logger *zap.Logger
}

// CustomerInput carries customer fields. Code is optional on create and ignored on update.
type CustomerInput struct {
	Code    string
	Name    string
	Email   *string
	Phone   *string
	Address *string
}

// CodeAssignment reports one code given by a backfill.
type CodeAssignment struct {
	CustomerID int64  `json:"customer_id"`
	Code       string `json:"code"`
}

// SyncStats summarizes a customer import.
type SyncStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// NewCustomerService constructs the service.
func NewCustomerService(store repository.Store, files storage.FileStorage, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{store: store, files: files, logger: logger}
}

// Create stores a customer. Without an explicit code the next code in sequence is assigned.
func (s *CustomerService) Create(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	var customer *domain.Customer
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		customer, err = s.create(ctx, repos, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer created", zap.Int64("customer_id", customer.ID), zap.String("code", customer.Code))
	return customer, nil
}

func (s *CustomerService) create(ctx context.Context, repos repository.Repositories, input CustomerInput) (*domain.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalidField("name", "name is required")
	}

	if err := repos.Customers.LockCodes(ctx); err != nil {
		return nil, storeError("customer", err)
	}

	code := domain.NormalizeCustomerCode(input.Code)
	if code != "" {
		if _, err := domain.DecodeCustomerCode(code); err != nil {
			return nil, invalidField("code", err.Error())
		}
	} else {
		next, err := s.nextCode(ctx, repos)
		if err != nil {
			return nil, err
		}
		code = next
	}

	customer := &domain.Customer{
		Code:    code,
		Name:    name,
		Email:   optionalText(input.Email),
		Phone:   optionalText(input.Phone),
		Address: optionalText(input.Address),
	}
	if err := repos.Customers.Create(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalidField("code", "customer code already in use")
		}
		return nil, storeError("customer", err)
	}
	return customer, nil
}

func (s *CustomerService) nextCode(ctx context.Context, repos repository.Repositories) (string, error) {
	highest, err := repos.Customers.HighestCode(ctx)
	if err != nil {
		return "", storeError("customer", err)
	}
	next, err := domain.NextCustomerCode(highest)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerCodeExhausted) {
			return "", apperrors.NewConflict(err.Error(), nil)
		}
		return "", apperrors.NewInternalError(err)
	}
	return next, nil
}

// Get fetches a customer by id.
func (s *CustomerService) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	customer, err := s.store.Repositories().Customers.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("customer", err)
	}
	return customer, nil
}

// GetByCode fetches a customer by code, case-insensitively.
func (s *CustomerService) GetByCode(ctx context.Context, code string) (*domain.Customer, error) {
	customer, err := s.store.Repositories().Customers.GetByCode(ctx, domain.NormalizeCustomerCode(code))
	if err != nil {
		return nil, storeError("customer", err)
	}
	return customer, nil
}

// List returns customers ordered by name.
func (s *CustomerService) List(ctx context.Context, search string, limit, offset int) ([]domain.Customer, error) {
	customers, err := s.store.Repositories().Customers.List(ctx, repository.CustomerFilter{
		SearchTerm: search,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, storeError("customer", err)
	}
	return customers, nil
}

// Update replaces the mutable customer fields. The code never changes.
func (s *CustomerService) Update(ctx context.Context, id int64, input CustomerInput) (*domain.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalidField("name", "name is required")
	}

	var customer *domain.Customer
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		customer, err = repos.Customers.GetByID(ctx, id)
		if err != nil {
			return storeError("customer", err)
		}
		customer.Name = name
		customer.Email = optionalText(input.Email)
		customer.Phone = optionalText(input.Phone)
		customer.Address = optionalText(input.Address)
		return storeError("customer", repos.Customers.Update(ctx, customer))
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// Delete removes a customer together with its tickets, their history and attachments.
func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	var attachments []domain.TicketAttachment
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Customers.GetByID(ctx, id); err != nil {
			return storeError("customer", err)
		}
		var err error
		attachments, err = repos.Attachments.ListByCustomer(ctx, id)
		if err != nil {
			return storeError("attachment", err)
		}
		return storeError("customer", repos.Customers.Delete(ctx, id))
	})
	if err != nil {
		return err
	}

	removeStoredFiles(ctx, s.files, s.logger, attachments)
	s.logger.Info("customer deleted", zap.Int64("customer_id", id), zap.Int("attachments", len(attachments)))
	return nil
}

// BackfillCodes gives every customer without a code the next code in sequence,
// in ascending id order. Running it again assigns nothing.
func (s *CustomerService) BackfillCodes(ctx context.Context) ([]CodeAssignment, error) {
	var assigned []CodeAssignment
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Customers.LockCodes(ctx); err != nil {
			return storeError("customer", err)
		}
		missing, err := repos.Customers.ListWithoutCode(ctx)
		if err != nil {
			return storeError("customer", err)
		}
		for _, customer := range missing {
			code, err := s.nextCode(ctx, repos)
			if err != nil {
				return err
			}
			if err := repos.Customers.SetCode(ctx, customer.ID, code); err != nil {
				return storeError("customer", err)
			}
			assigned = append(assigned, CodeAssignment{CustomerID: customer.ID, Code: code})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer codes backfilled", zap.Int("assigned", len(assigned)))
	return assigned, nil
}

// Sync upserts records in one transaction. A record matches an existing customer by
// email, then phone, then name; only differing non-empty fields are written.
func (s *CustomerService) Sync(ctx context.Context, records []CustomerInput) (SyncStats, error) {
	stats := SyncStats{Total: len(records)}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		for _, record := range records {
			if strings.TrimSpace(record.Name) == "" {
				stats.Skipped++
				continue
			}

			existing, err := s.match(ctx, repos, record)
			if err != nil {
				return err
			}
			if existing == nil {
				if _, err := s.create(ctx, repos, CustomerInput{
					Name:    record.Name,
					Email:   record.Email,
					Phone:   record.Phone,
					Address: record.Address,
				}); err != nil {
					return err
				}
				stats.Created++
				continue
			}

			if !mergeCustomer(existing, record) {
				stats.Skipped++
				continue
			}
			if err := repos.Customers.Update(ctx, existing); err != nil {
				return storeError("customer", err)
			}
			stats.Updated++
		}
		return nil
	})
	if err != nil {
		return SyncStats{}, err
	}
	s.logger.Info("customers synced",
		zap.Int("total", stats.Total),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func (s *CustomerService) match(ctx context.Context, repos repository.Repositories, record CustomerInput) (*domain.Customer, error) {
	lookups := []struct {
		value *string
		find  func(context.Context, string) (*domain.Customer, error)
	}{
		{optionalText(record.Email), repos.Customers.FindByEmail},
		{optionalText(record.Phone), repos.Customers.FindByPhone},
		{optionalText(&record.Name), repos.Customers.FindByName},
	}
	for _, lookup := range lookups {
		if lookup.value == nil {
			continue
		}
		customer, err := lookup.find(ctx, *lookup.value)
		if err == nil {
			return customer, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError("customer", err)
		}
	}
	return nil, nil
}

// mergeCustomer copies differing non-empty fields and reports whether anything changed.
func mergeCustomer(customer *domain.Customer, record CustomerInput) bool {
	changed := false
	if name := strings.TrimSpace(record.Name); name != "" && name != strings.TrimSpace(customer.Name) {
		customer.Name = name
		changed = true
	}
	for _, field := range []struct {
		target **string
		value  *string
		same   func(a, b string) bool
	}{
		{&customer.Email, optionalText(record.Email), strings.EqualFold},
		{&customer.Phone, optionalText(record.Phone), equalText},
		{&customer.Address, optionalText(record.Address), equalText},
	} {
		if field.value == nil {
			continue
		}
		current := optionalText(*field.target)
		if current != nil && field.same(*current, *field.value) {
			continue
		}
		*field.target = field.value
		changed = true
	}
	return changed
}

func equalText(a, b string) bool {
	return a == b
}
