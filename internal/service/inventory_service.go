package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
)

// InventoryService is the stock ledger. It has no relation to tickets.
type InventoryService struct {
	store  repository.Store
	logger *zap.Logger
}

// InventoryInput carries item fields for create and full update.
type InventoryInput struct {
	Code            string
	Name            string
	Description     *string
	Quantity        int
	MinimumQuantity int
	Location        *string
	Category        *string
	Notes           *string
}

// InventoryListFilter describes listing filters.
type InventoryListFilter struct {
	Search   string
	Category string
	Limit    int
	Offset   int
}

// NewInventoryService constructs the service.
func NewInventoryService(store repository.Store, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{store: store, logger: logger}
}

func (in InventoryInput) validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return invalidField("code", "code is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalidField("name", "name is required")
	}
	if in.Quantity < 0 {
		return invalidField("quantity", "quantity must be greater than or equal to 0")
	}
	if in.MinimumQuantity < 0 {
		return invalidField("minimum_quantity", "minimum_quantity must be greater than or equal to 0")
	}
	return nil
}

func (in InventoryInput) apply(item *domain.InventoryItem) {
	item.Code = strings.TrimSpace(in.Code)
	item.Name = strings.TrimSpace(in.Name)
	item.Description = optionalText(in.Description)
	item.Quantity = in.Quantity
	item.MinimumQuantity = in.MinimumQuantity
	item.Location = optionalText(in.Location)
	item.Category = optionalText(in.Category)
	item.Notes = optionalText(in.Notes)
}

// Create adds an item. Codes are unique.
func (s *InventoryService) Create(ctx context.Context, input InventoryInput) (*domain.InventoryItem, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	item := &domain.InventoryItem{}
	input.apply(item)
	if err := s.store.Repositories().Inventory.Create(ctx, item); err != nil {
		return nil, storeError("inventory item", err)
	}
	s.logger.Info("inventory item created", zap.Int64("item_id", item.ID), zap.String("code", item.Code))
	return item, nil
}

// Get fetches an item.
func (s *InventoryService) Get(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	item, err := s.store.Repositories().Inventory.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("inventory item", err)
	}
	return item, nil
}

// List returns items ordered by name.
func (s *InventoryService) List(ctx context.Context, filter InventoryListFilter) ([]domain.InventoryItem, error) {
	items, err := s.store.Repositories().Inventory.List(ctx, repository.InventoryFilter{
		SearchTerm: filter.Search,
		Category:   filter.Category,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, storeError("inventory item", err)
	}
	return items, nil
}

// Update replaces every item field.
func (s *InventoryService) Update(ctx context.Context, id int64, input InventoryInput) (*domain.InventoryItem, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var item *domain.InventoryItem
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		item, err = repos.Inventory.GetByID(ctx, id)
		if err != nil {
			return storeError("inventory item", err)
		}
		input.apply(item)
		return storeError("inventory item", repos.Inventory.Update(ctx, item))
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Adjust adds delta to the quantity atomically; the result may not drop below zero.
func (s *InventoryService) Adjust(ctx context.Context, id int64, delta int) (*domain.InventoryItem, error) {
	if delta == 0 {
		return s.Get(ctx, id)
	}
	item, err := s.store.Repositories().Inventory.Adjust(ctx, id, delta)
	if err != nil {
		return nil, storeError("inventory item", err)
	}
	if item.BelowMinimum() {
		s.logger.Info("inventory item at or below minimum",
			zap.Int64("item_id", item.ID),
			zap.String("code", item.Code),
			zap.Int("quantity", item.Quantity),
			zap.Int("minimum_quantity", item.MinimumQuantity))
	}
	return item, nil
}

// Delete removes an item.
func (s *InventoryService) Delete(ctx context.Context, id int64) error {
	return storeError("inventory item", s.store.Repositories().Inventory.Delete(ctx, id))
}

// LowStock lists items whose quantity is at or below their minimum.
func (s *InventoryService) LowStock(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.store.Repositories().Inventory.LowStock(ctx)
	if err != nil {
		return nil, storeError("inventory item", err)
	}
	return items, nil
}
