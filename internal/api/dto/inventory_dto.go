package dto

import (
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/service"
)

// InventoryRequest payload for create and full update.
type InventoryRequest struct {
	Code            string  `json:"code" validate:"required,max=64"`
	Name            string  `json:"name" validate:"required,max=255"`
	Description     *string `json:"description"`
	Quantity        int     `json:"quantity" validate:"gte=0"`
	MinimumQuantity int     `json:"minimum_quantity" validate:"gte=0"`
	Location        *string `json:"location" validate:"omitempty,max=128"`
	Category        *string `json:"category" validate:"omitempty,max=128"`
	Notes           *string `json:"notes"`
}

func (r InventoryRequest) Input() service.InventoryInput {
	return service.InventoryInput{
		Code:            r.Code,
		Name:            r.Name,
		Description:     r.Description,
		Quantity:        r.Quantity,
		MinimumQuantity: r.MinimumQuantity,
		Location:        r.Location,
		Category:        r.Category,
		Notes:           r.Notes,
	}
}

// InventoryAdjustRequest moves stock in (positive) or out (negative).
type InventoryAdjustRequest struct {
	Delta int `json:"delta"`
}

// InventoryResponse representation.
type InventoryResponse struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	Quantity        int       `json:"quantity"`
	MinimumQuantity int       `json:"minimum_quantity"`
	BelowMinimum    bool      `json:"below_minimum"`
	Location        *string   `json:"location"`
	Category        *string   `json:"category"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewInventoryResponse(i *domain.InventoryItem) InventoryResponse {
	return InventoryResponse{
		ID:              i.ID,
		Code:            i.Code,
		Name:            i.Name,
		Description:     i.Description,
		Quantity:        i.Quantity,
		MinimumQuantity: i.MinimumQuantity,
		BelowMinimum:    i.BelowMinimum(),
		Location:        i.Location,
		Category:        i.Category,
		Notes:           i.Notes,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

func NewInventoryResponses(items []domain.InventoryItem) []InventoryResponse {
	out := make([]InventoryResponse, 0, len(items))
	for i := range items {
		out = append(out, NewInventoryResponse(&items[i]))
	}
	return out
}
