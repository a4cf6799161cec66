package domain

import "time"

// InventoryItem is a stock-keeping record. It has no relation to tickets.
type InventoryItem struct {
	ID              int64
	Code            string
	Name            string
	Description     *string
	Quantity        int
	MinimumQuantity int
	Location        *string
	Category        *string
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BelowMinimum reports whether the item should be reordered.
func (i *InventoryItem) BelowMinimum() bool {
	return i.Quantity <= i.MinimumQuantity
}
