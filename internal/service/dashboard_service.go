package service

import (
	"context"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
)

// DashboardSummary aggregates counters for the landing page.
type DashboardSummary struct {
	Customers       int            `json:"customers"`
	Tickets         int            `json:"tickets"`
	TicketsByStatus map[string]int `json:"tickets_by_status"`
	LowStockItems   int            `json:"low_stock_items"`
}

// DashboardService reads aggregate counters.
type DashboardService struct {
	store repository.Store
}

// NewDashboardService constructs the service.
func NewDashboardService(store repository.Store) *DashboardService {
	return &DashboardService{store: store}
}

// Summary reports every canonical status, including those with no tickets.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	repos := s.store.Repositories()

	customers, err := repos.Customers.Count(ctx)
	if err != nil {
		return nil, storeError("customer", err)
	}
	counts, err := repos.Tickets.CountByStatus(ctx)
	if err != nil {
		return nil, storeError("ticket", err)
	}
	lowStock, err := repos.Inventory.LowStock(ctx)
	if err != nil {
		return nil, storeError("inventory item", err)
	}

	summary := &DashboardSummary{
		Customers:       customers,
		TicketsByStatus: make(map[string]int, len(domain.TicketStatuses)),
		LowStockItems:   len(lowStock),
	}
	for _, status := range domain.TicketStatuses {
		summary.TicketsByStatus[string(status)] = 0
	}
	for status, n := range counts {
		summary.TicketsByStatus[string(status)] += n
		summary.Tickets += n
	}
	return summary, nil
}
