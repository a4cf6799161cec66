package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
)

// UnresolvedStatus is a stored value that matches neither a canonical value nor a legacy alias.
type UnresolvedStatus struct {
	TicketID int64              `json:"ticket_id"`
	Field    domain.TicketField `json:"field"`
	Value    string             `json:"value"`
}

// NormalizationReport summarizes a bulk status normalization.
type NormalizationReport struct {
	Scanned    int                `json:"scanned"`
	Normalized int                `json:"normalized"`
	Unresolved []UnresolvedStatus `json:"unresolved"`
}

// MaintenanceService runs one-off data migrations.
type MaintenanceService struct {
	store     repository.Store
	tickets   *TicketService
	customers *CustomerService
	logger    *zap.Logger
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(store repository.Store, tickets *TicketService, customers *CustomerService, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{store: store, tickets: tickets, customers: customers, logger: logger}
}

// NormalizeStatuses rewrites legacy status and repair_status values through the regular
// ticket update, so each rewrite leaves a history row with no actor.
func (m *MaintenanceService) NormalizeStatuses(ctx context.Context) (NormalizationReport, error) {
	report := NormalizationReport{Unresolved: []UnresolvedStatus{}}

	ids, err := m.store.Repositories().Tickets.ListNonCanonical(ctx)
	if err != nil {
		return report, storeError("ticket", err)
	}

	for _, id := range ids {
		ticket, err := m.tickets.Get(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return report, err
		}
		report.Scanned++

		var patch TicketUpdate
		if !ticket.Status.Valid() {
			raw := string(ticket.Status)
			if _, ok := domain.NormalizeTicketStatus(raw); ok {
				patch.Status = &raw
			} else {
				report.Unresolved = append(report.Unresolved, UnresolvedStatus{TicketID: id, Field: domain.FieldStatus, Value: raw})
			}
		}
		if !ticket.RepairStatus.Valid() {
			raw := string(ticket.RepairStatus)
			if _, ok := domain.NormalizeRepairStatus(raw); ok {
				patch.RepairStatus = &raw
			} else {
				report.Unresolved = append(report.Unresolved, UnresolvedStatus{TicketID: id, Field: domain.FieldRepairStatus, Value: raw})
			}
		}
		if patch.Empty() {
			continue
		}

		if _, _, err := m.tickets.Update(ctx, id, patch, nil); err != nil {
			return report, err
		}
		report.Normalized++
	}

	m.logger.Info("status normalization finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("normalized", report.Normalized),
		zap.Int("unresolved", len(report.Unresolved)))
	return report, nil
}

// BackfillCustomerCodes assigns codes to customers created before codes existed.
func (m *MaintenanceService) BackfillCustomerCodes(ctx context.Context) ([]CodeAssignment, error) {
	return m.customers.BackfillCodes(ctx)
}
