package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
)

// HistoryRecorder appends immutable audit rows for ticket field changes.
// It never updates or deletes rows; a failed write is returned so the caller's transaction aborts.
type HistoryRecorder struct {
	store  repository.Store
	logger *zap.Logger
}

// NewHistoryRecorder constructs the recorder.
func NewHistoryRecorder(store repository.Store, logger *zap.Logger) *HistoryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRecorder{store: store, logger: logger}
}

// Record writes one row through history, which must be bound to the caller's transaction.
func (h *HistoryRecorder) Record(ctx context.Context, history repository.TicketHistoryRepository, ticketID int64, change domain.FieldChange, actorID *int64, at time.Time) (*domain.TicketHistoryEntry, error) {
	entry := &domain.TicketHistoryEntry{
		TicketID:  ticketID,
		Field:     change.Field,
		OldValue:  change.OldValue,
		NewValue:  change.NewValue,
		ChangedAt: at,
		ChangedBy: actorID,
	}
	if err := history.Create(ctx, entry); err != nil {
		h.logger.Error("history write failed",
			zap.Int64("ticket_id", ticketID),
			zap.String("field", string(change.Field)),
			zap.Error(err))
		return nil, fmt.Errorf("record %s change: %w", change.Field, err)
	}
	return entry, nil
}

// RecordAll writes one row per change, in order, stopping at the first failure.
func (h *HistoryRecorder) RecordAll(ctx context.Context, history repository.TicketHistoryRepository, ticketID int64, changes []domain.FieldChange, actorID *int64, at time.Time) ([]domain.TicketHistoryEntry, error) {
	entries := make([]domain.TicketHistoryEntry, 0, len(changes))
	for _, change := range changes {
		entry, err := h.Record(ctx, history, ticketID, change, actorID, at)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// List returns a ticket's history oldest first.
func (h *HistoryRecorder) List(ctx context.Context, ticketID int64) ([]domain.TicketHistoryEntry, error) {
	repos := h.store.Repositories()
	if _, err := repos.Tickets.GetByID(ctx, ticketID); err != nil {
		return nil, storeError("ticket", err)
	}
	entries, err := repos.History.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError("ticket history", err)
	}
	return entries, nil
}
