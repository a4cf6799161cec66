package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/suggestion"
)

// suggestionTargets are the ticket fields a suggestion may be requested for.
var suggestionTargets = map[domain.TicketField]struct{}{
	domain.FieldIssueDescription: {},
	domain.FieldDescription:      {},
	domain.FieldPaymentInfo:      {},
	domain.FieldProduct:          {},
}

// SuggestionService builds the ticket context and asks the gateway for advice.
// It never writes to the ticket.
type SuggestionService struct {
	store   repository.Store
	gateway suggestion.Gateway
	logger  *zap.Logger
}

// NewSuggestionService constructs the service.
func NewSuggestionService(store repository.Store, gateway suggestion.Gateway, logger *zap.Logger) *SuggestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionService{store: store, gateway: gateway, logger: logger}
}

// Suggest requests advice for target on a ticket. An empty target means issue_description.
func (s *SuggestionService) Suggest(ctx context.Context, ticketID int64, target, requestedBy string) (*suggestion.Response, error) {
	field := domain.TicketField(strings.TrimSpace(target))
	if field == "" {
		field = domain.FieldIssueDescription
	}
	if _, ok := suggestionTargets[field]; !ok {
		return nil, invalidField("target", "unsupported suggestion target "+string(field))
	}

	ticket, err := s.store.Repositories().Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError("ticket", err)
	}

	resp, err := s.gateway.Suggest(ctx, suggestion.Request{
		Target:           string(field),
		Subject:          ticket.Subject,
		Product:          deref(ticket.Product),
		IssueDescription: deref(ticket.IssueDescription),
		Description:      deref(ticket.Description),
		RequestedBy:      requestedBy,
	})
	if err != nil {
		s.logger.Warn("suggestion failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
