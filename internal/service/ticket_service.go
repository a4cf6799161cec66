package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/storage"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// TicketService owns ticket records and their status lifecycle.
type TicketService struct {
	store   repository.Store
	history *HistoryRecorder
	files   storage.FileStorage
	events  eventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	History    *HistoryRecorder
	Files      storage.FileStorage
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TicketCreateInput describes ticket creation payload. Empty optional strings mean unset.
type TicketCreateInput struct {
	CustomerID       int64
	Subject          string
	Description      *string
	Status           string
	RepairStatus     string
	Product          *string
	IssueDescription *string
	PaymentInfo      *string
	DateReceived     *string
	DateRepaired     *string
	DateReturned     *string
}

// TicketUpdate is a partial change set. A nil field is left untouched; an empty
// string clears an optional field. Dates use YYYY-MM-DD.
type TicketUpdate struct {
	Subject          *string
	Description      *string
	Status           *string
	RepairStatus     *string
	Product          *string
	IssueDescription *string
	PaymentInfo      *string
	DateReceived     *string
	DateRepaired     *string
	DateReturned     *string
}

func (u TicketUpdate) get(field domain.TicketField) *string {
	switch field {
	case domain.FieldSubject:
		return u.Subject
	case domain.FieldDescription:
		return u.Description
	case domain.FieldStatus:
		return u.Status
	case domain.FieldRepairStatus:
		return u.RepairStatus
	case domain.FieldProduct:
		return u.Product
	case domain.FieldIssueDescription:
		return u.IssueDescription
	case domain.FieldPaymentInfo:
		return u.PaymentInfo
	case domain.FieldDateReceived:
		return u.DateReceived
	case domain.FieldDateRepaired:
		return u.DateRepaired
	case domain.FieldDateReturned:
		return u.DateReturned
	}
	return nil
}

// Empty reports whether the update carries no fields.
func (u TicketUpdate) Empty() bool {
	for _, field := range domain.TrackedFields {
		if u.get(field) != nil {
			return false
		}
	}
	return true
}

// TicketListFilter describes listing filters. Status values may be legacy aliases.
type TicketListFilter struct {
	CustomerID     *int64
	Statuses       []string
	RepairStatuses []string
	Search         string
	Limit          int
	Offset         int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	history := deps.History
	if history == nil {
		history = NewHistoryRecorder(deps.Store, logger)
	}
	return &TicketService{
		store:   deps.Store,
		history: history,
		files:   deps.Files,
		events:  eventPublisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:  logger,
		now:     clock,
	}
}

// Create opens a ticket for an existing customer with the initial statuses unless given.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput, actorID *int64) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, invalidField("subject", "subject is required")
	}

	status := domain.DefaultTicketStatus
	if raw := strings.TrimSpace(input.Status); raw != "" {
		normalized, ok := domain.NormalizeTicketStatus(raw)
		if !ok {
			return nil, apperrors.NewInvalidTransition(string(domain.FieldStatus), raw)
		}
		status = normalized
	}
	repairStatus := domain.DefaultRepairStatus
	if raw := strings.TrimSpace(input.RepairStatus); raw != "" {
		normalized, ok := domain.NormalizeRepairStatus(raw)
		if !ok {
			return nil, apperrors.NewInvalidTransition(string(domain.FieldRepairStatus), raw)
		}
		repairStatus = normalized
	}

	now := s.timestamp()
	ticket := &domain.Ticket{
		CustomerID:       input.CustomerID,
		Subject:          subject,
		Description:      optionalText(input.Description),
		Status:           status,
		RepairStatus:     repairStatus,
		Product:          optionalText(input.Product),
		IssueDescription: optionalText(input.IssueDescription),
		PaymentInfo:      optionalText(input.PaymentInfo),
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        actorID,
		LastModifiedBy:   actorID,
	}
	dates := []struct {
		field domain.TicketField
		value *string
	}{
		{domain.FieldDateReceived, input.DateReceived},
		{domain.FieldDateRepaired, input.DateRepaired},
		{domain.FieldDateReturned, input.DateReturned},
	}
	for _, d := range dates {
		value, err := normalizeValue(d.field, d.value)
		if err != nil {
			return nil, err
		}
		if err := ticket.SetValue(d.field, value); err != nil {
			return nil, invalidField(string(d.field), err.Error())
		}
	}
	if err := ticket.CheckDateOrder(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Customers.GetByID(ctx, input.CustomerID); err != nil {
			if isNotFound(err) {
				return invalidField("customer_id", "customer does not exist")
			}
			return storeError("customer", err)
		}
		if err := checkActor(ctx, repos, actorID); err != nil {
			return err
		}
		return storeError("ticket", repos.Tickets.Create(ctx, ticket))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created", zap.Int64("ticket_id", ticket.ID), zap.Int64("customer_id", ticket.CustomerID))
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor(actorID),
		Payload: events.TicketCreatedPayload{
			CustomerID:   ticket.CustomerID,
			Subject:      ticket.Subject,
			Status:       ticket.Status,
			RepairStatus: ticket.RepairStatus,
		},
	})
	return ticket, nil
}

// Get fetches a ticket.
func (s *TicketService) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.store.Repositories().Tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("ticket", err)
	}
	return ticket, nil
}

// List returns tickets newest first.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		CustomerID: filter.CustomerID,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	for _, raw := range filter.Statuses {
		status, ok := domain.NormalizeTicketStatus(raw)
		if !ok {
			return nil, apperrors.NewInvalidTransition(string(domain.FieldStatus), raw)
		}
		repoFilter.Statuses = append(repoFilter.Statuses, status)
	}
	for _, raw := range filter.RepairStatuses {
		status, ok := domain.NormalizeRepairStatus(raw)
		if !ok {
			return nil, apperrors.NewInvalidTransition(string(domain.FieldRepairStatus), raw)
		}
		repoFilter.RepairStatuses = append(repoFilter.RepairStatuses, status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		repoFilter.SearchTerm = &search
	}

	tickets, err := s.store.Repositories().Tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, storeError("ticket", err)
	}
	return tickets, nil
}

// Update applies the changed fields of patch in tracked-field order. Field writes, the
// updated_at bump and one history row per changed field commit or roll back together.
// A patch that changes nothing leaves the ticket and its updated_at untouched.
func (s *TicketService) Update(ctx context.Context, id int64, patch TicketUpdate, actorID *int64) (*domain.Ticket, []domain.FieldChange, error) {
	desired := make(map[domain.TicketField]*string, len(domain.TrackedFields))
	for _, field := range domain.TrackedFields {
		raw := patch.get(field)
		if raw == nil {
			continue
		}
		value, err := normalizeValue(field, raw)
		if err != nil {
			return nil, nil, err
		}
		desired[field] = value
	}

	var (
		ticket  *domain.Ticket
		changes []domain.FieldChange
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Tickets.GetForUpdate(ctx, id)
		if err != nil {
			return storeError("ticket", err)
		}
		if err := checkActor(ctx, repos, actorID); err != nil {
			return err
		}

		for _, field := range domain.TrackedFields {
			value, ok := desired[field]
			if !ok {
				continue
			}
			old := current.Value(field)
			if equalValues(old, value) {
				continue
			}
			if err := current.SetValue(field, value); err != nil {
				return invalidField(string(field), err.Error())
			}
			changes = append(changes, domain.FieldChange{Field: field, OldValue: old, NewValue: value})
		}

		if len(changes) == 0 {
			ticket = current
			return nil
		}
		if err := current.CheckDateOrder(); err != nil {
			return apperrors.NewValidationError(err.Error(), nil)
		}

		current.UpdatedAt = s.nextTimestamp(current.UpdatedAt)
		current.LastModifiedBy = actorID
		if err := repos.Tickets.Update(ctx, current); err != nil {
			return storeError("ticket", err)
		}
		if _, err := s.history.RecordAll(ctx, repos.History, current.ID, changes, actorID, current.UpdatedAt); err != nil {
			return apperrors.NewInternalError(err)
		}
		ticket = current
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if len(changes) > 0 {
		s.logger.Info("ticket updated", zap.Int64("ticket_id", id), zap.Int("changed_fields", len(changes)))
		s.events.publish(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: id,
			Actor:    actor(actorID),
			Payload:  events.TicketUpdatedPayload{Changes: changes},
		})
	}
	return ticket, changes, nil
}

// Delete removes a ticket with its history and attachment rows. Stored files are
// removed after commit; failures there are logged only.
func (s *TicketService) Delete(ctx context.Context, id int64, actorID *int64) error {
	var (
		ticket      *domain.Ticket
		attachments []domain.TicketAttachment
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = repos.Tickets.GetForUpdate(ctx, id)
		if err != nil {
			return storeError("ticket", err)
		}
		attachments, err = repos.Attachments.ListByTicket(ctx, id)
		if err != nil {
			return storeError("attachment", err)
		}
		return storeError("ticket", repos.Tickets.Delete(ctx, id))
	})
	if err != nil {
		return err
	}

	removeStoredFiles(ctx, s.files, s.logger, attachments)
	s.logger.Info("ticket deleted", zap.Int64("ticket_id", id), zap.Int("attachments", len(attachments)))
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: id,
		Actor:    actor(actorID),
		Payload:  events.TicketDeletedPayload{CustomerID: ticket.CustomerID, Subject: ticket.Subject},
	})
	return nil
}

// History lists the ticket's audit rows oldest first.
func (s *TicketService) History(ctx context.Context, id int64) ([]domain.TicketHistoryEntry, error) {
	return s.history.List(ctx, id)
}

func (s *TicketService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextTimestamp is strictly after prev even when the clock has not advanced.
func (s *TicketService) nextTimestamp(prev time.Time) time.Time {
	now := s.timestamp()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

// normalizeValue brings a raw patch value into the stored textual form.
func normalizeValue(field domain.TicketField, raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)

	switch field {
	case domain.FieldSubject:
		if trimmed == "" {
			return nil, invalidField(string(field), "subject is required")
		}
		return &trimmed, nil
	case domain.FieldStatus:
		status, ok := domain.NormalizeTicketStatus(trimmed)
		if !ok {
			return nil, apperrors.NewInvalidTransition(string(field), *raw)
		}
		value := string(status)
		return &value, nil
	case domain.FieldRepairStatus:
		status, ok := domain.NormalizeRepairStatus(trimmed)
		if !ok {
			return nil, apperrors.NewInvalidTransition(string(field), *raw)
		}
		value := string(status)
		return &value, nil
	case domain.FieldDateReceived, domain.FieldDateRepaired, domain.FieldDateReturned:
		if trimmed == "" {
			return nil, nil
		}
		parsed, err := domain.ParseDate(&trimmed)
		if err != nil {
			return nil, invalidField(string(field), err.Error())
		}
		value := parsed.Format(domain.DateLayout)
		return &value, nil
	default:
		if trimmed == "" {
			return nil, nil
		}
		return &trimmed, nil
	}
}

func optionalText(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func checkActor(ctx context.Context, repos repository.Repositories, actorID *int64) error {
	if actorID == nil {
		return nil
	}
	if _, err := repos.Users.GetByID(ctx, *actorID); err != nil {
		return storeError("user", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || apperrors.HasCode(err, apperrors.CodeNotFound)
}

func removeStoredFiles(ctx context.Context, files storage.FileStorage, logger *zap.Logger, attachments []domain.TicketAttachment) {
	if files == nil {
		return
	}
	for _, a := range attachments {
		if err := files.Remove(ctx, a.StoredFilename); err != nil {
			logger.Warn("failed to remove stored file",
				zap.Int64("attachment_id", a.ID),
				zap.String("stored_filename", a.StoredFilename),
				zap.Error(err))
		}
	}
}
