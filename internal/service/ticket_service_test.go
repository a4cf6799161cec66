package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/repository"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

type frozenClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *frozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type testEnv struct {
	store     *repository.MemoryStore
	tickets   *TicketService
	customers *CustomerService
	clock     *frozenClock
	events    []events.Event
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: repository.NewMemoryStore(),
		clock: &frozenClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.SubscribeAll(func(_ context.Context, e events.Event) error {
		env.events = append(env.events, e)
		return nil
	})
	env.tickets = NewTicketService(TicketDependencies{
		Store:      env.store,
		Dispatcher: dispatcher,
		Clock:      env.clock.Now,
	})
	env.customers = NewCustomerService(env.store, nil, nil)
	return env
}

func (env *testEnv) customer(t *testing.T, name string) *domain.Customer {
	t.Helper()
	c, err := env.customers.Create(context.Background(), CustomerInput{Name: name})
	require.NoError(t, err)
	return c
}

func (env *testEnv) user(t *testing.T, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, PasswordHash: "x", Role: domain.RoleUser}
	require.NoError(t, env.store.Repositories().Users.Create(context.Background(), u))
	return u
}

func (env *testEnv) ticket(t *testing.T) *domain.Ticket {
	t.Helper()
	c := env.customer(t, "Rossi")
	ticket, err := env.tickets.Create(context.Background(), TicketCreateInput{CustomerID: c.ID, Subject: "Schermo rotto"}, nil)
	require.NoError(t, err)
	return ticket
}

func (env *testEnv) history(t *testing.T, ticketID int64) []domain.TicketHistoryEntry {
	t.Helper()
	entries, err := env.tickets.History(context.Background(), ticketID)
	require.NoError(t, err)
	return entries
}

func TestTicketCreate_Defaults(t *testing.T) {
	env := newTestEnv(t)
	c := env.customer(t, "Bianchi")
	u := env.user(t, "banco")

	ticket, err := env.tickets.Create(context.Background(), TicketCreateInput{
		CustomerID:  c.ID,
		Subject:     "  Batteria  ",
		Description: strPtr("   "),
		Product:     strPtr("Pixel 7"),
	}, &u.ID)
	require.NoError(t, err)

	assert.Equal(t, "Batteria", ticket.Subject)
	assert.Nil(t, ticket.Description)
	assert.Equal(t, "Pixel 7", *ticket.Product)
	assert.Equal(t, domain.TicketStatusAccepted, ticket.Status)
	assert.Equal(t, domain.RepairStatusDiagnosed, ticket.RepairStatus)
	assert.Equal(t, env.clock.now, ticket.CreatedAt)
	assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)
	assert.Equal(t, u.ID, *ticket.CreatedBy)
	assert.Empty(t, env.history(t, ticket.ID))

	require.Len(t, env.events, 1)
	assert.Equal(t, events.EventTicketCreated, env.events[0].Type)
	assert.Equal(t, ticket.ID, env.events[0].TicketID)
}

func TestTicketCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	c := env.customer(t, "Verdi")

	tests := []struct {
		name  string
		input TicketCreateInput
		code  string
	}{
		{"empty subject", TicketCreateInput{CustomerID: c.ID, Subject: "  "}, apperrors.CodeValidation},
		{"missing customer", TicketCreateInput{CustomerID: 9999, Subject: "x"}, apperrors.CodeValidation},
		{"unknown status", TicketCreateInput{CustomerID: c.ID, Subject: "x", Status: "lost"}, apperrors.CodeInvalidTransition},
		{"unknown repair status", TicketCreateInput{CustomerID: c.ID, Subject: "x", RepairStatus: "boh"}, apperrors.CodeInvalidTransition},
		{"bad date", TicketCreateInput{CustomerID: c.ID, Subject: "x", DateReceived: strPtr("01/02/2024")}, apperrors.CodeValidation},
		{"dates out of order", TicketCreateInput{CustomerID: c.ID, Subject: "x", DateReceived: strPtr("2024-02-10"), DateReturned: strPtr("2024-02-01")}, apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tickets.Create(context.Background(), tt.input, nil)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), err.Error())
		})
	}

	legacy, err := env.tickets.Create(context.Background(), TicketCreateInput{CustomerID: c.ID, Subject: "x", Status: "Aperto", RepairStatus: "pronta"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAccepted, legacy.Status)
	assert.Equal(t, domain.RepairStatusCompleted, legacy.RepairStatus)
}

func TestTicketUpdate_OneHistoryRowPerChangedField(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	u := env.user(t, "tecnico")
	env.clock.now = env.clock.now.Add(time.Hour)

	updated, changes, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{
		Subject:      strPtr("Schermo rotto"), // unchanged
		Status:       strPtr("preventivo"),
		RepairStatus: strPtr("preventivo_pronto"),
		Product:      strPtr("iPhone 12"),
		DateReceived: strPtr("2024-03-01"),
	}, &u.ID)
	require.NoError(t, err)
	require.Len(t, changes, 4)
	assert.True(t, updated.UpdatedAt.After(ticket.UpdatedAt))
	assert.Equal(t, u.ID, *updated.LastModifiedBy)

	history := env.history(t, ticket.ID)
	require.Len(t, history, 4)
	expected := []struct {
		field    domain.TicketField
		old, new *string
	}{
		{domain.FieldStatus, strPtr("accettazione"), strPtr("preventivo")},
		{domain.FieldRepairStatus, strPtr("diagnosticato"), strPtr("preventivo_pronto")},
		{domain.FieldProduct, nil, strPtr("iPhone 12")},
		{domain.FieldDateReceived, nil, strPtr("2024-03-01")},
	}
	for i, want := range expected {
		assert.Equal(t, want.field, history[i].Field)
		assert.Equal(t, want.old, history[i].OldValue)
		assert.Equal(t, want.new, history[i].NewValue)
		assert.Equal(t, u.ID, *history[i].ChangedBy)
		assert.Equal(t, updated.UpdatedAt, history[i].ChangedAt)
	}

	stored, err := env.tickets.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusQuote, stored.Status)
	assert.Equal(t, "2024-03-01", stored.DateReceived.Format(domain.DateLayout))
}

func TestTicketUpdate_LegacyAliasesNormalize(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	_, _, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{Status: strPtr("preventivo")}, nil)
	require.NoError(t, err)

	updated, changes, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{
		Status:       strPtr("open"),
		RepairStatus: strPtr("pronta"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAccepted, updated.Status)
	assert.Equal(t, domain.RepairStatusCompleted, updated.RepairStatus)
	require.Len(t, changes, 2)
	assert.Equal(t, "accettazione", *changes[0].NewValue)
	assert.Equal(t, "intervento_completato", *changes[1].NewValue)
}

func TestTicketUpdate_AnyCanonicalTransitionAllowed(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	for _, status := range []string{"chiuso", "accettazione", "riparato", "preventivo"} {
		updated, _, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{Status: strPtr(status)}, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatus(status), updated.Status)
	}
	assert.Len(t, env.history(t, ticket.ID), 4)
}

func TestTicketUpdate_NoChangeKeepsUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	env.clock.now = env.clock.now.Add(time.Hour)
	env.events = nil

	updated, changes, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{
		Subject: strPtr(" Schermo rotto "),
		Status:  strPtr("aperto"),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, ticket.UpdatedAt, updated.UpdatedAt)
	assert.Empty(t, env.history(t, ticket.ID))
	assert.Empty(t, env.events)
}

func TestTicketUpdate_UpdatedAtStrictlyIncreasesWithFrozenClock(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	prev := ticket.UpdatedAt
	for _, subject := range []string{"a", "b", "c"} {
		updated, _, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{Subject: strPtr(subject)}, nil)
		require.NoError(t, err)
		assert.True(t, updated.UpdatedAt.After(prev))
		prev = updated.UpdatedAt
	}
}

func TestTicketUpdate_ClearAndDates(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	_, _, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{
		PaymentInfo:  strPtr("contanti"),
		DateReceived: strPtr("2024-03-01"),
		DateRepaired: strPtr("2024-03-05"),
	}, nil)
	require.NoError(t, err)

	_, _, err = env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{DateReturned: strPtr("2024-03-02")}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	updated, changes, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{
		PaymentInfo:  strPtr(""),
		DateRepaired: strPtr(""),
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.PaymentInfo)
	assert.Nil(t, updated.DateRepaired)
	require.Len(t, changes, 2)
	assert.Nil(t, changes[0].NewValue)
	assert.Equal(t, "2024-03-05", *changes[1].OldValue)
}

func TestTicketUpdate_Errors(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	missingUser := int64(777)

	tests := []struct {
		name  string
		id    int64
		patch TicketUpdate
		actor *int64
		code  string
	}{
		{"missing ticket", 9999, TicketUpdate{Subject: strPtr("x")}, nil, apperrors.CodeNotFound},
		{"unknown status", ticket.ID, TicketUpdate{Status: strPtr("in_attesa")}, nil, apperrors.CodeInvalidTransition},
		{"empty status", ticket.ID, TicketUpdate{Status: strPtr(" ")}, nil, apperrors.CodeInvalidTransition},
		{"unknown repair status", ticket.ID, TicketUpdate{RepairStatus: strPtr("rotto")}, nil, apperrors.CodeInvalidTransition},
		{"empty subject", ticket.ID, TicketUpdate{Subject: strPtr("")}, nil, apperrors.CodeValidation},
		{"unknown actor", ticket.ID, TicketUpdate{Subject: strPtr("y")}, &missingUser, apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.tickets.Update(context.Background(), tt.id, tt.patch, tt.actor)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), err.Error())
		})
	}

	stored, err := env.tickets.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Subject, stored.Subject)
	assert.Equal(t, ticket.UpdatedAt, stored.UpdatedAt)
	assert.Empty(t, env.history(t, ticket.ID))
}

// failingHistoryStore fails every history write inside transactions.
type failingHistoryStore struct {
	*repository.MemoryStore
}

type failingHistory struct {
	repository.TicketHistoryRepository
}

func (failingHistory) Create(context.Context, *domain.TicketHistoryEntry) error {
	return errors.New("disk full")
}

func (s failingHistoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return s.MemoryStore.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.History = failingHistory{repos.History}
		return fn(ctx, repos)
	})
}

func TestTicketUpdate_HistoryFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)

	failing := NewTicketService(TicketDependencies{Store: failingHistoryStore{env.store}, Clock: env.clock.Now})
	_, _, err := failing.Update(context.Background(), ticket.ID, TicketUpdate{
		Subject: strPtr("nuovo"),
		Status:  strPtr("chiuso"),
	}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	stored, err := env.tickets.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Schermo rotto", stored.Subject)
	assert.Equal(t, domain.TicketStatusAccepted, stored.Status)
	assert.Equal(t, ticket.UpdatedAt, stored.UpdatedAt)
	assert.Empty(t, env.history(t, ticket.ID))
}

func TestTicketDelete_CascadesButKeepsCustomer(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	_, _, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{Status: strPtr("chiuso")}, nil)
	require.NoError(t, err)

	require.NoError(t, env.tickets.Delete(context.Background(), ticket.ID, nil))

	_, err = env.tickets.Get(context.Background(), ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = env.tickets.History(context.Background(), ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	entries, err := env.store.Repositories().History.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = env.customers.Get(context.Background(), ticket.CustomerID)
	assert.NoError(t, err)

	err = env.tickets.Delete(context.Background(), ticket.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestTicketList_FiltersWithLegacyAliases(t *testing.T) {
	env := newTestEnv(t)
	first := env.ticket(t)
	second := env.ticket(t)
	_, _, err := env.tickets.Update(context.Background(), second.ID, TicketUpdate{Status: strPtr("chiuso")}, nil)
	require.NoError(t, err)

	closed, err := env.tickets.List(context.Background(), TicketListFilter{Statuses: []string{"closed"}})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, second.ID, closed[0].ID)

	open, err := env.tickets.List(context.Background(), TicketListFilter{Statuses: []string{"open"}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)

	search, err := env.tickets.List(context.Background(), TicketListFilter{Search: "SCHERMO"})
	require.NoError(t, err)
	assert.Len(t, search, 2)
}

func TestTicketList_UnknownStatusFilter(t *testing.T) {
	env := newTestEnv(t)
	env.ticket(t)

	_, err := env.tickets.List(context.Background(), TicketListFilter{Statuses: []string{"boh"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = env.tickets.List(context.Background(), TicketListFilter{RepairStatuses: []string{"pronta", "smarrita"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

type failingDispatcher struct{}

func (failingDispatcher) Publish(context.Context, events.Event) error {
	return errors.New("dispatcher closed")
}

func (failingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (failingDispatcher) SubscribeAll(events.EventHandler) {}

func TestTicketCreate_PublishFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := repository.NewMemoryStore()
	customers := NewCustomerService(store, nil, nil)
	tickets := NewTicketService(TicketDependencies{
		Store:      store,
		Dispatcher: failingDispatcher{},
		Logger:     zap.New(core),
	})

	c, err := customers.Create(context.Background(), CustomerInput{Name: "Bianchi"})
	require.NoError(t, err)
	ticket, err := tickets.Create(context.Background(), TicketCreateInput{CustomerID: c.ID, Subject: "Tastiera"}, nil)
	require.NoError(t, err)

	entries := logs.FilterMessage("event publish failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(events.EventTicketCreated), entries[0].ContextMap()["event_type"])
	assert.NotZero(t, ticket.ID)
}
