package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/suggestion"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

func (env *testEnv) legacyTicket(t *testing.T, status, repairStatus string) *domain.Ticket {
	t.Helper()
	c := env.customer(t, "Legacy")
	ticket := &domain.Ticket{
		CustomerID:   c.ID,
		Subject:      "Importato",
		Status:       domain.TicketStatus(status),
		RepairStatus: domain.RepairStatus(repairStatus),
		CreatedAt:    env.clock.now,
		UpdatedAt:    env.clock.now,
	}
	require.NoError(t, env.store.Repositories().Tickets.Create(context.Background(), ticket))
	return ticket
}

func TestMaintenance_NormalizeStatuses(t *testing.T) {
	env := newTestEnv(t)
	maintenance := NewMaintenanceService(env.store, env.tickets, env.customers, nil)
	ctx := context.Background()

	canonical := env.ticket(t)
	legacy := env.legacyTicket(t, "open", "pronta")
	partial := env.legacyTicket(t, "closed", "boh")

	report, err := maintenance.NormalizeStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Normalized)
	assert.Equal(t, []UnresolvedStatus{{TicketID: partial.ID, Field: domain.FieldRepairStatus, Value: "boh"}}, report.Unresolved)

	got, err := env.tickets.Get(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAccepted, got.Status)
	assert.Equal(t, domain.RepairStatusCompleted, got.RepairStatus)

	history := env.history(t, legacy.ID)
	require.Len(t, history, 2)
	assert.Equal(t, "open", *history[0].OldValue)
	assert.Equal(t, "accettazione", *history[0].NewValue)
	assert.Nil(t, history[0].ChangedBy)

	got, err = env.tickets.Get(ctx, partial.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, got.Status)
	assert.Equal(t, domain.RepairStatus("boh"), got.RepairStatus)

	assert.Empty(t, env.history(t, canonical.ID))

	again, err := maintenance.NormalizeStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Scanned)
	assert.Zero(t, again.Normalized)
	assert.Len(t, again.Unresolved, 1)
}

type recordingPublisher struct {
	channel  string
	messages [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.messages = append(p.messages, message.([]byte))
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func TestNotification_PublishesEventJSON(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	publisher := &recordingPublisher{}
	notifications := NewNotificationService(dispatcher, publisher, nil, config.NotificationConfig{Channel: "desk:events"})
	notifications.RegisterHandlers()

	env := newTestEnv(t)
	env.tickets = NewTicketService(TicketDependencies{Store: env.store, Dispatcher: dispatcher, Clock: env.clock.Now})
	ticket := env.ticket(t)
	_, _, err := env.tickets.Update(context.Background(), ticket.ID, TicketUpdate{Status: strPtr("chiuso")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "desk:events", publisher.channel)
	require.Len(t, publisher.messages, 2)

	var decoded struct {
		ID       string           `json:"id"`
		Type     events.EventType `json:"type"`
		TicketID int64            `json:"ticket_id"`
	}
	require.NoError(t, json.Unmarshal(publisher.messages[1], &decoded))
	assert.Equal(t, events.EventTicketUpdated, decoded.Type)
	assert.Equal(t, ticket.ID, decoded.TicketID)
	assert.NotEmpty(t, decoded.ID)
}

func TestNotification_WithoutPublisherOnlyLogs(t *testing.T) {
	notifications := NewNotificationService(nil, nil, nil, config.NotificationConfig{Channel: "desk:events"})
	notifications.RegisterHandlers()
	assert.NoError(t, notifications.Handle(context.Background(), events.Event{Type: events.EventTicketDeleted}))
}

func TestSuggestion_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	svc := NewSuggestionService(env.store, suggestion.New(suggestion.Config{}, nil), nil)

	_, err := svc.Suggest(context.Background(), ticket.ID, "", "mario")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotConfigured))
}

func TestSuggestion_TargetsAndMissingTicket(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	svc := NewSuggestionService(env.store, suggestion.New(suggestion.Config{}, nil), nil)

	_, err := svc.Suggest(context.Background(), ticket.ID, "status", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = svc.Suggest(context.Background(), 9999, "product", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSuggestion_ProviderFailureLeavesTicketUntouched(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.ticket(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	svc := NewSuggestionService(env.store, suggestion.New(suggestion.Config{Endpoint: server.URL, Timeout: time.Second}, nil), nil)
	_, err := svc.Suggest(context.Background(), ticket.ID, "issue_description", "mario")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstream))

	stored, err := env.tickets.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.UpdatedAt, stored.UpdatedAt)
	assert.Empty(t, env.history(t, ticket.ID))
}

func TestSuggestion_Success(t *testing.T) {
	env := newTestEnv(t)
	c := env.customer(t, "Ricci")
	ticket, err := env.tickets.Create(context.Background(), TicketCreateInput{
		CustomerID:       c.ID,
		Subject:          "Non si accende",
		Product:          strPtr("MacBook Air"),
		IssueDescription: strPtr("caduto in acqua"),
	}, nil)
	require.NoError(t, err)

	var received suggestion.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"suggestion":"Verificare ossidazione scheda logica"}`))
	}))
	t.Cleanup(server.Close)

	svc := NewSuggestionService(env.store, suggestion.New(suggestion.Config{Endpoint: server.URL}, nil), nil)
	resp, err := svc.Suggest(context.Background(), ticket.ID, "", "mario")
	require.NoError(t, err)
	assert.Equal(t, "Verificare ossidazione scheda logica", resp.Suggestion)
	assert.Equal(t, "issue_description", received.Target)
	assert.Equal(t, "MacBook Air", received.Product)
	assert.Equal(t, "caduto in acqua", received.IssueDescription)
	assert.Equal(t, "mario", received.RequestedBy)
}

func TestDashboard_Summary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ticket(t)
	closed := env.ticket(t)
	_, _, err := env.tickets.Update(ctx, closed.ID, TicketUpdate{Status: strPtr("chiuso")}, nil)
	require.NoError(t, err)

	inventory := NewInventoryService(env.store, nil)
	_, err = inventory.Create(ctx, InventoryInput{Code: "A", Name: "A", Quantity: 0, MinimumQuantity: 1})
	require.NoError(t, err)

	summary, err := NewDashboardService(env.store).Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Customers)
	assert.Equal(t, 2, summary.Tickets)
	assert.Equal(t, 1, summary.LowStockItems)
	assert.Equal(t, map[string]int{
		"accettazione": 1,
		"preventivo":   0,
		"riparato":     0,
		"chiuso":       1,
	}, summary.TicketsByStatus)
}
