package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcher_DeliversToSubscribersOfType(t *testing.T) {
	d := NewInMemoryDispatcher(nil)

	var got []string
	d.SubscribeAll(func(_ context.Context, e Event) error {
		got = append(got, "all:"+string(e.Type))
		return nil
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "first:"+string(e.Type))
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "second:"+string(e.Type))
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(_ context.Context, e Event) error {
		got = append(got, "deleted")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:ticket_created", "second:ticket_created", "all:ticket_created"}, got)
}

func TestDispatcher_HandlerPanicIsContained(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	delivered := false
	d.Subscribe(EventAttachmentAdded, func(context.Context, Event) error {
		panic("disk on fire")
	})
	d.SubscribeAll(func(context.Context, Event) error {
		delivered = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{ID: "e1", Type: EventAttachmentAdded, TicketID: 3}))
	assert.True(t, delivered)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].ContextMap()["error"], "disk on fire")
}

func TestDispatcher_RejectsUntypedEvent(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	called := false
	d.SubscribeAll(func(context.Context, Event) error {
		called = true
		return nil
	})

	assert.Error(t, d.Publish(context.Background(), Event{TicketID: 1}))
	assert.False(t, called)
}
