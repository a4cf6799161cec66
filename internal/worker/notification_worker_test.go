package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-desk/internal/events"
)

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestNotificationWorker_DeliversAndDrains(t *testing.T) {
	rec := &recorder{}
	w := NewNotificationWorker(rec.handle, 8, nil)
	dispatcher := events.NewInMemoryDispatcher(nil)
	w.Subscribe(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: 1}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventAttachmentAdded, TicketID: 1}))
	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	w.Wait()
}

func TestNotificationWorker_QueueFull(t *testing.T) {
	rec := &recorder{}
	w := NewNotificationWorker(rec.handle, 1, nil)

	require.NoError(t, w.Enqueue(context.Background(), events.Event{Type: events.EventTicketUpdated}))
	assert.ErrorIs(t, w.Enqueue(context.Background(), events.Event{Type: events.EventTicketUpdated}), ErrQueueFull)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)
	w.Wait()
	assert.Equal(t, 1, rec.count())
}
