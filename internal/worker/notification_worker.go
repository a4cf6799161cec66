package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/events"
)

// ErrQueueFull is returned to the dispatcher when the buffer is saturated; the event is dropped.
var ErrQueueFull = errors.New("notification queue full")

const handleTimeout = 5 * time.Second

// NotificationWorker moves event delivery off the request path.
type NotificationWorker struct {
	handle events.EventHandler
	queue  chan events.Event
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewNotificationWorker buffers up to size events for handle.
func NewNotificationWorker(handle events.EventHandler, size int, logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		handle: handle,
		queue:  make(chan events.Event, size),
		logger: logger,
	}
}

// Subscribe registers the worker's queue for every event type.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(w.Enqueue)
}

// Enqueue never blocks.
func (w *NotificationWorker) Enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the delivery loop until ctx is cancelled, then drains what is queued.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case event := <-w.queue:
				w.deliver(context.WithoutCancel(ctx), event)
			case <-ctx.Done():
				w.drain(context.WithoutCancel(ctx))
				return
			}
		}
	}()
}

// Wait blocks until the loop started by Start has returned.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) drain(ctx context.Context) {
	for {
		select {
		case event := <-w.queue:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	if err := w.handle(ctx, event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
