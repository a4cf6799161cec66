package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/events"
)

// eventPublisher fills event identity fields and dispatches after commit. Failures are
// logged and never reach the caller.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (p eventPublisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil && p.logger != nil {
		p.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func actor(userID *int64) events.Actor {
	return events.Actor{UserID: userID}
}
