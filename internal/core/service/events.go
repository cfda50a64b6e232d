package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/logging"
	"github.com/comings/prepaid-api/internal/metrics"
	"github.com/comings/prepaid-api/internal/port"
)

var ErrDispatcherClosed = errors.New("event dispatcher closed")

// EventDispatcher queues events for the worker pool and fans each one out
// to every registered handler.
type EventDispatcher struct {
	queue    chan domain.Event
	handlers []port.EventHandler
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
}

func NewEventDispatcher(queueSize int, logger *slog.Logger, handlers ...port.EventHandler) *EventDispatcher {
	return &EventDispatcher{
		queue:    make(chan domain.Event, queueSize),
		handlers: handlers,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish blocks until the event is queued or ctx is done.
func (d *EventDispatcher) Publish(ctx context.Context, event domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.RecordEventDropped()
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- event:
		return nil
	case <-ctx.Done():
		metrics.RecordEventDropped()
		return ctx.Err()
	}
}

func (d *EventDispatcher) Queue() <-chan domain.Event {
	return d.queue
}

// Handle runs every handler; a failing handler does not stop the others.
func (d *EventDispatcher) Handle(ctx context.Context, event domain.Event) {
	for _, h := range d.handlers {
		if err := h.Handle(ctx, event); err != nil {
			metrics.RecordEventFailure(string(event.Type))
			d.logger.Error("event handler failed",
				"type", event.Type,
				"shop_id", logging.ShortID(event.ShopID),
				"error", err,
			)
		}
	}
}

func (d *EventDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
}

func publish(ctx context.Context, p port.EventPublisher, logger *slog.Logger, event domain.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.Warn("event not queued",
			"type", event.Type,
			"shop_id", logging.ShortID(event.ShopID),
			"error", err,
		)
	}
}
