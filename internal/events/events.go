// Package events is an in-process publish/subscribe bus for domain events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type names a kind of event
type Type string

const (
	CalendarEventCreated Type = "calendar.event_created"
	CalendarEventUpdated Type = "calendar.event_updated"
)

// Event is one published occurrence.
type Event struct {
	ID      string
	Type    Type
	UserID  string
	Time    time.Time
	Payload any
}

// Handler processes an event. Returned errors are logged by the bus.
type Handler func(ctx context.Context, event *Event) error

// Bus delivers events synchronously to the handlers subscribed to their type,
// in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
		logger:   logger,
	}
}

func (b *Bus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed to event", zap.String("event_type", string(eventType)))
}

// Publish runs every handler for eventType and returns the event it built.
// A failing handler does not stop the others.
func (b *Bus) Publish(ctx context.Context, eventType Type, userID string, payload any) *Event {
	event := &Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		UserID:  userID,
		Time:    time.Now().UTC(),
		Payload: payload,
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(eventType)),
				zap.String("user", userID),
				zap.Error(err))
		}
	}
	return event
}
