package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// HandlerFunc is a function that handles an event.
type HandlerFunc func(ctx context.Context, event Event) error

// EventBus is an asynchronous publish-subscribe bus. Emit never blocks the
// caller: the lobby runs on a single event-loop goroutine and observers
// (telemetry, API) must not stall it.
type EventBus struct {
	mu        sync.RWMutex
	sessionID string
	handlers  map[EventType][]handlerEntry
	stopped   bool
	wg        sync.WaitGroup
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewEventBus creates a bus that stamps every event with sessionID.
func NewEventBus(sessionID string) *EventBus {
	return &EventBus{
		sessionID: sessionID,
		handlers:  make(map[EventType][]handlerEntry),
	}
}

// Subscribe registers a handler for eventType, or for every event when
// eventType is AllEvents. The name identifies the handler in logs and to
// Unsubscribe.
func (eb *EventBus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handlerEntry{
		name:    name,
		handler: handler,
	})

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// Unsubscribe removes the handler registered under name for eventType.
func (eb *EventBus) Unsubscribe(eventType EventType, name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	handlers, exists := eb.handlers[eventType]
	if !exists {
		return
	}

	filtered := make([]handlerEntry, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	eb.handlers[eventType] = filtered
}

// Emit publishes an event to all subscribed handlers asynchronously.
// A nil bus discards the event.
func (eb *EventBus) Emit(ctx context.Context, eventType EventType, payload interface{}) {
	if eb == nil || eventType == AllEvents {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.stopped {
		return
	}

	handlers := eb.handlers[eventType]
	wildcard := eb.handlers[AllEvents]
	if len(handlers) == 0 && len(wildcard) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		SessionID: eb.sessionID,
		Time:      time.Now(),
		Payload:   payload,
	}

	log.Trace().
		Str("event", string(event.Type)).
		Int("handlers", len(handlers)+len(wildcard)).
		Msg("emitting event")

	for _, h := range handlers {
		eb.dispatch(ctx, h, event)
	}
	for _, h := range wildcard {
		eb.dispatch(ctx, h, event)
	}
}

func (eb *EventBus) dispatch(ctx context.Context, h handlerEntry, event Event) {
	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("event", string(event.Type)).
					Str("handler", h.name).
					Interface("panic", r).
					Msg("handler panicked")
			}
		}()

		if err := h.handler(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Msg("handler returned error")
		}
	}()
}

// SessionID returns the id stamped on every event.
func (eb *EventBus) SessionID() string {
	return eb.sessionID
}

// Stop stops accepting new events and waits for in-flight handlers.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	eb.stopped = true
	eb.mu.Unlock()

	eb.wg.Wait()
	log.Debug().Msg("event bus stopped")
}

// handlerCount returns how many handlers an event of eventType reaches.
func (eb *EventBus) handlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	n := len(eb.handlers[eventType])
	if eventType != AllEvents {
		n += len(eb.handlers[AllEvents])
	}
	return n
}
