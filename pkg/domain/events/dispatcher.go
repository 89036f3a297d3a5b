package events

import (
	"context"
	"fmt"
	"sync"
)

// HandlerFunc handles a runtime event.
type HandlerFunc func(ctx context.Context, event Event) error

// Dispatcher fans runtime events out to registered handlers. Dispatch is
// best-effort: every handler runs even when an earlier one fails, and the
// collected errors are returned for logging only. Callers on the broadcast
// path must never propagate them.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
}

type namedHandler struct {
	name    string
	handler HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]namedHandler)}
}

// Register adds a handler for the given event types. The wildcard "*"
// receives every event.
func (d *Dispatcher) Register(name string, handler HandlerFunc, eventTypes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nh := namedHandler{name: name, handler: handler}
	for _, eventType := range eventTypes {
		d.handlers[eventType] = append(d.handlers[eventType], nh)
	}
}

// Publish dispatches an event to all handlers registered for its type plus
// wildcard handlers.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := make([]namedHandler, 0)
	handlers = append(handlers, d.handlers[event.EventType()]...)
	handlers = append(handlers, d.handlers["*"]...)
	d.mu.RUnlock()

	var errs []error
	for _, nh := range handlers {
		if err := nh.handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handler %s failed for event %s: %w", nh.name, event.EventType(), err))
		}
	}
	if len(errs) > 0 {
		return &PublishError{Errors: errs}
	}
	return nil
}

// HasHandlers reports whether any handler would receive the given event type.
func (d *Dispatcher) HasHandlers(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType]) > 0 || len(d.handlers["*"]) > 0
}

// Clear removes all registered handlers.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string][]namedHandler)
}

// PublishError collects handler failures from a single publish.
type PublishError struct {
	Errors []error
}

func (e *PublishError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple publish errors (%d)", len(e.Errors))
}

// Unwrap returns the first error for errors.Is/As support.
func (e *PublishError) Unwrap() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}
