package webhook

import (
	"context"
	"fmt"
	"sync"
)

// HandlerFunc processes one verified event.
type HandlerFunc func(ctx context.Context, evt *Event) error

// Dispatcher routes events to handlers by type.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Register sets the handler for eventType, replacing any previous one.
func (d *Dispatcher) Register(eventType string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = fn
}

// Handles reports whether a handler is registered for eventType.
func (d *Dispatcher) Handles(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[eventType]
	return ok
}

// Dispatch runs the handler for evt.Type. Unknown types are ignored and
// reported with handled=false.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *Event) (handled bool, err error) {
	d.mu.RLock()
	fn, ok := d.handlers[evt.Type]
	d.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := fn(ctx, evt); err != nil {
		return true, fmt.Errorf("handle %s %s: %w", evt.Type, evt.ID, err)
	}
	return true, nil
}
