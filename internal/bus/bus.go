package bus

import (
	"log/slog"
	"slices"
	"sync"

	"joyrelay/internal/domain"
)

// Dispatcher is an in-process event bus. Handlers run synchronously on the
// emitting goroutine, in registration order.
type Dispatcher struct {
	handlers map[domain.EventType][]func(domain.Event)
	mu       sync.RWMutex
	logger   *slog.Logger
}

// New creates an empty Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.EventType][]func(domain.Event)),
		logger:   logger,
	}
}

// On registers handler for events of type t.
func (d *Dispatcher) On(t domain.EventType, handler func(domain.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], handler)
}

// Emit delivers evt to every handler registered for its type. A panicking
// handler is logged and does not stop the others.
func (d *Dispatcher) Emit(evt domain.Event) {
	d.mu.RLock()
	handlers := slices.Clone(d.handlers[evt.Type])
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.Debug("no handler registered for event", "type", evt.Type)
		return
	}
	for _, h := range handlers {
		d.dispatch(h, evt)
	}
}

func (d *Dispatcher) dispatch(h func(domain.Event), evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", "type", evt.Type, "panic", r)
		}
	}()
	h(evt)
}
