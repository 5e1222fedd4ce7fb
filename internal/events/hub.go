package events

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Amund211/gqlcache/internal/domain"
)

type Handler func(event *Event)

type ListenerID uint64

type listener struct {
	id      ListenerID
	handler Handler
}

// Event is passed to every listener of a single dispatch
type Event struct {
	name             string
	detail           any
	cancelable       bool
	defaultPrevented bool
}

func (e *Event) Name() string {
	return e.name
}

func (e *Event) Detail() any {
	return e.detail
}

func (e *Event) Cancelable() bool {
	return e.cancelable
}

// PreventDefault marks a cancelable event as prevented. Has no effect on non-cancelable events.
func (e *Event) PreventDefault() {
	if e.cancelable {
		e.defaultPrevented = true
	}
}

func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Hub is a publish/subscribe table keyed by event name.
//
// Handlers run synchronously on the dispatching goroutine with no hub lock held,
// so they may add or remove listeners and dispatch further events.
type Hub struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners map[string][]listener
	catchAll  []listener
}

func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string][]listener),
	}
}

func (h *Hub) AddListener(name string, handler Handler) (ListenerID, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: event name must not be empty", domain.ErrInvalidArgument)
	}
	if handler == nil {
		return 0, fmt.Errorf("%w: handler must not be nil", domain.ErrInvalidArgument)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.listeners[name] = append(h.listeners[name], listener{id: id, handler: handler})
	return id, nil
}

// RemoveListener reports whether a listener with the given id was registered for name
func (h *Hub) RemoveListener(name string, id ListenerID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.listeners[name]
	if !ok {
		return false
	}

	index := slices.IndexFunc(current, func(l listener) bool { return l.id == id })
	if index == -1 {
		return false
	}

	// Build a new slice so a dispatch iterating the old one is unaffected
	remaining := slices.Delete(slices.Clone(current), index, index+1)
	if len(remaining) == 0 {
		delete(h.listeners, name)
	} else {
		h.listeners[name] = remaining
	}
	return true
}

// AddCatchAllListener registers a handler that observes every event, after the named listeners
func (h *Hub) AddCatchAllListener(handler Handler) (ListenerID, error) {
	if handler == nil {
		return 0, fmt.Errorf("%w: handler must not be nil", domain.ErrInvalidArgument)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.catchAll = append(h.catchAll, listener{id: id, handler: handler})
	return id, nil
}

func (h *Hub) RemoveCatchAllListener(id ListenerID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	index := slices.IndexFunc(h.catchAll, func(l listener) bool { return l.id == id })
	if index == -1 {
		return false
	}
	h.catchAll = slices.Delete(slices.Clone(h.catchAll), index, index+1)
	return true
}

func (h *Hub) ListenerCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[name])
}

// Dispatch calls every listener currently registered for name in registration order.
// Listeners added or removed while dispatching take effect from the next dispatch.
func (h *Hub) Dispatch(name string, detail any, cancelable bool) (*Event, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: event name must not be empty", domain.ErrInvalidArgument)
	}

	h.mu.Lock()
	named := h.listeners[name]
	catchAll := h.catchAll
	h.mu.Unlock()

	event := &Event{
		name:       name,
		detail:     detail,
		cancelable: cancelable,
	}

	for _, l := range named {
		l.handler(event)
	}
	for _, l := range catchAll {
		l.handler(event)
	}

	return event, nil
}
