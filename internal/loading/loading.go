package loading

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/Amund211/gqlcache/internal/events"
)

type EventType string

const (
	// Emitted when a key goes from no loads in flight to one
	EventStart EventType = "start"
	// Emitted when the last load in flight for a key ends
	EventEnd EventType = "end"
)

func EventName(key string, eventType EventType) string {
	return key + "/" + string(eventType)
}

// Loading tracks the loads currently in flight for each cache key
type Loading struct {
	mu    sync.Mutex
	store map[string][]*Value

	hub *events.Hub
}

func NewLoading() *Loading {
	return &Loading{
		store: make(map[string][]*Value),
		hub:   events.NewHub(),
	}
}

func (l *Loading) Register(key string, value *Value) error {
	if err := validate(key, value); err != nil {
		return err
	}

	l.mu.Lock()
	current := l.store[key]
	if slices.Contains(current, value) {
		l.mu.Unlock()
		return nil
	}
	l.store[key] = append(current, value)
	started := len(current) == 0
	l.mu.Unlock()

	if started {
		if _, err := l.hub.Dispatch(EventName(key, EventStart), value, false); err != nil {
			return fmt.Errorf("failed to dispatch start event: %w", err)
		}
	}
	return nil
}

// Unregister removes value from the loads in flight for key, reporting whether it was registered
func (l *Loading) Unregister(key string, value *Value) (bool, error) {
	if err := validate(key, value); err != nil {
		return false, err
	}

	l.mu.Lock()
	current := l.store[key]
	index := slices.Index(current, value)
	if index == -1 {
		l.mu.Unlock()
		return false, nil
	}
	remaining := slices.Delete(slices.Clone(current), index, index+1)
	ended := len(remaining) == 0
	if ended {
		delete(l.store, key)
	} else {
		l.store[key] = remaining
	}
	l.mu.Unlock()

	if ended {
		if _, err := l.hub.Dispatch(EventName(key, EventEnd), value, false); err != nil {
			return true, fmt.Errorf("failed to dispatch end event: %w", err)
		}
	}
	return true, nil
}

// Get returns the loads in flight for key in the order they started, or nil if there are none
func (l *Loading) Get(key string) []*Value {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.store[key])
}

func (l *Loading) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.store))
	for key := range l.store {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func (l *Loading) Hub() *events.Hub {
	return l.hub
}

func (l *Loading) AddListener(key string, eventType EventType, handler events.Handler) (events.ListenerID, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: cache key must not be empty", domain.ErrInvalidArgument)
	}
	return l.hub.AddListener(EventName(key, eventType), handler)
}

func (l *Loading) RemoveListener(key string, eventType EventType, id events.ListenerID) bool {
	return l.hub.RemoveListener(EventName(key, eventType), id)
}

func validate(key string, value *Value) error {
	if key == "" {
		return fmt.Errorf("%w: cache key must not be empty", domain.ErrInvalidArgument)
	}
	if value == nil {
		return fmt.Errorf("%w: loading value must not be nil", domain.ErrInvalidArgument)
	}
	return nil
}
