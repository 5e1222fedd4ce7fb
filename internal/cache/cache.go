package cache

import (
	"bytes"
	"container/list"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/Amund211/gqlcache/internal/events"
)

type EventType string

const (
	EventSet    EventType = "set"
	EventDelete EventType = "delete"
	EventStale  EventType = "stale"
	EventPrune  EventType = "prune"
)

// EventName returns the name of the event of the given type for a cache key, "<key>/<type>"
func EventName(key string, eventType EventType) string {
	return key + "/" + string(eventType)
}

// ParseEventName splits an event name into cache key and event type.
// Keys may themselves contain "/", so the name is split at the last one.
func ParseEventName(name string) (string, EventType, bool) {
	index := strings.LastIndexByte(name, '/')
	if index == -1 {
		return "", "", false
	}
	return name[:index], EventType(name[index+1:]), true
}

type entry struct {
	key   string
	value any
}

// Cache is an observable store of request results keyed by cache key.
//
// Entries must only be mutated through the entry operations (SetEntry, DeleteEntry, ...)
// so that every mutation emits its event.
type Cache struct {
	mu      sync.RWMutex
	order   *list.List
	entries map[string]*list.Element

	hub *events.Hub
}

func NewCache() *Cache {
	return &Cache{
		order:   list.New(),
		entries: make(map[string]*list.Element),
		hub:     events.NewHub(),
	}
}

// NewCacheFromMap creates a cache holding the given entries, inserted in sorted key order
func NewCacheFromMap(store map[string]any) (*Cache, error) {
	c := NewCache()

	keys := make([]string, 0, len(store))
	for key := range store {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
		if err := validateValue(store[key]); err != nil {
			return nil, err
		}
		c.put(key, store[key])
	}

	return c, nil
}

// NewCacheFromJSON hydrates a cache from a serialized store, as produced by MarshalJSON.
// Key order is preserved and values are kept as json.RawMessage.
func NewCacheFromJSON(data []byte) (*Cache, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))

	token, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read cache store: %w", domain.ErrInvalidArgument, err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: cache store must be a JSON object", domain.ErrInvalidArgument)
	}

	c := NewCache()
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read cache key: %w", domain.ErrInvalidArgument, err)
		}
		key, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("%w: cache key must be a string", domain.ErrInvalidArgument)
		}
		if err := validateKey(key); err != nil {
			return nil, err
		}

		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: failed to read value for cache key %s: %w", domain.ErrInvalidArgument, key, err)
		}
		c.put(key, value)
	}

	if _, err := decoder.Token(); err != nil {
		return nil, fmt.Errorf("%w: failed to read end of cache store: %w", domain.ErrInvalidArgument, err)
	}

	return c, nil
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	element, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return element.Value.(*entry).value, true
}

func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[key]
	return ok
}

// Keys returns the cache keys in insertion order
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, c.order.Len())
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*entry).key)
	}
	return keys
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// MarshalJSON serializes the store as a JSON object keyed by cache key, in insertion order
func (c *Cache) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for element := c.order.Front(); element != nil; element = element.Next() {
		e := element.Value.(*entry)

		key, err := json.Marshal(e.key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cache key %s: %w", e.key, err)
		}
		value, err := json.Marshal(e.value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value for cache key %s: %w", e.key, err)
		}

		if element != c.order.Front() {
			buf.WriteByte(',')
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (c *Cache) Hub() *events.Hub {
	return c.hub
}

func (c *Cache) AddListener(key string, eventType EventType, handler events.Handler) (events.ListenerID, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	return c.hub.AddListener(EventName(key, eventType), handler)
}

func (c *Cache) RemoveListener(key string, eventType EventType, id events.ListenerID) bool {
	return c.hub.RemoveListener(EventName(key, eventType), id)
}

// put overwrites the value for key, keeping the position of existing keys
func (c *Cache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		element.Value.(*entry).value = value
		return
	}
	c.entries[key] = c.order.PushBack(&entry{key: key, value: value})
}

func (c *Cache) remove(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	delete(c.entries, key)
	c.order.Remove(element)
	return element.Value.(*entry).value, true
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: cache key must not be empty", domain.ErrInvalidArgument)
	}
	return nil
}

func validateValue(value any) error {
	if _, err := json.Marshal(value); err != nil {
		return fmt.Errorf("%w: cache value must be JSON serializable: %w", domain.ErrInvalidArgument, err)
	}
	return nil
}

func validateCache(c *Cache) error {
	if c == nil {
		return fmt.Errorf("%w: cache must not be nil", domain.ErrInvalidArgument)
	}
	return nil
}
