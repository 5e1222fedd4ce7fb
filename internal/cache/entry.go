package cache

import (
	"context"
	"fmt"

	"github.com/Amund211/gqlcache/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func (c *Cache) emit(key string, eventType EventType, detail any, cancelable bool) (bool, error) {
	event, err := c.hub.Dispatch(EventName(key, eventType), detail, cancelable)
	if err != nil {
		return false, fmt.Errorf("failed to dispatch %s event: %w", eventType, err)
	}

	metrics.eventCount.Add(
		context.Background(),
		1,
		metric.WithAttributes(
			attribute.String("event_type", string(eventType)),
			attribute.Bool("default_prevented", event.DefaultPrevented()),
		),
	)

	return event.DefaultPrevented(), nil
}

// SetEntry stores value for key, overwriting any existing value, then emits "<key>/set"
func SetEntry(c *Cache, key string, value any) error {
	if err := validateCache(c); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	c.put(key, value)

	_, err := c.emit(key, EventSet, value, false)
	return err
}

// DeleteEntry removes key from the cache and emits "<key>/delete". No-op if key is absent.
func DeleteEntry(c *Cache, key string) error {
	if err := validateCache(c); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	value, ok := c.remove(key)
	if !ok {
		return nil
	}

	_, err := c.emit(key, EventDelete, value, false)
	return err
}

// StaleEntry emits "<key>/stale" to signal that the entry should be reloaded.
// The entry is kept so it stays visible while reloading.
func StaleEntry(c *Cache, key string) error {
	if err := validateCache(c); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	value, ok := c.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, key)
	}

	_, err := c.emit(key, EventStale, value, false)
	return err
}

// PruneEntry emits the cancelable "<key>/prune" and deletes the entry unless a listener
// prevented it. No-op if key is absent.
func PruneEntry(c *Cache, key string) error {
	if err := validateCache(c); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	value, ok := c.Get(key)
	if !ok {
		return nil
	}

	prevented, err := c.emit(key, EventPrune, value, true)
	if err != nil {
		return err
	}
	if prevented {
		return nil
	}

	return DeleteEntry(c, key)
}
