package cache_test

import (
	"testing"

	"github.com/Amund211/gqlcache/internal/cache"
	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/Amund211/gqlcache/internal/events"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	name   string
	detail any
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) names() []string {
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.name)
	}
	return names
}

func newRecorder(t *testing.T, c *cache.Cache) *eventRecorder {
	t.Helper()

	recorder := &eventRecorder{}
	_, err := c.Hub().AddCatchAllListener(func(e *events.Event) {
		recorder.events = append(recorder.events, recordedEvent{name: e.Name(), detail: e.Detail()})
	})
	require.NoError(t, err)
	return recorder
}

func newCache(t *testing.T, store map[string]any) *cache.Cache {
	t.Helper()

	c, err := cache.NewCacheFromMap(store)
	require.NoError(t, err)
	return c
}

func TestSetEntry(t *testing.T) {
	t.Parallel()

	t.Run("set then get", func(t *testing.T) {
		t.Parallel()

		for _, value := range []any{1, "two", nil, []any{1, "x"}, map[string]any{"data": map[string]any{"a": true}}} {
			c := cache.NewCache()
			recorder := newRecorder(t, c)

			err := cache.SetEntry(c, "a", value)
			require.NoError(t, err)

			got, ok := c.Get("a")
			require.True(t, ok)
			require.Equal(t, value, got)

			require.Equal(t, []recordedEvent{{name: "a/set", detail: value}}, recorder.events)
		}
	})

	t.Run("overwrite keeps position", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, map[string]any{"a": 1, "b": 2})

		err := cache.SetEntry(c, "a", 3)
		require.NoError(t, err)

		require.Equal(t, []string{"a", "b"}, c.Keys())
		value, ok := c.Get("a")
		require.True(t, ok)
		require.Equal(t, 3, value)
	})

	t.Run("listener observes the new value", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, map[string]any{"a": 1})
		var observed any
		_, err := c.AddListener("a", cache.EventSet, func(e *events.Event) {
			observed, _ = c.Get("a")
		})
		require.NoError(t, err)

		err = cache.SetEntry(c, "a", 2)
		require.NoError(t, err)
		require.Equal(t, 2, observed)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()

		c := cache.NewCache()
		recorder := newRecorder(t, c)

		err := cache.SetEntry(nil, "a", 1)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)

		err = cache.SetEntry(c, "", 1)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)

		err = cache.SetEntry(c, "a", make(chan int))
		require.ErrorIs(t, err, domain.ErrInvalidArgument)

		require.Equal(t, 0, c.Len())
		require.Empty(t, recorder.events)
	})
}

func TestDeleteEntry(t *testing.T) {
	t.Parallel()

	t.Run("present key", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, map[string]any{"a": 1, "b": 2})
		recorder := newRecorder(t, c)

		err := cache.DeleteEntry(c, "a")
		require.NoError(t, err)

		require.False(t, c.Has("a"))
		require.Equal(t, []string{"b"}, c.Keys())
		require.Equal(t, []recordedEvent{{name: "a/delete", detail: 1}}, recorder.events)
	})

	t.Run("absent key is a no-op", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, map[string]any{"b": 2})
		recorder := newRecorder(t, c)

		err := cache.DeleteEntry(c, "a")
		require.NoError(t, err)

		require.Equal(t, []string{"b"}, c.Keys())
		require.Empty(t, recorder.events)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()

		require.ErrorIs(t, cache.DeleteEntry(nil, "a"), domain.ErrInvalidArgument)
		require.ErrorIs(t, cache.DeleteEntry(cache.NewCache(), ""), domain.ErrInvalidArgument)
	})
}

func TestStaleEntry(t *testing.T) {
	t.Parallel()

	t.Run("present key is kept", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, map[string]any{"a": 1})
		recorder := newRecorder(t, c)

		err := cache.StaleEntry(c, "a")
		require.NoError(t, err)

		value, ok := c.Get("a")
		require.True(t, ok)
		require.Equal(t, 1, value)
		require.Equal(t, []recordedEvent{{name: "a/stale", detail: 1}}, recorder.events)
	})

	t.Run("absent key fails", func(t *testing.T) {
		t.Parallel()

		c := cache.NewCache()
		recorder := newRecorder(t, c)

		err := cache.StaleEntry(c, "a")
		require.ErrorIs(t, err, domain.ErrEntryNotFound)
		require.Empty(t, recorder.events)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()

		require.ErrorIs(t, cache.StaleEntry(nil, "a"), domain.ErrInvalidArgument)
		require.ErrorIs(t, cache.StaleEntry(cache.NewCache(), ""), domain.ErrInvalidArgument)
	})
}

func TestPruneEntry(t *testing.T) {
	t.Parallel()

	t.Run("not prevented", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, map[string]any{"a": 1})
		recorder := newRecorder(t, c)

		err := cache.PruneEntry(c, "a")
		require.NoError(t, err)

		require.False(t, c.Has("a"))
		require.Equal(t, []string{"a/prune", "a/delete"}, recorder.names())
	})

	t.Run("prevented", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, map[string]any{"a": 1})
		_, err := c.AddListener("a", cache.EventPrune, func(e *events.Event) { e.PreventDefault() })
		require.NoError(t, err)
		recorder := newRecorder(t, c)

		err = cache.PruneEntry(c, "a")
		require.NoError(t, err)

		value, ok := c.Get("a")
		require.True(t, ok)
		require.Equal(t, 1, value)
		require.Equal(t, []string{"a/prune"}, recorder.names())
	})

	t.Run("prevention of another key has no effect", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, map[string]any{"a": 1, "b": 2})
		_, err := c.AddListener("b", cache.EventPrune, func(e *events.Event) { e.PreventDefault() })
		require.NoError(t, err)

		err = cache.PruneEntry(c, "a")
		require.NoError(t, err)
		require.Equal(t, []string{"b"}, c.Keys())
	})

	t.Run("absent key is a no-op", func(t *testing.T) {
		t.Parallel()

		c := cache.NewCache()
		recorder := newRecorder(t, c)

		err := cache.PruneEntry(c, "a")
		require.NoError(t, err)
		require.Empty(t, recorder.events)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()

		require.ErrorIs(t, cache.PruneEntry(nil, "a"), domain.ErrInvalidArgument)
		require.ErrorIs(t, cache.PruneEntry(cache.NewCache(), ""), domain.ErrInvalidArgument)
	})
}
