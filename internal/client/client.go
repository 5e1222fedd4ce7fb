package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Amund211/gqlcache/internal/cache"
	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/Amund211/gqlcache/internal/events"
	"github.com/Amund211/gqlcache/internal/graphql"
	"github.com/Amund211/gqlcache/internal/loading"
	"github.com/Amund211/gqlcache/internal/logging"
	"github.com/Amund211/gqlcache/internal/reporting"
	"golang.org/x/sync/singleflight"
)

type Fetcher interface {
	LoadFunc(opts graphql.FetchOptions) loading.LoadFunc
}

// Client loads GraphQL operations into a cache, keeping track of in flight loads
type Client struct {
	cache   *cache.Cache
	loading *loading.Loading
	fetcher Fetcher

	group singleflight.Group
}

func New(c *cache.Cache, l *loading.Loading, fetcher Fetcher) (*Client, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: cache must not be nil", domain.ErrInvalidArgument)
	}
	if l == nil {
		return nil, fmt.Errorf("%w: loading must not be nil", domain.ErrInvalidArgument)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher must not be nil", domain.ErrInvalidArgument)
	}

	return &Client{
		cache:   c,
		loading: l,
		fetcher: fetcher,
	}, nil
}

func (c *Client) Cache() *cache.Cache {
	return c.cache
}

func (c *Client) Loading() *loading.Loading {
	return c.loading
}

// Load always starts a new load for opts. Ending ctx aborts it.
func (c *Client) Load(ctx context.Context, opts graphql.FetchOptions) (*loading.Value, error) {
	key := opts.CacheKey()

	ctx = reporting.WithCacheKey(ctx, key)

	value, err := loading.Start(ctx, c.loading, c.cache, key, c.fetcher.LoadFunc(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to start load: %w", err)
	}
	return value, nil
}

// LoadOnce returns the newest pending, unaborted load for opts, or starts a new one.
// Loads that are already committing are not reused, so set listeners can trigger a reload.
//
// NOTE: Concurrent callers share a single start, which uses the context of the first caller.
// Must not be called for the same key from a loading start listener.
func (c *Client) LoadOnce(ctx context.Context, opts graphql.FetchOptions) (*loading.Value, error) {
	key := opts.CacheKey()

	result, err, _ := c.group.Do(key, func() (any, error) {
		if value := c.inFlight(key); value != nil {
			return value, nil
		}
		return c.Load(ctx, opts)
	})
	if err != nil {
		return nil, err
	}

	value, ok := result.(*loading.Value)
	if !ok {
		panic(fmt.Sprintf("logic error: unexpected result type %T from load group", result))
	}
	return value, nil
}

func (c *Client) inFlight(key string) *loading.Value {
	values := c.loading.Get(key)
	for i := len(values) - 1; i >= 0; i-- {
		if values[i].State() == loading.StatePending && !values[i].Aborted() {
			return values[i]
		}
	}
	return nil
}

// PreventPrune cancels every prune of key until release is called
func (c *Client) PreventPrune(key string) (func(), error) {
	id, err := c.cache.AddListener(key, cache.EventPrune, func(e *events.Event) {
		e.PreventDefault()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add prune listener: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			c.cache.RemoveListener(key, cache.EventPrune, id)
		})
	}
	return release, nil
}

// ReloadOnStale calls LoadOnce for opts whenever its entry is staled, until stop is called
// or ctx ends.
func (c *Client) ReloadOnStale(ctx context.Context, opts graphql.FetchOptions) (func(), error) {
	key := opts.CacheKey()

	id, err := c.cache.AddListener(key, cache.EventStale, func(e *events.Event) {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.LoadOnce(ctx, opts); err != nil {
			err := fmt.Errorf("failed to reload stale entry: %w", err)
			logging.FromContext(ctx).ErrorContext(ctx, err.Error(), slog.String("cacheKey", key))
			reporting.Report(reporting.WithCacheKey(ctx, key), err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add stale listener: %w", err)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			c.cache.RemoveListener(key, cache.EventStale, id)
		})
	}
	return stop, nil
}

// AutoLoad keeps the entry for opts loaded: it loads if the entry is missing, reloads when
// it is staled, and prevents it from being pruned until release is called.
func (c *Client) AutoLoad(ctx context.Context, opts graphql.FetchOptions) (func(), error) {
	key := opts.CacheKey()

	releasePrune, err := c.PreventPrune(key)
	if err != nil {
		return nil, err
	}

	stopReload, err := c.ReloadOnStale(ctx, opts)
	if err != nil {
		releasePrune()
		return nil, err
	}

	release := func() {
		stopReload()
		releasePrune()
	}

	if !c.cache.Has(key) {
		if _, err := c.LoadOnce(ctx, opts); err != nil {
			release()
			return nil, err
		}
	}

	return release, nil
}

// Result returns the cached result for key, if any
func (c *Client) Result(key string) (graphql.Result, bool, error) {
	value, ok := c.cache.Get(key)
	if !ok {
		return graphql.Result{}, false, nil
	}

	result, err := graphql.DecodeResult(value)
	if err != nil {
		return graphql.Result{}, true, fmt.Errorf("failed to decode cached result for %s: %w", key, err)
	}
	return result, true, nil
}
