package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Amund211/gqlcache/internal/cache"
	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/Amund211/gqlcache/internal/events"
	"github.com/Amund211/gqlcache/internal/logging"
	"github.com/Amund211/gqlcache/internal/reporting"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Action int

const (
	// ActionPrune prunes expired entries, unless the prune is prevented
	ActionPrune Action = iota
	// ActionStale marks expired entries as stale so they are reloaded
	ActionStale
)

func (a Action) String() string {
	switch a {
	case ActionPrune:
		return "prune"
	case ActionStale:
		return "stale"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Expirer applies an action to cache entries that have not been set for ttl
type Expirer struct {
	cache  *cache.Cache
	action Action

	entries       *ttlcache.Cache[string, struct{}]
	sweepInterval time.Duration
	stop          chan struct{}

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	stopped     bool
	listenerID  events.ListenerID
	unsubscribe func()
	janitor     sync.WaitGroup
	actions     sync.WaitGroup
}

func NewExpirer(c *cache.Cache, ttl time.Duration, action Action) (*Expirer, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: cache must not be nil", domain.ErrInvalidArgument)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive, got %s", domain.ErrInvalidArgument, ttl)
	}
	if action != ActionPrune && action != ActionStale {
		return nil, fmt.Errorf("%w: unknown action %s", domain.ErrInvalidArgument, action)
	}

	entries := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	return &Expirer{
		cache:         c,
		action:        action,
		entries:       entries,
		sweepInterval: max(ttl/4, time.Millisecond),
		stop:          make(chan struct{}),
		ctx:           context.Background(),
	}, nil
}

// Start arms every entry currently in the cache and begins tracking set and delete events.
// ctx carries the logger used when acting on expired entries.
func (e *Expirer) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started || e.stopped {
		return nil
	}

	id, err := e.cache.Hub().AddCatchAllListener(e.handleEvent)
	if err != nil {
		return fmt.Errorf("failed to add cache listener: %w", err)
	}

	e.ctx = ctx
	e.listenerID = id
	e.unsubscribe = e.entries.OnEviction(e.handleEviction)
	e.started = true

	for _, key := range e.cache.Keys() {
		e.arm(key)
	}

	e.janitor.Go(e.sweep)

	return nil
}

// Stop detaches from the cache and waits for running actions to finish
func (e *Expirer) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.stopped = true
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	e.cache.Hub().RemoveCatchAllListener(e.listenerID)
	close(e.stop)
	e.janitor.Wait()
	e.unsubscribe()
	e.actions.Wait()
}

// Tracked returns the keys currently armed for expiry
func (e *Expirer) Tracked() []string {
	return e.entries.Keys()
}

// sweep evicts expired entries until Stop is called
func (e *Expirer) sweep() {
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.entries.DeleteExpired()
		case <-e.stop:
			return
		}
	}
}

func (e *Expirer) arm(key string) {
	e.entries.Set(key, struct{}{}, ttlcache.DefaultTTL)
}

func (e *Expirer) handleEvent(event *events.Event) {
	key, eventType, ok := cache.ParseEventName(event.Name())
	if !ok {
		return
	}

	switch eventType {
	case cache.EventSet:
		e.arm(key)
	case cache.EventDelete:
		e.entries.Delete(key)
	}
}

func (e *Expirer) handleEviction(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, struct{}]) {
	if reason != ttlcache.EvictionReasonExpired {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	key := item.Key()
	ctx := e.ctx

	// The action emits cache events we listen to, which call back into ttlcache
	e.actions.Go(func() {
		e.expire(ctx, key)
	})
}

func (e *Expirer) expire(ctx context.Context, key string) {
	logger := logging.FromContext(ctx).With(slog.String("cacheKey", key), slog.String("action", e.action.String()))

	var err error
	prevented := false
	switch e.action {
	case ActionPrune:
		err = cache.PruneEntry(e.cache, key)
		if err == nil && e.cache.Has(key) {
			prevented = true
			e.arm(key)
		}
	case ActionStale:
		err = cache.StaleEntry(e.cache, key)
		if errors.Is(err, domain.ErrEntryNotFound) {
			err = nil
		}
	}

	metrics.expiredCount.Add(
		ctx,
		1,
		metric.WithAttributes(
			attribute.String("action", e.action.String()),
			attribute.Bool("prevented", prevented),
		),
	)

	if err != nil {
		err := fmt.Errorf("failed to %s expired entry: %w", e.action, err)
		logger.ErrorContext(ctx, err.Error())
		reporting.Report(reporting.WithCacheKey(ctx, key), err)
		return
	}

	logger.InfoContext(ctx, "Entry expired", slog.Bool("prevented", prevented))
}
