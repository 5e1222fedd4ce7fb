package loading

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Amund211/gqlcache/internal/cache"
	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/Amund211/gqlcache/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LoadFunc performs the underlying asynchronous operation and returns the value to store
// in the cache. Failures must be encoded in the returned value.
//
// ctx is canceled when the load is aborted. Stopping promptly is up to the LoadFunc.
type LoadFunc func(ctx context.Context) any

type State int

const (
	StatePending State = iota
	// StateCommitting is held while the result is stored and set listeners run
	StateCommitting
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Value is a single load in flight for a cache key
type Value struct {
	loading   *Loading
	cache     *cache.Cache
	cacheKey  string
	startedAt time.Time

	signal <-chan struct{}
	abort  context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  State
	result any
}

// Start registers a new load for cacheKey and runs it in the background.
//
// When load returns, the result is stored in the cache unless the load was aborted, either
// through Abort or through ctx ending. The value unregisters from loading in both cases.
func Start(ctx context.Context, l *Loading, c *cache.Cache, cacheKey string, load LoadFunc) (*Value, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: loading must not be nil", domain.ErrInvalidArgument)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: cache must not be nil", domain.ErrInvalidArgument)
	}
	if cacheKey == "" {
		return nil, fmt.Errorf("%w: cache key must not be empty", domain.ErrInvalidArgument)
	}
	if load == nil {
		return nil, fmt.Errorf("%w: load must not be nil", domain.ErrInvalidArgument)
	}

	ctx = logging.AddMetaToContext(ctx, slog.String("cacheKey", cacheKey))
	loadCtx, abort := context.WithCancel(ctx)

	v := &Value{
		loading:   l,
		cache:     c,
		cacheKey:  cacheKey,
		startedAt: time.Now(),

		signal: loadCtx.Done(),
		abort:  abort,
		done:   make(chan struct{}),

		state: StatePending,
	}

	if err := l.Register(cacheKey, v); err != nil {
		abort()
		return nil, fmt.Errorf("failed to register load: %w", err)
	}
	metrics.inFlight.Add(ctx, 1)

	logging.FromContext(ctx).InfoContext(ctx, "Load started")

	go v.run(loadCtx, load)

	return v, nil
}

func (v *Value) run(ctx context.Context, load LoadFunc) {
	result := load(ctx)
	v.settle(ctx, result)
}

func (v *Value) settle(ctx context.Context, result any) {
	logger := logging.FromContext(ctx)

	state := StateAborted
	if !v.signalFired() {
		state = StateCommitted

		v.mu.Lock()
		v.state = StateCommitting
		v.mu.Unlock()

		if err := cache.SetEntry(v.cache, v.cacheKey, result); err != nil {
			// The result is still available through Wait
			logger.ErrorContext(ctx, "Failed to store load result", slog.String("error", err.Error()))
		}
	}

	v.mu.Lock()
	v.state = state
	v.result = result
	v.mu.Unlock()

	if _, err := v.loading.Unregister(v.cacheKey, v); err != nil {
		logger.ErrorContext(ctx, "Failed to unregister load", slog.String("error", err.Error()))
	}

	// Release the context resources. The state is already decided.
	v.abort()
	close(v.done)

	// Metrics and logs must not be suppressed by the abort
	reportCtx := context.WithoutCancel(ctx)
	attributes := metric.WithAttributes(attribute.String("state", state.String()))
	metrics.inFlight.Add(reportCtx, -1)
	metrics.duration.Record(reportCtx, time.Since(v.startedAt).Seconds(), attributes)

	logger.InfoContext(
		reportCtx,
		"Load settled",
		slog.String("state", state.String()),
		slog.String("duration", time.Since(v.startedAt).String()),
	)
}

func (v *Value) CacheKey() string {
	return v.cacheKey
}

func (v *Value) StartedAt() time.Time {
	return v.startedAt
}

// Abort signals the load to stop and prevents its result from being stored in the cache.
// Has no effect once the load is committing.
func (v *Value) Abort() {
	v.abort()
}

// Aborted reports whether the load was aborted, or is pending with its abort signal fired
func (v *Value) Aborted() bool {
	if state := v.State(); state != StatePending {
		return state == StateAborted
	}
	return v.signalFired()
}

func (v *Value) signalFired() bool {
	select {
	case <-v.signal:
		return true
	default:
		return false
	}
}

func (v *Value) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Done is closed when the load has settled
func (v *Value) Done() <-chan struct{} {
	return v.done
}

// Wait blocks until the load settles and returns its result, also for aborted loads
func (v *Value) Wait(ctx context.Context) (any, error) {
	select {
	case <-v.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result, nil
}
