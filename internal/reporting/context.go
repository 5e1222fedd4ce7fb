package reporting

import (
	"context"
	"time"
)

type metaContextKey struct{}

// Meta describes the operation an error is reported from
type Meta struct {
	operation string
	cacheKey  string
	startedAt time.Time
}

func MetaFromContext(ctx context.Context) Meta {
	meta, _ := ctx.Value(metaContextKey{}).(Meta)
	return meta
}

func (m Meta) Operation() string {
	return m.operation
}

func (m Meta) CacheKey() string {
	return m.cacheKey
}

func (m Meta) StartedAt() time.Time {
	return m.startedAt
}

func updateMeta(ctx context.Context, update func(meta *Meta)) context.Context {
	meta := MetaFromContext(ctx)
	update(&meta)
	return context.WithValue(ctx, metaContextKey{}, meta)
}

// WithCacheKey marks errors reported with ctx as concerning the entry for key
func WithCacheKey(ctx context.Context, key string) context.Context {
	return updateMeta(ctx, func(meta *Meta) {
		meta.cacheKey = key
	})
}

func startOperation(ctx context.Context, operation string, startedAt time.Time) context.Context {
	return updateMeta(ctx, func(meta *Meta) {
		meta.operation = operation
		meta.startedAt = startedAt
	})
}
