package observability

import (
	"context"

	"go-marketplace/internal/core/ports"
)

// InstrumentedIDSetCache is a decorator to intercept cache calls and record metrics.
type InstrumentedIDSetCache struct {
	inner ports.IDSetCache
}

var _ ports.IDSetCache = (*InstrumentedIDSetCache)(nil)

// NewInstrumentedIDSetCache creates a new instrumented cache wrapper.
func NewInstrumentedIDSetCache(inner ports.IDSetCache) *InstrumentedIDSetCache {
	return &InstrumentedIDSetCache{inner: inner}
}

func (c *InstrumentedIDSetCache) Members(ctx context.Context, userID string) ([]string, bool, error) {
	ids, found, err := c.inner.Members(ctx, userID)
	if err == nil {
		if found {
			cacheHits.Inc()
		} else {
			cacheMisses.Inc()
		}
	}
	return ids, found, err
}

func (c *InstrumentedIDSetCache) Replace(ctx context.Context, userID string, ids []string) error {
	return c.inner.Replace(ctx, userID, ids)
}

func (c *InstrumentedIDSetCache) Drop(ctx context.Context, userID string) error {
	return c.inner.Drop(ctx, userID)
}
