package observability

import (
	"context"
	"time"

	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/ports"
)

// InstrumentedStore times every favorite store call.
type InstrumentedStore struct {
	inner ports.FavoriteStore
}

var _ ports.FavoriteStore = (*InstrumentedStore)(nil)

func NewInstrumentedStore(inner ports.FavoriteStore) *InstrumentedStore {
	return &InstrumentedStore{inner: inner}
}

func (s *InstrumentedStore) List(ctx context.Context, userID string) (ids []string, err error) {
	start := time.Now()
	defer func() { observeStore("list", start, err) }()
	return s.inner.List(ctx, userID)
}

func (s *InstrumentedStore) Insert(ctx context.Context, userID, listingID string) (err error) {
	start := time.Now()
	defer func() { observeStore("insert", start, err) }()
	return s.inner.Insert(ctx, userID, listingID)
}

func (s *InstrumentedStore) Delete(ctx context.Context, userID, listingID string) (err error) {
	start := time.Now()
	defer func() { observeStore("delete", start, err) }()
	return s.inner.Delete(ctx, userID, listingID)
}

func observeStore(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case favorites.IsConflict(err):
		result = "conflict"
	default:
		result = "error"
	}
	storeOps.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

// InstrumentedSync counts toggle outcomes and their latency.
type InstrumentedSync struct {
	ports.FavoriteSync
}

func NewInstrumentedSync(inner ports.FavoriteSync) *InstrumentedSync {
	return &InstrumentedSync{FavoriteSync: inner}
}

func (s *InstrumentedSync) Toggle(ctx context.Context, userID, listingID string) favorites.Outcome {
	return s.observe(func() favorites.Outcome {
		return s.FavoriteSync.Toggle(ctx, userID, listingID)
	})
}

func (s *InstrumentedSync) SetFavorite(ctx context.Context, userID, listingID string, dir favorites.Direction) favorites.Outcome {
	return s.observe(func() favorites.Outcome {
		return s.FavoriteSync.SetFavorite(ctx, userID, listingID, dir)
	})
}

func (s *InstrumentedSync) observe(fn func() favorites.Outcome) favorites.Outcome {
	togglesInFlight.Inc()
	start := time.Now()
	outcome := fn()
	togglesInFlight.Dec()
	toggleLatency.Observe(time.Since(start).Seconds())
	toggleOutcomes.WithLabelValues(outcome.Kind()).Inc()
	return outcome
}
