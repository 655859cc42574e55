package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/ports"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultMutationTimeout = 10 * time.Second

// flight is the chain of store mutations for one pair. Only the goroutine
// that created it runs the chain; others attach and wait on done.
type flight struct {
	pending favorites.PendingToggle
	// want is the membership the latest caller asked for. The chain settles
	// against it, not against the cache, which EndSession may have dropped.
	want       bool
	superseded bool
	joined     int
	done       chan struct{}
	outcome    favorites.Outcome
}

// SyncEngine turns toggle intents into optimistic cache changes and store
// mutations, reconciling the cache when the store answers.
type SyncEngine struct {
	cache           *FavoriteCache
	store           ports.FavoriteStore
	logger          *slog.Logger
	mutationTimeout time.Duration

	mu       sync.Mutex
	inflight map[favorites.Pair]*flight
}

var _ ports.FavoriteSync = (*SyncEngine)(nil)

func NewSyncEngine(cache *FavoriteCache, store ports.FavoriteStore, logger *slog.Logger, mutationTimeout time.Duration) *SyncEngine {
	if mutationTimeout <= 0 {
		mutationTimeout = defaultMutationTimeout
	}
	return &SyncEngine{
		cache:           cache,
		store:           store,
		logger:          logger,
		mutationTimeout: mutationTimeout,
		inflight:        make(map[favorites.Pair]*flight),
	}
}

// Toggle flips the pair's favorite state. The direction is decided against
// the cache, which is loaded from the store first if it never was.
func (e *SyncEngine) Toggle(ctx context.Context, userID, listingID string) favorites.Outcome {
	return e.submit(ctx, favorites.Pair{UserID: userID, ListingID: listingID}, 0)
}

// SetFavorite moves the pair toward an explicit direction. A request that
// matches the intent of an in-flight toggle is coalesced into it.
func (e *SyncEngine) SetFavorite(ctx context.Context, userID, listingID string, dir favorites.Direction) favorites.Outcome {
	if dir != favorites.Add && dir != favorites.Remove {
		return favorites.RolledBack{
			Favorite: e.cache.IsFavorite(userID, listingID),
			Reason:   fmt.Errorf("%w: unknown direction %d", favorites.ErrValidation, dir),
		}
	}
	return e.submit(ctx, favorites.Pair{UserID: userID, ListingID: listingID}, dir)
}

func (e *SyncEngine) submit(ctx context.Context, p favorites.Pair, dir favorites.Direction) favorites.Outcome {
	ctx, span := tracer.Start(ctx, "SyncEngine.Toggle", trace.WithAttributes(
		attribute.String("user.id", p.UserID),
		attribute.String("listing.id", p.ListingID),
	))
	defer span.End()

	if p.UserID == "" {
		span.SetAttributes(attribute.String("outcome", "auth_required"))
		return favorites.AuthRequired{}
	}
	if p.ListingID == "" {
		return favorites.RolledBack{Reason: fmt.Errorf("%w: listing id is required", favorites.ErrValidation)}
	}

	e.cache.Open(p.UserID)
	e.hydrate(ctx, p.UserID)

	e.mu.Lock()
	f, inflight := e.inflight[p]
	member := e.cache.IsFavorite(p.UserID, p.ListingID)
	if inflight {
		member = f.want
	}
	if dir == 0 {
		dir = favorites.Flip(member)
	}

	if inflight {
		f.joined++
		if dir.Member() == f.want {
			e.mu.Unlock()
			e.logger.DebugContext(ctx, "toggle coalesced", "user_id", p.UserID, "listing_id", p.ListingID, "direction", dir.String())
			return e.wait(ctx, f)
		}
		f.want = dir.Member()
		f.superseded = true
		e.cache.ApplyLocal(p.UserID, p.ListingID, dir)
		e.mu.Unlock()
		e.logger.DebugContext(ctx, "toggle superseded in-flight mutation", "user_id", p.UserID, "listing_id", p.ListingID, "direction", dir.String())
		return e.wait(ctx, f)
	}

	f = &flight{
		pending: favorites.NewPendingToggle(p, dir, e.cache.Peek(p.UserID)),
		want:    dir.Member(),
		done:    make(chan struct{}),
	}
	e.cache.ApplyLocal(p.UserID, p.ListingID, dir)
	e.inflight[p] = f
	e.mu.Unlock()

	e.run(ctx, f)

	span.SetAttributes(attribute.String("outcome", f.outcome.Kind()))
	return f.outcome
}

// hydrate waits for the first load of the user's set so the direction of a
// toggle is decided against the store's state. The load is bounded by the
// cache's load timeout; on failure the toggle proceeds on the cached set.
func (e *SyncEngine) hydrate(ctx context.Context, userID string) {
	switch e.cache.Peek(userID).Freshness {
	case favorites.Unloaded, favorites.Loading:
	default:
		return
	}
	if _, err := e.cache.Load(ctx, userID); err != nil {
		e.logger.WarnContext(ctx, "toggling on an unloaded favorite set", "user_id", userID, "error", err)
	}
}

// wait blocks until the chain settles. A caller that gives up gets the
// optimistic state it leaves behind; the chain itself keeps running.
func (e *SyncEngine) wait(ctx context.Context, f *flight) favorites.Outcome {
	select {
	case <-f.done:
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("outcome", f.outcome.Kind()))
		return f.outcome
	case <-ctx.Done():
		e.mu.Lock()
		want := f.want
		e.mu.Unlock()
		return favorites.RolledBack{Favorite: want, Reason: ctx.Err()}
	}
}

// run drives the pair's chain until no superseding intent is left, then
// settles it. Exactly one store call is made per step.
func (e *SyncEngine) run(ctx context.Context, f *flight) {
	for {
		pt := f.pending
		err := e.mutate(ctx, pt)

		e.mu.Lock()
		confirmed := pt.Direction.Member()
		if err != nil {
			confirmed = pt.PreviousMember()
		}

		if f.superseded {
			f.superseded = false
			prev := e.cache.Peek(pt.UserID)
			prev.Apply(pt.ListingID, favorites.Toward(confirmed))
			next := favorites.NewPendingToggle(pt.Pair, favorites.Toward(f.want), prev)
			if !next.Noop() {
				f.pending = next
				e.mu.Unlock()
				continue
			}
			f.outcome = favorites.Committed{Favorite: f.want}
		} else if err != nil {
			e.cache.ApplyLocal(pt.UserID, pt.ListingID, pt.Rollback())
			f.outcome = favorites.RolledBack{Favorite: pt.PreviousMember(), Reason: err}
		} else {
			f.outcome = favorites.Committed{Favorite: pt.Direction.Member()}
		}

		e.cache.Release(pt.UserID, pt.ListingID)
		delete(e.inflight, pt.Pair)
		callers := f.joined + 1
		e.mu.Unlock()

		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("toggle.callers", callers))
		e.logger.DebugContext(ctx, "favorite change settled",
			"user_id", pt.UserID, "listing_id", pt.ListingID, "outcome", f.outcome.Kind(), "callers", callers)

		e.cache.Invalidate(pt.UserID)
		close(f.done)
		return
	}
}

// mutate issues one store call. Duplicate inserts and missing deletes are
// success. The call is detached from the caller's cancellation.
func (e *SyncEngine) mutate(ctx context.Context, pt favorites.PendingToggle) error {
	ctx, span := tracer.Start(ctx, "SyncEngine.mutate", trace.WithAttributes(
		attribute.String("direction", pt.Direction.String()),
	))
	defer span.End()

	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.mutationTimeout)
	defer cancel()

	var err error
	switch pt.Direction {
	case favorites.Add:
		err = e.store.Insert(mctx, pt.UserID, pt.ListingID)
	case favorites.Remove:
		err = e.store.Delete(mctx, pt.UserID, pt.ListingID)
	default:
		err = fmt.Errorf("%w: unknown direction %d", favorites.ErrValidation, pt.Direction)
	}

	if err == nil {
		return nil
	}
	if favorites.IsConflict(err) {
		e.logger.DebugContext(ctx, "favorite already in requested state", "user_id", pt.UserID, "listing_id", pt.ListingID, "error", err)
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "store mutation failed")
	e.logger.WarnContext(ctx, "favorite mutation failed, rolling back",
		"user_id", pt.UserID, "listing_id", pt.ListingID, "direction", pt.Direction.String(), "error", err)
	if errors.Is(err, favorites.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %w", favorites.ErrRemoteUnavailable, err)
}

// IsFavorite reads the optimistic state.
func (e *SyncEngine) IsFavorite(userID, listingID string) bool {
	return e.cache.IsFavorite(userID, listingID)
}

// Favorites returns the cached set, starting a background load when needed.
func (e *SyncEngine) Favorites(ctx context.Context, userID string) favorites.FavoriteSet {
	return e.cache.Get(ctx, userID)
}

// Hydrate waits until the user's set has been loaded from the store.
func (e *SyncEngine) Hydrate(ctx context.Context, userID string) (favorites.FavoriteSet, error) {
	return e.cache.Load(ctx, userID)
}

// OpenSession creates the user's cache entry as Unloaded; the first read loads it.
func (e *SyncEngine) OpenSession(userID string) {
	e.cache.Open(userID)
}

// EndSession drops the user's cache entry. Mutations still in flight settle
// against the store but no longer touch the cache.
func (e *SyncEngine) EndSession(userID string) {
	e.cache.Close(userID)
}

// Pending is the number of pairs with a mutation in flight.
func (e *SyncEngine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight)
}

// Sweep drops idle sessions that have nothing in flight.
func (e *SyncEngine) Sweep(idle time.Duration) int {
	e.mu.Lock()
	busy := make(map[string]struct{}, len(e.inflight))
	for p := range e.inflight {
		busy[p.UserID] = struct{}{}
	}
	e.mu.Unlock()

	return e.cache.Sweep(idle, func(userID string) bool {
		_, ok := busy[userID]
		return ok
	})
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (e *SyncEngine) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.Sweep(idle); n > 0 {
				e.logger.Info("dropped idle favorite sessions", "count", n)
			}
		}
	}
}
