package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/ports"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const defaultLoadTimeout = 5 * time.Second

type cacheEntry struct {
	set favorites.FavoriteSet
	// overrides holds pairs changed locally whose mutation has not settled.
	overrides map[string]bool
	// gen is bumped by Invalidate; a load that started under an older gen is discarded.
	gen      uint64
	loaded   bool
	lastSeen time.Time
}

// FavoriteCache holds the best-known favorite set per user session.
// Only the SyncEngine writes to it; everything else reads.
type FavoriteCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry

	loader      ports.FavoriteLister
	group       singleflight.Group
	loadTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewFavoriteCache(loader ports.FavoriteLister, logger *slog.Logger, loadTimeout time.Duration) *FavoriteCache {
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &FavoriteCache{
		entries:     make(map[string]*cacheEntry),
		loader:      loader,
		loadTimeout: loadTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

func anonymousSet() favorites.FavoriteSet {
	s := favorites.NewFavoriteSet("")
	s.Freshness = favorites.Fresh
	return s
}

// Open creates the user's entry as Unloaded if it does not exist yet.
func (c *FavoriteCache) Open(userID string) {
	if userID == "" {
		return
	}
	c.mu.Lock()
	c.entryLocked(userID)
	c.mu.Unlock()
}

// Close destroys the user's entry.
func (c *FavoriteCache) Close(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	c.group.Forget(userID)
}

func (c *FavoriteCache) entryLocked(userID string) *cacheEntry {
	e, ok := c.entries[userID]
	if !ok {
		e = &cacheEntry{
			set:       favorites.NewFavoriteSet(userID),
			overrides: make(map[string]bool),
		}
		c.entries[userID] = e
	}
	e.lastSeen = c.now()
	return e
}

// Get returns a copy of the cached set. An Unloaded or Stale set starts a
// background load and is returned as is; callers must treat it as provisional.
func (c *FavoriteCache) Get(ctx context.Context, userID string) favorites.FavoriteSet {
	if userID == "" {
		return anonymousSet()
	}

	c.mu.Lock()
	e := c.entryLocked(userID)
	start := e.set.Freshness == favorites.Unloaded || e.set.Freshness == favorites.Stale
	if start {
		e.set.Freshness = favorites.Loading
	}
	snap := e.set.Clone()
	c.mu.Unlock()

	if start {
		// DoChan's result channel is buffered; nobody has to read it.
		c.group.DoChan(userID, func() (any, error) {
			return c.load(ctx, userID)
		})
	}
	return snap
}

// Load hydrates the user's set and waits for the result. Concurrent loads for
// one user share a single store call. A Fresh set is returned without I/O.
func (c *FavoriteCache) Load(ctx context.Context, userID string) (favorites.FavoriteSet, error) {
	if userID == "" {
		return anonymousSet(), nil
	}

	ctx, span := tracer.Start(ctx, "FavoriteCache.Load", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	c.mu.Lock()
	e := c.entryLocked(userID)
	if e.set.Freshness == favorites.Fresh {
		snap := e.set.Clone()
		c.mu.Unlock()
		return snap, nil
	}
	e.set.Freshness = favorites.Loading
	c.mu.Unlock()

	ch := c.group.DoChan(userID, func() (any, error) {
		return c.load(ctx, userID)
	})

	select {
	case <-ctx.Done():
		return c.Peek(userID), ctx.Err()
	case res := <-ch:
		set := res.Val.(favorites.FavoriteSet)
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		return set.Clone(), res.Err
	}
}

func (c *FavoriteCache) load(ctx context.Context, userID string) (favorites.FavoriteSet, error) {
	c.mu.Lock()
	e, ok := c.entries[userID]
	if !ok {
		c.mu.Unlock()
		return favorites.NewFavoriteSet(userID), nil
	}
	gen := e.gen
	c.mu.Unlock()

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
	ids, err := c.loader.List(lctx, userID)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok = c.entries[userID]
	if !ok {
		// session ended while loading
		return favorites.NewFavoriteSet(userID, ids...), err
	}

	if err != nil {
		if e.loaded {
			e.set.Freshness = favorites.Stale
		} else {
			e.set.Freshness = favorites.Unloaded
		}
		c.logger.ErrorContext(ctx, "failed to load favorites", "user_id", userID, "error", err)
		return e.set.Clone(), err
	}

	if e.gen != gen {
		e.set.Freshness = favorites.Stale
		c.logger.DebugContext(ctx, "discarding favorites load invalidated mid-flight", "user_id", userID)
		return e.set.Clone(), nil
	}

	next := favorites.NewFavoriteSet(userID, ids...)
	for listingID, member := range e.overrides {
		next.Apply(listingID, favorites.Toward(member))
	}
	next.Freshness = favorites.Fresh
	e.set = next
	e.loaded = true
	return e.set.Clone(), nil
}

// Peek returns a copy of the cached set without touching its lifecycle.
func (c *FavoriteCache) Peek(userID string) favorites.FavoriteSet {
	if userID == "" {
		return anonymousSet()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[userID]; ok {
		return e.set.Clone()
	}
	return favorites.NewFavoriteSet(userID)
}

// IsFavorite is a pure lookup; it never blocks on I/O.
func (c *FavoriteCache) IsFavorite(userID, listingID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	return ok && e.set.Contains(listingID)
}

// ApplyLocal adds or removes listingID and pins it against incoming loads
// until Release is called.
func (c *FavoriteCache) ApplyLocal(userID, listingID string, dir favorites.Direction) {
	if userID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		return
	}
	e.set.Apply(listingID, dir)
	e.overrides[listingID] = dir.Member()
	e.lastSeen = c.now()
}

// Release unpins a pair once its mutation has settled.
func (c *FavoriteCache) Release(userID, listingID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[userID]; ok {
		delete(e.overrides, listingID)
	}
}

// Invalidate marks the set Stale so the next Get refetches it.
func (c *FavoriteCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		return
	}
	e.gen++
	if e.set.Freshness != favorites.Unloaded {
		e.set.Freshness = favorites.Stale
	}
}

// Sweep drops entries idle for longer than idle. Entries that are loading or
// whose user is busy are kept. It returns the number of dropped entries.
func (c *FavoriteCache) Sweep(idle time.Duration, busy func(userID string) bool) int {
	cutoff := c.now().Add(-idle)

	c.mu.Lock()
	var dropped []string
	for userID, e := range c.entries {
		if e.lastSeen.After(cutoff) || e.set.Freshness == favorites.Loading {
			continue
		}
		if busy != nil && busy(userID) {
			continue
		}
		delete(c.entries, userID)
		dropped = append(dropped, userID)
	}
	c.mu.Unlock()

	for _, userID := range dropped {
		c.group.Forget(userID)
	}
	return len(dropped)
}

// Len is the number of open sessions.
func (c *FavoriteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
