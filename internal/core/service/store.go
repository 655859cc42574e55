package service

import (
	"context"
	"log/slog"
	"sync"

	"go-marketplace/internal/core/ports"
)

// CachedStore puts a shared id-set cache in front of a FavoriteStore.
// Reads go through the cache; writes go to the store and then drop the
// user's cached set. Cache failures are logged and never fail the call.
type CachedStore struct {
	store  ports.FavoriteStore
	cache  ports.IDSetCache
	logger *slog.Logger

	// mu orders cache fills against write invalidations; writes bumps on
	// every store write so a fill that raced one is skipped.
	mu     sync.Mutex
	writes uint64
}

var _ ports.FavoriteStore = (*CachedStore)(nil)

func NewCachedStore(store ports.FavoriteStore, cache ports.IDSetCache, logger *slog.Logger) *CachedStore {
	return &CachedStore{store: store, cache: cache, logger: logger}
}

func (s *CachedStore) List(ctx context.Context, userID string) ([]string, error) {
	ids, found, err := s.cache.Members(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "favorite id cache read failed, falling back to store", "user_id", userID, "error", err)
	} else if found {
		return ids, nil
	}

	s.mu.Lock()
	before := s.writes
	s.mu.Unlock()

	ids, err = s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writes != before {
		s.logger.DebugContext(ctx, "skipping favorite id cache fill after concurrent write", "user_id", userID)
		return ids, nil
	}
	if err := s.cache.Replace(ctx, userID, ids); err != nil {
		s.logger.WarnContext(ctx, "failed to fill favorite id cache", "user_id", userID, "error", err)
	}
	return ids, nil
}

func (s *CachedStore) Insert(ctx context.Context, userID, listingID string) error {
	err := s.store.Insert(ctx, userID, listingID)
	s.drop(ctx, userID)
	return err
}

func (s *CachedStore) Delete(ctx context.Context, userID, listingID string) error {
	err := s.store.Delete(ctx, userID, listingID)
	s.drop(ctx, userID)
	return err
}

// drop runs after every write, failed ones included: a timed-out write may
// still have committed.
func (s *CachedStore) drop(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if err := s.cache.Drop(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to invalidate favorite id cache", "user_id", userID, "error", err)
	}
}
