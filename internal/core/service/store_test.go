package service

import (
	"context"
	"errors"
	"testing"

	"go-marketplace/internal/core/domain/favorites"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIDSetCache struct {
	mock.Mock
}

func (m *MockIDSetCache) Members(ctx context.Context, userID string) ([]string, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]string), args.Bool(1), args.Error(2)
}

func (m *MockIDSetCache) Replace(ctx context.Context, userID string, ids []string) error {
	args := m.Called(ctx, userID, ids)
	return args.Error(0)
}

func (m *MockIDSetCache) Drop(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestCachedStore_List(t *testing.T) {
	logger := testLogger()

	t.Run("cache hit", func(t *testing.T) {
		store, cache := new(MockFavoriteStore), new(MockIDSetCache)
		cs := NewCachedStore(store, cache, logger)

		cache.On("Members", mock.Anything, "u1").Return([]string{"l1"}, true, nil).Once()

		ids, err := cs.List(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"l1"}, ids)
		store.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("cache miss fills cache", func(t *testing.T) {
		store, cache := new(MockFavoriteStore), new(MockIDSetCache)
		cs := NewCachedStore(store, cache, logger)

		cache.On("Members", mock.Anything, "u1").Return(nil, false, nil).Once()
		store.On("List", mock.Anything, "u1").Return([]string{"l1", "l2"}, nil).Once()
		cache.On("Replace", mock.Anything, "u1", []string{"l1", "l2"}).Return(nil).Once()

		ids, err := cs.List(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"l1", "l2"}, ids)
		store.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache failures fall back to store", func(t *testing.T) {
		store, cache := new(MockFavoriteStore), new(MockIDSetCache)
		cs := NewCachedStore(store, cache, logger)

		cache.On("Members", mock.Anything, "u1").Return(nil, false, errors.New("redis down")).Once()
		store.On("List", mock.Anything, "u1").Return([]string{"l1"}, nil).Once()
		cache.On("Replace", mock.Anything, "u1", mock.Anything).Return(errors.New("redis down")).Once()

		ids, err := cs.List(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"l1"}, ids)
	})

	t.Run("store failure is not cached", func(t *testing.T) {
		store, cache := new(MockFavoriteStore), new(MockIDSetCache)
		cs := NewCachedStore(store, cache, logger)

		cache.On("Members", mock.Anything, "u1").Return(nil, false, nil).Once()
		store.On("List", mock.Anything, "u1").Return(nil, errors.New("db down")).Once()

		_, err := cs.List(context.Background(), "u1")
		assert.Error(t, err)
		cache.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCachedStore_WritesDropCache(t *testing.T) {
	logger := testLogger()

	tests := []struct {
		name     string
		storeErr error
		dropErr  error
		write    func(*CachedStore) error
		method   string
	}{
		{
			name:   "insert",
			method: "Insert",
			write:  func(cs *CachedStore) error { return cs.Insert(context.Background(), "u1", "l1") },
		},
		{
			name:     "insert conflict passes through",
			method:   "Insert",
			storeErr: favorites.ErrAlreadyExists,
			write:    func(cs *CachedStore) error { return cs.Insert(context.Background(), "u1", "l1") },
		},
		{
			name:     "failed delete still drops",
			method:   "Delete",
			storeErr: errors.New("timeout"),
			write:    func(cs *CachedStore) error { return cs.Delete(context.Background(), "u1", "l1") },
		},
		{
			name:    "drop failure is swallowed",
			method:  "Delete",
			dropErr: errors.New("redis down"),
			write:   func(cs *CachedStore) error { return cs.Delete(context.Background(), "u1", "l1") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cache := new(MockFavoriteStore), new(MockIDSetCache)
			cs := NewCachedStore(store, cache, logger)

			store.On(tt.method, mock.Anything, "u1", "l1").Return(tt.storeErr).Once()
			cache.On("Drop", mock.Anything, "u1").Return(tt.dropErr).Once()

			err := tt.write(cs)
			if tt.storeErr != nil {
				assert.ErrorIs(t, err, tt.storeErr)
			} else {
				assert.NoError(t, err)
			}
			store.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestCachedStore_FillSkippedAfterConcurrentWrite(t *testing.T) {
	store, cache := new(MockFavoriteStore), new(MockIDSetCache)
	cs := NewCachedStore(store, cache, testLogger())
	g := newGate()

	cache.On("Members", mock.Anything, "u1").Return(nil, false, nil).Once()
	store.On("List", mock.Anything, "u1").Run(g.hold).Return([]string{}, nil).Once()
	store.On("Insert", mock.Anything, "u1", "l1").Return(nil).Once()
	cache.On("Drop", mock.Anything, "u1").Return(nil).Once()

	done := make(chan []string, 1)
	go func() {
		ids, _ := cs.List(context.Background(), "u1")
		done <- ids
	}()

	g.waitStarted(t)
	require.NoError(t, cs.Insert(context.Background(), "u1", "l1"))
	close(g.release)

	assert.Empty(t, <-done)
	cache.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything)
}
