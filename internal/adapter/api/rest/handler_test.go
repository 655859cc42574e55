package rest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-marketplace/internal/core/domain/auth"
	"go-marketplace/internal/core/domain/favorites"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSync struct {
	mock.Mock
}

func (m *MockSync) IsFavorite(userID, listingID string) bool {
	args := m.Called(userID, listingID)
	return args.Bool(0)
}

func (m *MockSync) Toggle(ctx context.Context, userID, listingID string) favorites.Outcome {
	args := m.Called(ctx, userID, listingID)
	return args.Get(0).(favorites.Outcome)
}

func (m *MockSync) SetFavorite(ctx context.Context, userID, listingID string, dir favorites.Direction) favorites.Outcome {
	args := m.Called(ctx, userID, listingID, dir)
	return args.Get(0).(favorites.Outcome)
}

func (m *MockSync) Favorites(ctx context.Context, userID string) favorites.FavoriteSet {
	args := m.Called(ctx, userID)
	return args.Get(0).(favorites.FavoriteSet)
}

func (m *MockSync) Hydrate(ctx context.Context, userID string) (favorites.FavoriteSet, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(favorites.FavoriteSet), args.Error(1)
}

func (m *MockSync) OpenSession(userID string) {
	m.Called(userID)
}

func (m *MockSync) EndSession(userID string) {
	m.Called(userID)
}

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) FavoriteListings(ctx context.Context, userID string, limit, offset int) (iter.Seq2[favorites.Listing, error], error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(iter.Seq2[favorites.Listing, error]), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SignUp(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) Verify(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// asUser returns r carrying userID the way the auth middleware would.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
}

func decodeOutcome(t *testing.T, w *httptest.ResponseRecorder) outcomeResponse {
	t.Helper()
	var resp outcomeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandler_Status(t *testing.T) {
	t.Run("reads cached state", func(t *testing.T) {
		sync := new(MockSync)
		h := NewHandler(sync, nil, discardLogger())
		sync.On("Favorites", mock.Anything, "u1").Return(favorites.NewFavoriteSet("u1", "l1"))

		req := asUser(httptest.NewRequest(http.MethodGet, "/favorites/l1", nil), "u1")
		req.SetPathValue("listingID", "l1")
		w := httptest.NewRecorder()
		h.Status(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp favoriteResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, favoriteResponse{ListingID: "l1", Favorite: true}, resp)
		sync.AssertExpectations(t)
	})

	t.Run("anonymous asks with empty user", func(t *testing.T) {
		sync := new(MockSync)
		h := NewHandler(sync, nil, discardLogger())
		sync.On("Favorites", mock.Anything, "").Return(favorites.NewFavoriteSet(""))

		req := httptest.NewRequest(http.MethodGet, "/favorites/l1", nil)
		req.SetPathValue("listingID", "l1")
		w := httptest.NewRecorder()
		h.Status(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"listing_id":"l1","favorite":false}`, w.Body.String())
	})

	t.Run("missing listing id", func(t *testing.T) {
		h := NewHandler(new(MockSync), nil, discardLogger())
		w := httptest.NewRecorder()
		h.Status(w, httptest.NewRequest(http.MethodGet, "/favorites/", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_Toggle(t *testing.T) {
	tests := []struct {
		name        string
		outcome     favorites.Outcome
		wantCode    int
		wantOutcome string
		wantFav     bool
		wantErr     string
	}{
		{
			name:        "committed",
			outcome:     favorites.Committed{Favorite: true},
			wantCode:    http.StatusOK,
			wantOutcome: "committed",
			wantFav:     true,
		},
		{
			name:        "rolled back on store failure",
			outcome:     favorites.RolledBack{Favorite: false, Reason: fmt.Errorf("%w: timeout", favorites.ErrRemoteUnavailable)},
			wantCode:    http.StatusServiceUnavailable,
			wantOutcome: "rolled_back",
			wantErr:     "favorite store unavailable: timeout",
		},
		{
			name:        "rolled back on validation",
			outcome:     favorites.RolledBack{Favorite: false, Reason: fmt.Errorf("%w: unknown listing", favorites.ErrValidation)},
			wantCode:    http.StatusUnprocessableEntity,
			wantOutcome: "rolled_back",
			wantErr:     "validation failed: unknown listing",
		},
		{
			name:        "auth required",
			outcome:     favorites.AuthRequired{},
			wantCode:    http.StatusUnauthorized,
			wantOutcome: "auth_required",
			wantErr:     "sign in to save favorites",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sync := new(MockSync)
			h := NewHandler(sync, nil, discardLogger())
			sync.On("Toggle", mock.Anything, "u1", "l1").Return(tt.outcome)

			req := asUser(httptest.NewRequest(http.MethodPost, "/favorites/l1/toggle", nil), "u1")
			req.SetPathValue("listingID", "l1")
			w := httptest.NewRecorder()
			h.Toggle(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeOutcome(t, w)
			assert.Equal(t, "l1", resp.ListingID)
			assert.Equal(t, tt.wantOutcome, resp.Outcome)
			assert.Equal(t, tt.wantFav, resp.Favorite)
			assert.Equal(t, tt.wantErr, resp.Error)
			sync.AssertExpectations(t)
		})
	}
}

func TestHandler_AddRemove(t *testing.T) {
	sync := new(MockSync)
	h := NewHandler(sync, nil, discardLogger())
	sync.On("SetFavorite", mock.Anything, "u1", "l1", favorites.Add).Return(favorites.Committed{Favorite: true}).Once()
	sync.On("SetFavorite", mock.Anything, "u1", "l1", favorites.Remove).Return(favorites.Committed{Favorite: false}).Once()

	req := asUser(httptest.NewRequest(http.MethodPut, "/favorites/l1", nil), "u1")
	req.SetPathValue("listingID", "l1")
	w := httptest.NewRecorder()
	h.Add(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeOutcome(t, w).Favorite)

	req = asUser(httptest.NewRequest(http.MethodDelete, "/favorites/l1", nil), "u1")
	req.SetPathValue("listingID", "l1")
	w = httptest.NewRecorder()
	h.Remove(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeOutcome(t, w).Favorite)

	sync.AssertExpectations(t)
}

func TestHandler_IDs(t *testing.T) {
	t.Run("fresh set", func(t *testing.T) {
		sync := new(MockSync)
		h := NewHandler(sync, nil, discardLogger())
		set := favorites.NewFavoriteSet("u1", "l2", "l1")
		set.Freshness = favorites.Fresh
		sync.On("Hydrate", mock.Anything, "u1").Return(set, nil)

		w := httptest.NewRecorder()
		h.IDs(w, asUser(httptest.NewRequest(http.MethodGet, "/favorites/ids", nil), "u1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":"u1","ids":["l1","l2"],"freshness":"fresh"}`, w.Body.String())
	})

	t.Run("stale set is served when reload fails", func(t *testing.T) {
		sync := new(MockSync)
		h := NewHandler(sync, nil, discardLogger())
		set := favorites.NewFavoriteSet("u1", "l1")
		set.Freshness = favorites.Stale
		sync.On("Hydrate", mock.Anything, "u1").Return(set, errors.New("db down"))

		w := httptest.NewRecorder()
		h.IDs(w, asUser(httptest.NewRequest(http.MethodGet, "/favorites/ids", nil), "u1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":"u1","ids":["l1"],"freshness":"stale"}`, w.Body.String())
	})

	t.Run("nothing loaded and store down", func(t *testing.T) {
		sync := new(MockSync)
		h := NewHandler(sync, nil, discardLogger())
		sync.On("Hydrate", mock.Anything, "u1").Return(favorites.NewFavoriteSet("u1"), errors.New("db down"))

		w := httptest.NewRecorder()
		h.IDs(w, asUser(httptest.NewRequest(http.MethodGet, "/favorites/ids", nil), "u1"))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandler_List(t *testing.T) {
	t.Run("streams ndjson", func(t *testing.T) {
		svc := new(MockListingService)
		h := NewHandler(new(MockSync), svc, discardLogger())

		items := []favorites.Listing{
			{ID: "l2", UserID: "s1", Title: "Bike", Status: favorites.ListingActive},
			{ID: "l1", UserID: "s1", Title: "Lamp", Status: favorites.ListingSold},
		}
		seq := func(yield func(favorites.Listing, error) bool) {
			for _, l := range items {
				if !yield(l, nil) {
					return
				}
			}
		}
		svc.On("FavoriteListings", mock.Anything, "u1", 10, 10).Return(iter.Seq2[favorites.Listing, error](seq), nil)

		w := httptest.NewRecorder()
		h.List(w, asUser(httptest.NewRequest(http.MethodGet, "/favorites?page=2&limit=10", nil), "u1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

		var got []string
		sc := bufio.NewScanner(strings.NewReader(w.Body.String()))
		for sc.Scan() {
			var l favorites.Listing
			require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
			got = append(got, l.ID)
		}
		assert.Equal(t, []string{"l2", "l1"}, got)
		svc.AssertExpectations(t)
	})

	t.Run("stops at stream error", func(t *testing.T) {
		svc := new(MockListingService)
		h := NewHandler(new(MockSync), svc, discardLogger())
		seq := func(yield func(favorites.Listing, error) bool) {
			if !yield(favorites.Listing{ID: "l1"}, nil) {
				return
			}
			yield(favorites.Listing{}, errors.New("scan failed"))
		}
		svc.On("FavoriteListings", mock.Anything, "u1", 20, 0).Return(iter.Seq2[favorites.Listing, error](seq), nil)

		w := httptest.NewRecorder()
		h.List(w, asUser(httptest.NewRequest(http.MethodGet, "/favorites", nil), "u1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, strings.Count(w.Body.String(), "\n"))
	})

	t.Run("repository error", func(t *testing.T) {
		svc := new(MockListingService)
		h := NewHandler(new(MockSync), svc, discardLogger())
		svc.On("FavoriteListings", mock.Anything, "u1", 20, 0).Return(nil, errors.New("db down"))

		w := httptest.NewRecorder()
		h.List(w, asUser(httptest.NewRequest(http.MethodGet, "/favorites", nil), "u1"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandler_EndSession(t *testing.T) {
	sync := new(MockSync)
	h := NewHandler(sync, nil, discardLogger())
	sync.On("EndSession", "u1").Return()

	w := httptest.NewRecorder()
	h.EndSession(w, asUser(httptest.NewRequest(http.MethodDelete, "/session", nil), "u1"))

	assert.Equal(t, http.StatusNoContent, w.Code)
	sync.AssertExpectations(t)
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"page=3&limit=5", 5, 10},
		{"page=0&limit=0", 20, 0},
		{"limit=500", 100, 0},
		{"page=abc", 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := NewPagination(httptest.NewRequest(http.MethodGet, "/favorites?"+tt.query, nil))
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestAuthHandler(t *testing.T) {
	body := func(email, password string) *bytes.Buffer {
		b, _ := json.Marshal(credentialsRequest{Email: email, Password: password})
		return bytes.NewBuffer(b)
	}

	t.Run("signup", func(t *testing.T) {
		tests := []struct {
			name     string
			err      error
			wantCode int
		}{
			{"created", nil, http.StatusCreated},
			{"email taken", auth.ErrEmailTaken, http.StatusConflict},
			{"invalid", fmt.Errorf("%w: short password", auth.ErrInvalidCredentials), http.StatusBadRequest},
			{"store failure", errors.New("db down"), http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := new(MockAuthService)
				h := NewAuthHandler(svc, new(MockSync), discardLogger())
				svc.On("SignUp", mock.Anything, "a@b.com", "password1").Return(tt.err)

				w := httptest.NewRecorder()
				h.SignUp(w, httptest.NewRequest(http.MethodPost, "/signup", body("a@b.com", "password1")))
				assert.Equal(t, tt.wantCode, w.Code)
			})
		}
	})

	t.Run("signup bad body", func(t *testing.T) {
		h := NewAuthHandler(new(MockAuthService), new(MockSync), discardLogger())
		w := httptest.NewRecorder()
		h.SignUp(w, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("login", func(t *testing.T) {
		svc := new(MockAuthService)
		sessions := new(MockSync)
		h := NewAuthHandler(svc, sessions, discardLogger())
		svc.On("Login", mock.Anything, "a@b.com", "password1").Return("tok", nil)
		svc.On("Login", mock.Anything, "a@b.com", "wrong").Return("", auth.ErrInvalidCredentials)
		svc.On("Verify", "tok").Return("u1", nil)
		sessions.On("OpenSession", "u1").Once()

		w := httptest.NewRecorder()
		h.Login(w, httptest.NewRequest(http.MethodPost, "/login", body("a@b.com", "password1")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"token":"tok"}`, w.Body.String())

		w = httptest.NewRecorder()
		h.Login(w, httptest.NewRequest(http.MethodPost, "/login", body("a@b.com", "wrong")))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		// only the successful login opens a session
		sessions.AssertExpectations(t)
		sessions.AssertNumberOfCalls(t, "OpenSession", 1)
	})
}
