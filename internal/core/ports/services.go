package ports

import (
	"context"
	"iter"

	"go-marketplace/internal/core/domain/favorites"
)

// AuthService defines the authentication service.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (token string, err error)
	// Verify returns the user id carried by a token.
	Verify(token string) (userID string, err error)
}

// IDSetCache is a shared cache of per-user favorite id sets.
// We keep it simple and tailored to our needs.
type IDSetCache interface {
	// Members returns the cached ids; found is false on a miss.
	Members(ctx context.Context, userID string) (ids []string, found bool, err error)

	// Replace stores the full id set for a user.
	Replace(ctx context.Context, userID string, ids []string) error

	// Drop forgets a user's set so the next read goes to the store.
	Drop(ctx context.Context, userID string) error
}

// FavoriteSync is what presentation surfaces consume.
type FavoriteSync interface {
	IsFavorite(userID, listingID string) bool
	Toggle(ctx context.Context, userID, listingID string) favorites.Outcome
	SetFavorite(ctx context.Context, userID, listingID string, dir favorites.Direction) favorites.Outcome
	Favorites(ctx context.Context, userID string) favorites.FavoriteSet
	Hydrate(ctx context.Context, userID string) (favorites.FavoriteSet, error)
	OpenSession(userID string)
	EndSession(userID string)
}

// FavoriteListingService serves the favorites page.
type FavoriteListingService interface {
	FavoriteListings(ctx context.Context, userID string, limit, offset int) (iter.Seq2[favorites.Listing, error], error)
}
