package ports

import (
	"context"
	"iter"

	"go-marketplace/internal/core/domain/auth"
	"go-marketplace/internal/core/domain/favorites"
)

// UserRepository defines storage for users.
type UserRepository interface {
	Save(ctx context.Context, user auth.User) error
	FindByEmail(ctx context.Context, email string) (auth.User, error)
}

// FavoriteLister hydrates a user's favorite ids.
type FavoriteLister interface {
	List(ctx context.Context, userID string) ([]string, error)
}

// FavoriteStore is the remote (user, listing) association.
type FavoriteStore interface {
	FavoriteLister

	// Insert favorites the listing. It returns favorites.ErrAlreadyExists
	// when the pair is already stored.
	Insert(ctx context.Context, userID, listingID string) error

	// Delete unfavorites the listing. It returns favorites.ErrNotFound when
	// there was nothing to delete.
	Delete(ctx context.Context, userID, listingID string) error
}

// ListingRepository reads and seeds listings for the favorites page.
type ListingRepository interface {
	// SaveListing inserts or replaces a listing.
	SaveListing(ctx context.Context, listing favorites.Listing) error

	// FavoriteListings streams the user's favorited listings, newest favorite first.
	// limit and offset determine pagination.
	FavoriteListings(ctx context.Context, userID string, limit, offset int) (iter.Seq2[favorites.Listing, error], error)
}

// Migrator applies the storage schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
