package postgres

import (
	"context"
	"fmt"
	"iter"

	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/ports"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListingRepository implements ports.ListingRepository using PostgreSQL.
type ListingRepository struct {
	db *pgxpool.Pool
}

var _ ports.ListingRepository = (*ListingRepository)(nil)

func NewListingRepository(db *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{db: db}
}

// SaveListing upserts a listing by id.
func (r *ListingRepository) SaveListing(ctx context.Context, l favorites.Listing) error {
	query := `
		INSERT INTO listings (id, user_id, title, description, price, category, location, images, is_featured, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			location = EXCLUDED.location,
			images = EXCLUDED.images,
			is_featured = EXCLUDED.is_featured,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	images := l.Images
	if images == nil {
		images = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		l.ID, l.UserID, l.Title, l.Description, l.Price, l.Category, l.Location,
		images, l.IsFeatured, string(l.Status), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save listing: %w", translate(err))
	}
	return nil
}

// FavoriteListings streams the user's favorited listings, newest favorite
// first. Deleted listings are skipped.
func (r *ListingRepository) FavoriteListings(ctx context.Context, userID string, limit, offset int) (iter.Seq2[favorites.Listing, error], error) {
	query := `
		SELECT l.id, l.user_id, l.title, l.description, l.price, l.category, l.location,
		       l.images, l.is_featured, l.status, l.created_at, l.updated_at
		FROM favorites f
		JOIN listings l ON l.id = f.listing_id
		WHERE f.user_id = $1 AND l.status <> 'deleted'
		ORDER BY f.created_at DESC, l.id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite listings: %w", err)
	}

	return func(yield func(favorites.Listing, error) bool) {
		defer rows.Close()
		for rows.Next() {
			var l favorites.Listing
			var status string
			if err := rows.Scan(&l.ID, &l.UserID, &l.Title, &l.Description, &l.Price, &l.Category,
				&l.Location, &l.Images, &l.IsFeatured, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
				yield(favorites.Listing{}, fmt.Errorf("scan error: %w", err))
				return
			}
			l.Status = favorites.ListingStatus(status)
			if !yield(l, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(favorites.Listing{}, err)
		}
	}, nil
}
