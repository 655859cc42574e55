package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"go-marketplace/internal/core/domain/auth"
	"go-marketplace/internal/core/domain/favorites"
)

func (s *Store) SaveListing(ctx context.Context, l favorites.Listing) error {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listings (id, user_id, title, description, price, category, location, images, is_featured, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			price = excluded.price,
			category = excluded.category,
			location = excluded.location,
			images = excluded.images,
			is_featured = excluded.is_featured,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		l.ID, l.UserID, l.Title, l.Description, l.Price, l.Category, l.Location,
		string(imagesJSON), l.IsFeatured, string(l.Status), l.CreatedAt.UnixMilli(), l.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save listing: %w", err)
	}
	return nil
}

// FavoriteListings streams the user's favorited listings, newest favorite
// first, skipping deleted ones.
func (s *Store) FavoriteListings(ctx context.Context, userID string, limit, offset int) (iter.Seq2[favorites.Listing, error], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.user_id, l.title, l.description, l.price, l.category, l.location,
		       l.images, l.is_featured, l.status, l.created_at, l.updated_at
		FROM favorites f
		JOIN listings l ON l.id = f.listing_id
		WHERE f.user_id = ? AND l.status <> 'deleted'
		ORDER BY f.created_at DESC, f.rowid DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite listings: %w", err)
	}

	return func(yield func(favorites.Listing, error) bool) {
		defer rows.Close()
		for rows.Next() {
			l, err := scanListing(rows)
			if err != nil {
				yield(favorites.Listing{}, err)
				return
			}
			if !yield(l, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(favorites.Listing{}, err)
		}
	}, nil
}

func scanListing(rows *sql.Rows) (favorites.Listing, error) {
	var (
		l                favorites.Listing
		images, status   string
		created, updated int64
	)
	if err := rows.Scan(&l.ID, &l.UserID, &l.Title, &l.Description, &l.Price, &l.Category,
		&l.Location, &images, &l.IsFeatured, &status, &created, &updated); err != nil {
		return favorites.Listing{}, fmt.Errorf("scan error: %w", err)
	}
	if err := json.Unmarshal([]byte(images), &l.Images); err != nil {
		return favorites.Listing{}, fmt.Errorf("failed to decode images of %s: %w", l.ID, err)
	}
	l.Status = favorites.ListingStatus(status)
	l.CreatedAt = time.UnixMilli(created).UTC()
	l.UpdatedAt = time.UnixMilli(updated).UTC()
	return l, nil
}

func (s *Store) Save(ctx context.Context, user auth.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, s.now().UnixMilli())
	if err != nil {
		if errors.Is(translate(err), favorites.ErrAlreadyExists) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	var user auth.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM users WHERE email = ?`, email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, fmt.Errorf("user %q: %w", email, auth.ErrInvalidCredentials)
		}
		return auth.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
