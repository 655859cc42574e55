package postgres

import (
	"context"
	"errors"
	"fmt"

	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// FavoriteRepository implements ports.FavoriteStore using PostgreSQL.
type FavoriteRepository struct {
	db *pgxpool.Pool
}

var _ ports.FavoriteStore = (*FavoriteRepository)(nil)

// NewFavoriteRepository creates a new postgres favorite store.
func NewFavoriteRepository(db *pgxpool.Pool) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// List returns the ids of every listing the user has favorited.
func (r *FavoriteRepository) List(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT listing_id FROM favorites WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return ids, nil
}

// Insert stores the pair. A duplicate returns favorites.ErrAlreadyExists.
func (r *FavoriteRepository) Insert(ctx context.Context, userID, listingID string) error {
	query := `INSERT INTO favorites (user_id, listing_id) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, userID, listingID); err != nil {
		return fmt.Errorf("failed to insert favorite: %w", translate(err))
	}
	return nil
}

// Delete removes the pair. A missing row returns favorites.ErrNotFound.
func (r *FavoriteRepository) Delete(ctx context.Context, userID, listingID string) error {
	query := `DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2`
	cmdTag, err := r.db.Exec(ctx, query, userID, listingID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", translate(err))
	}
	if cmdTag.RowsAffected() == 0 {
		return favorites.ErrNotFound
	}
	return nil
}

// translate maps constraint violations to domain sentinels.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return favorites.ErrAlreadyExists
	case foreignKeyViolation:
		return fmt.Errorf("%w: unknown user or listing", favorites.ErrValidation)
	}
	return err
}
