// Package storage opens the configured favorites backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"go-marketplace/internal/adapter/storage/postgres"
	"go-marketplace/internal/adapter/storage/sqlite"
	"go-marketplace/internal/config"
	"go-marketplace/internal/core/ports"
	"go-marketplace/internal/observability"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend bundles the ports one database serves.
type Backend struct {
	Favorites ports.FavoriteStore
	Listings  ports.ListingRepository
	Users     ports.UserRepository
	Migrator  ports.Migrator
	Stats     observability.PoolStats
	Close     func()
}

// Open connects to the backend selected by cfg.StoreDriver. It does not migrate.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("unable to reach database: %w", err)
		}
		return &Backend{
			Favorites: postgres.NewFavoriteRepository(pool),
			Listings:  postgres.NewListingRepository(pool),
			Users:     postgres.NewUserRepository(pool),
			Migrator:  postgres.NewMigrator(pool, logger),
			Stats:     observability.PgxPoolStats(pool),
			Close:     pool.Close,
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Favorites: store,
			Listings:  store,
			Users:     store,
			Migrator:  store,
			Stats:     observability.SQLDBStats(store.DB()),
			Close: func() {
				if err := store.Close(); err != nil {
					logger.Error("failed to close sqlite database", "error", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
