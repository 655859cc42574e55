package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"go-marketplace/internal/adapter/storage"
	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/service"
)

type runner struct {
	logger *slog.Logger
	out    io.Writer
	open   func(ctx context.Context) (*storage.Backend, error)
}

func newApp(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "favctl",
		Usage: "Inspect and change marketplace favorites",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply the storage schema",
				Action: r.migrate,
			},
			{
				Name:  "seed",
				Usage: "Upsert listings from a JSON array so they can be favorited",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Path to a JSON file of listings", Required: true},
				},
				Action: r.seed,
			},
			{
				Name:  "list",
				Usage: "Print a user's favorite listing ids, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
				},
				Action: r.list,
			},
			{
				Name:   "add",
				Usage:  "Favorite a listing",
				Flags:  pairFlags(),
				Action: r.set(favorites.Add),
			},
			{
				Name:   "remove",
				Usage:  "Unfavorite a listing",
				Flags:  pairFlags(),
				Action: r.set(favorites.Remove),
			},
			{
				Name:   "toggle",
				Usage:  "Flip the favorite state of a listing",
				Flags:  pairFlags(),
				Action: r.toggle,
			},
		},
	}
}

func pairFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
		&cli.StringFlag{Name: "listing", Aliases: []string{"l"}, Usage: "Listing id", Required: true},
	}
}

func (r *runner) withBackend(ctx context.Context, fn func(*storage.Backend) error) error {
	b, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

func (r *runner) migrate(ctx context.Context, cmd *cli.Command) error {
	return r.withBackend(ctx, func(b *storage.Backend) error {
		if err := b.Migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		fmt.Fprintln(r.out, "migrations applied")
		return nil
	})
}

func (r *runner) seed(ctx context.Context, cmd *cli.Command) error {
	raw, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read listings: %w", err)
	}
	var listings []favorites.Listing
	if err := json.Unmarshal(raw, &listings); err != nil {
		return fmt.Errorf("failed to decode listings: %w", err)
	}
	return r.withBackend(ctx, func(b *storage.Backend) error {
		if err := service.NewListingService(b.Listings, r.logger).SeedListings(ctx, listings); err != nil {
			return fmt.Errorf("failed to seed listings: %w", err)
		}
		fmt.Fprintf(r.out, "seeded %d listings\n", len(listings))
		return nil
	})
}

func (r *runner) list(ctx context.Context, cmd *cli.Command) error {
	return r.withBackend(ctx, func(b *storage.Backend) error {
		ids, err := b.Favorites.List(ctx, cmd.String("user"))
		if err != nil {
			return fmt.Errorf("failed to list favorites: %w", err)
		}
		for _, id := range ids {
			fmt.Fprintln(r.out, id)
		}
		return nil
	})
}

func (r *runner) set(dir favorites.Direction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return r.withBackend(ctx, func(b *storage.Backend) error {
			engine := r.engine(b)
			return r.report(engine.SetFavorite(ctx, cmd.String("user"), cmd.String("listing"), dir))
		})
	}
}

func (r *runner) toggle(ctx context.Context, cmd *cli.Command) error {
	return r.withBackend(ctx, func(b *storage.Backend) error {
		engine := r.engine(b)
		userID := cmd.String("user")
		// the engine toggles on an unloaded set if the store is down; refuse instead
		if _, err := engine.Hydrate(ctx, userID); err != nil {
			return fmt.Errorf("failed to load favorites: %w", err)
		}
		return r.report(engine.Toggle(ctx, userID, cmd.String("listing")))
	})
}

func (r *runner) engine(b *storage.Backend) *service.SyncEngine {
	return service.NewSyncEngine(service.NewFavoriteCache(b.Favorites, r.logger, 0), b.Favorites, r.logger, 0)
}

// report prints the outcome; anything but a commit is an error exit.
func (r *runner) report(o favorites.Outcome) error {
	switch o := o.(type) {
	case favorites.Committed:
		fmt.Fprintf(r.out, "%s favorite=%t\n", o.Kind(), o.Favorite)
		return nil
	case favorites.RolledBack:
		fmt.Fprintf(r.out, "%s favorite=%t\n", o.Kind(), o.Favorite)
		return o.Reason
	default:
		return fmt.Errorf("unexpected outcome %s", o.Kind())
	}
}
