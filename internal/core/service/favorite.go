package service

import (
	"context"
	"iter"
	"log/slog"

	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("internal/core/service")

const maxPageSize = 100

// ListingService serves the favorites page: the user's favorited listings
// joined with their details.
type ListingService struct {
	repo   ports.ListingRepository
	logger *slog.Logger
}

var _ ports.FavoriteListingService = (*ListingService)(nil)

func NewListingService(repo ports.ListingRepository, logger *slog.Logger) *ListingService {
	return &ListingService{repo: repo, logger: logger}
}

func (s *ListingService) FavoriteListings(ctx context.Context, userID string, limit, offset int) (iter.Seq2[favorites.Listing, error], error) {
	ctx, span := tracer.Start(ctx, "ListingService.FavoriteListings", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	))
	defer span.End()

	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	s.logger.InfoContext(ctx, "streaming favorite listings from db", "user_id", userID)
	seq, err := s.repo.FavoriteListings(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return seq, nil
}

// SeedListings validates and stores listings, stopping at the first failure.
func (s *ListingService) SeedListings(ctx context.Context, listings []favorites.Listing) error {
	ctx, span := tracer.Start(ctx, "ListingService.SeedListings", trace.WithAttributes(attribute.Int("count", len(listings))))
	defer span.End()

	for _, l := range listings {
		if err := l.Validate(); err != nil {
			span.RecordError(err)
			return err
		}
		if err := s.repo.SaveListing(ctx, l); err != nil {
			span.RecordError(err)
			return err
		}
	}
	s.logger.InfoContext(ctx, "seeded listings", "count", len(listings))
	return nil
}
