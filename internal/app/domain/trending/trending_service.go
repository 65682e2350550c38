package trending

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the trending score tracker: counters in, recency-weighted
// popularity out.
type Service interface {
	RecordEvent(ctx context.Context, destinationSlug string, action models.StatsAction) error
	GetTrending(ctx context.Context, limit int, catalog []models.Destination) ([]models.ScoredDestination, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
}

func NewServiceImpl(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// RecordEvent folds a view or save into the destination's trending stats.
func (s *ServiceImpl) RecordEvent(ctx context.Context, destinationSlug string, action models.StatsAction) error {
	ctx, span := otel.Tracer("TrendingService").Start(ctx, "RecordEvent", trace.WithAttributes(
		attribute.String("destination.slug", destinationSlug),
		attribute.String("stats.action", string(action)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "RecordEvent"), zap.String("slug", destinationSlug))

	if destinationSlug == "" {
		span.SetStatus(codes.Error, "Missing destination slug")
		return fmt.Errorf("destination slug is required: %w", models.ErrBadRequest)
	}
	if !action.Valid() {
		span.SetStatus(codes.Error, "Invalid stats action")
		return fmt.Errorf("unknown stats action %q: %w", action, models.ErrBadRequest)
	}

	stats, err := s.repo.UpsertEvent(ctx, destinationSlug, action)
	if err != nil {
		l.Error("Failed to record destination event", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record destination event")
		return fmt.Errorf("error recording destination event: %w", err)
	}

	l.Debug("Destination event recorded",
		zap.Int("views", stats.ViewCount),
		zap.Int("saves", stats.SaveCount),
		zap.Float64("trendingScore", stats.TrendingScore))
	span.SetStatus(codes.Ok, "Event recorded")
	return nil
}

// GetTrending ranks the supplied catalog by the tracker's descending score
// order and returns up to limit scored destinations.
func (s *ServiceImpl) GetTrending(ctx context.Context, limit int, catalog []models.Destination) ([]models.ScoredDestination, error) {
	ctx, span := otel.Tracer("TrendingService").Start(ctx, "GetTrending", trace.WithAttributes(
		attribute.Int("limit", limit),
		attribute.Int("catalog.size", len(catalog)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetTrending"))

	bySlug := make(map[string]models.Destination, len(catalog))
	catalogSlugs := make([]string, 0, len(catalog))
	for _, d := range catalog {
		bySlug[d.Slug] = d
		catalogSlugs = append(catalogSlugs, d.Slug)
	}

	// Rank only the caller's catalog so a small city's destinations are
	// never crowded out by globally hotter slugs.
	slugs, err := s.repo.ListTopSlugs(ctx, catalogSlugs, limit)
	if err != nil {
		l.Error("Failed to list trending slugs", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list trending slugs")
		return nil, fmt.Errorf("error listing trending destinations: %w", err)
	}

	stats, err := s.repo.GetStatsBySlugs(ctx, slugs)
	if err != nil {
		l.Error("Failed to fetch trending stats", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch trending stats")
		return nil, fmt.Errorf("error fetching trending stats: %w", err)
	}

	trending := make([]models.ScoredDestination, 0, len(slugs))
	for _, slug := range slugs {
		d, inCatalog := bySlug[slug]
		if !inCatalog {
			continue
		}
		trending = append(trending, models.ScoredDestination{
			Destination: d,
			Score:       stats[slug].TrendingScore,
			Reason:      "Trending with other travelers",
		})
	}

	l.Debug("Trending list assembled", zap.Int("count", len(trending)))
	span.SetStatus(codes.Ok, "Trending fetched")
	return trending, nil
}
