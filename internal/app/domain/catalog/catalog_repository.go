package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository supplies the destination catalog. The discovery core receives
// catalogs as plain slices; this reader fetches them fresh per request.
type Repository interface {
	ListDestinations(ctx context.Context, city string) ([]models.Destination, error)
	GetDestination(ctx context.Context, slug string) (*models.Destination, error)
	GetDestinationsBySlugs(ctx context.Context, slugs []string) ([]models.Destination, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
}

func NewRepositoryImpl(pgpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

const destinationColumns = `
        slug, name, city, category, rating, michelin_stars, crown, has_image,
        COALESCE(latitude, 0), COALESCE(longitude, 0), created_at`

// ListDestinations returns the catalog, optionally restricted to one city.
func (r *RepositoryImpl) ListDestinations(ctx context.Context, city string) ([]models.Destination, error) {
	ctx, span := otel.Tracer("CatalogRepo").Start(ctx, "ListDestinations", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destinations"),
		attribute.String("catalog.city", city),
	))
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM destinations`, destinationColumns)
	args := []any{}
	if city != "" {
		query += ` WHERE LOWER(city) = LOWER($1)`
		args = append(args, city)
	}
	query += ` ORDER BY name`

	return r.queryDestinations(ctx, span, "ListDestinations", query, args...)
}

// GetDestination fetches a single catalog entry by slug.
func (r *RepositoryImpl) GetDestination(ctx context.Context, slug string) (*models.Destination, error) {
	ctx, span := otel.Tracer("CatalogRepo").Start(ctx, "GetDestination", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destinations"),
		attribute.String("destination.slug", slug),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "GetDestination"), zap.String("slug", slug))

	var d models.Destination
	query := fmt.Sprintf(`SELECT %s FROM destinations WHERE slug = $1`, destinationColumns)
	err := r.pgpool.QueryRow(ctx, query, slug).Scan(
		&d.Slug, &d.Name, &d.City, &d.Category, &d.Rating,
		&d.MichelinStars, &d.Crown, &d.HasImage,
		&d.Latitude, &d.Longitude, &d.CreatedAt,
	)
	if err != nil {
		l.Warn("Destination not found", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Destination not found")
		return nil, fmt.Errorf("destination %q: %w", slug, models.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Destination fetched")
	return &d, nil
}

// GetDestinationsBySlugs fetches catalog entries for a slug list, preserving
// no particular order.
func (r *RepositoryImpl) GetDestinationsBySlugs(ctx context.Context, slugs []string) ([]models.Destination, error) {
	ctx, span := otel.Tracer("CatalogRepo").Start(ctx, "GetDestinationsBySlugs", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destinations"),
		attribute.Int("catalog.slug_count", len(slugs)),
	))
	defer span.End()

	if len(slugs) == 0 {
		span.SetStatus(codes.Ok, "Empty slug list")
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM destinations WHERE slug = ANY($1)`, destinationColumns)
	return r.queryDestinations(ctx, span, "GetDestinationsBySlugs", query, slugs)
}

func (r *RepositoryImpl) queryDestinations(ctx context.Context, span trace.Span, method, query string, args ...any) ([]models.Destination, error) {
	l := r.logger.With(zap.String("method", method))

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.Error("Failed to query destinations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching destinations: %w", err)
	}
	defer rows.Close()

	var destinations []models.Destination
	for rows.Next() {
		var d models.Destination
		err := rows.Scan(
			&d.Slug, &d.Name, &d.City, &d.Category, &d.Rating,
			&d.MichelinStars, &d.Crown, &d.HasImage,
			&d.Latitude, &d.Longitude, &d.CreatedAt,
		)
		if err != nil {
			l.Error("Failed to scan destination row", zap.Error(err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning destination: %w", err)
		}
		destinations = append(destinations, d)
	}

	if err = rows.Err(); err != nil {
		l.Error("Error iterating destination rows", zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading destinations: %w", err)
	}

	l.Debug("Fetched destinations", zap.Int("count", len(destinations)))
	span.SetStatus(codes.Ok, "Destinations fetched")
	return destinations, nil
}
