package favorites

import (
	"context"
	"fmt"
	"sort"
	"strings"

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

// Repository reads a user's saved and visited destinations plus explicit
// preference overrides. The scoring strategies and the route optimizer's
// meal insertion both consume this.
type Repository interface {
	GetSavedDestinations(ctx context.Context, userID string) ([]models.Destination, error)
	GetVisitedDestinations(ctx context.Context, userID string) ([]models.Destination, error)
	GetSavedSlugs(ctx context.Context, userID string) (map[string]bool, error)
	GetSavedDiningInCity(ctx context.Context, userID, city string) ([]models.Destination, error)
	GetPreferences(ctx context.Context, userID string) (categories, cities []string, err error)
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

const savedSelectColumns = `
        d.slug, d.name, d.city, d.category, d.rating, d.michelin_stars, d.crown, d.has_image,
        COALESCE(d.latitude, 0), COALESCE(d.longitude, 0), d.created_at`

func (r *RepositoryImpl) GetSavedDestinations(ctx context.Context, userID string) ([]models.Destination, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM saved_destinations sd
        JOIN destinations d ON d.slug = sd.destination_slug
        WHERE sd.user_id = $1
        ORDER BY sd.saved_at DESC`, savedSelectColumns)

	return r.queryDestinations(ctx, "GetSavedDestinations", query, userID)
}

func (r *RepositoryImpl) GetVisitedDestinations(ctx context.Context, userID string) ([]models.Destination, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM saved_destinations sd
        JOIN destinations d ON d.slug = sd.destination_slug
        WHERE sd.user_id = $1 AND sd.visited = TRUE
        ORDER BY sd.saved_at DESC`, savedSelectColumns)

	return r.queryDestinations(ctx, "GetVisitedDestinations", query, userID)
}

// GetSavedSlugs returns the user's saved slugs as a set for exclusion checks.
func (r *RepositoryImpl) GetSavedSlugs(ctx context.Context, userID string) (map[string]bool, error) {
	ctx, span := otel.Tracer("FavoritesRepo").Start(ctx, "GetSavedSlugs", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "saved_destinations"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "GetSavedSlugs"), zap.String("userID", userID))

	rows, err := r.pgpool.Query(ctx,
		`SELECT destination_slug FROM saved_destinations WHERE user_id = $1`, userID)
	if err != nil {
		l.Error("Failed to query saved slugs", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching saved slugs: %w", err)
	}
	defer rows.Close()

	slugs := make(map[string]bool)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning saved slug: %w", err)
		}
		slugs[slug] = true
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading saved slugs: %w", err)
	}

	span.SetStatus(codes.Ok, "Saved slugs fetched")
	return slugs, nil
}

// GetSavedDiningInCity returns the user's saved dining-category places in a
// city. The route optimizer draws meal stops from this set.
func (r *RepositoryImpl) GetSavedDiningInCity(ctx context.Context, userID, city string) ([]models.Destination, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM saved_destinations sd
        JOIN destinations d ON d.slug = sd.destination_slug
        WHERE sd.user_id = $1
          AND LOWER(d.city) = LOWER($2)
          AND LOWER(d.category) IN ('dining', 'restaurant', 'restaurants', 'food')
        ORDER BY sd.saved_at DESC`, savedSelectColumns)

	return r.queryDestinations(ctx, "GetSavedDiningInCity", query, userID, city)
}

// GetPreferences returns the user's explicit category/city preferences when a
// preference row exists, otherwise infers the top three of each from saved
// place frequency. Missing data degrades to empty slices, never an error.
func (r *RepositoryImpl) GetPreferences(ctx context.Context, userID string) ([]string, []string, error) {
	ctx, span := otel.Tracer("FavoritesRepo").Start(ctx, "GetPreferences", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_preferences"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "GetPreferences"), zap.String("userID", userID))

	var categories, cities []string
	err := r.pgpool.QueryRow(ctx,
		`SELECT categories, cities FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&categories, &cities)
	if err == nil && (len(categories) > 0 || len(cities) > 0) {
		span.SetStatus(codes.Ok, "Explicit preferences found")
		return categories, cities, nil
	}

	saved, err := r.GetSavedDestinations(ctx, userID)
	if err != nil {
		l.Warn("Failed to infer preferences from saved places", zap.Error(err))
		span.RecordError(err)
		return nil, nil, nil
	}

	span.SetStatus(codes.Ok, "Preferences inferred from saved places")
	return topByFrequency(saved, func(d models.Destination) string { return d.Category }),
		topByFrequency(saved, func(d models.Destination) string { return d.City }),
		nil
}

// topByFrequency returns the three most frequent values of one destination
// attribute, lowercased, most frequent first.
func topByFrequency(destinations []models.Destination, key func(models.Destination) string) []string {
	counts := make(map[string]int)
	for _, d := range destinations {
		if v := strings.ToLower(key(d)); v != "" {
			counts[v]++
		}
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.SliceStable(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})

	if len(values) > 3 {
		values = values[:3]
	}
	return values
}

func (r *RepositoryImpl) queryDestinations(ctx context.Context, method, query string, args ...any) ([]models.Destination, error) {
	ctx, span := otel.Tracer("FavoritesRepo").Start(ctx, method, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "saved_destinations"),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", method))

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.Error("Failed to query saved destinations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching saved destinations: %w", err)
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

	l.Debug("Fetched saved destinations", zap.Int("count", len(destinations)))
	span.SetStatus(codes.Ok, "Destinations fetched")
	return destinations, nil
}
