package trending

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
)

// trendingKey is the Redis sorted set mirroring trending scores for the fast
// read path. Postgres remains the durable source of truth.
const trendingKey = "trending:destinations"

var _ Repository = (*RepositoryImpl)(nil)

// Repository owns the destination_stats rows. The write path is a single
// conditional upsert so concurrent events on the same destination cannot
// lose updates.
type Repository interface {
	UpsertEvent(ctx context.Context, slug string, action models.StatsAction) (*models.DestinationStats, error)
	ListTopSlugs(ctx context.Context, candidateSlugs []string, limit int) ([]string, error)
	GetStatsBySlugs(ctx context.Context, slugs []string) (map[string]models.DestinationStats, error)
}

// PgxPool is the slice of pgxpool.Pool this repository needs. Declared here
// so tests can substitute a pgxmock pool.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool PgxPool
	redis  *redis.Client
}

// NewRepositoryImpl builds the stats repository. The redis client is
// optional; with a nil client all reads fall through to Postgres.
func NewRepositoryImpl(pgpool PgxPool, redisClient *redis.Client, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
		redis:  redisClient,
	}
}

// Trending score weights. upsertEventQuery inlines the same arithmetic so
// the recompute stays atomic; computeTrendingScore is the Go mirror and the
// two must stay in lockstep.
const (
	viewWeight  = 1.0
	saveWeight  = 5.0
	decayFactor = 0.9
)

// computeTrendingScore is the trending formula: the combined raw weight of
// all counters decayed per elapsed day since the last activity, floored to
// an integer value.
func computeTrendingScore(viewCount, saveCount int, daysSinceLastActivity float64) float64 {
	if daysSinceLastActivity < 0 {
		daysSinceLastActivity = 0
	}
	raw := float64(viewCount)*viewWeight + float64(saveCount)*saveWeight
	return math.Floor(raw * math.Pow(decayFactor, daysSinceLastActivity))
}

// Trending recomputes on every event: the combined raw weight of all
// counters (views x1, saves x5) decayed 10% per elapsed day since the last
// activity before this event. Decay-then-add is preserved from the original
// behavior; it conflates view/save ages and is a documented simplification.
const upsertEventQuery = `
    INSERT INTO destination_stats (destination_slug, view_count, save_count, trending_score, last_viewed, last_saved)
    VALUES (
        $1,
        CASE WHEN $2 = 'view' THEN 1 ELSE 0 END,
        CASE WHEN $2 = 'save' THEN 1 ELSE 0 END,
        CASE WHEN $2 = 'save' THEN 5 ELSE 1 END,
        CASE WHEN $2 = 'view' THEN NOW() END,
        CASE WHEN $2 = 'save' THEN NOW() END
    )
    ON CONFLICT (destination_slug) DO UPDATE SET
        view_count = destination_stats.view_count + CASE WHEN $2 = 'view' THEN 1 ELSE 0 END,
        save_count = destination_stats.save_count + CASE WHEN $2 = 'save' THEN 1 ELSE 0 END,
        last_viewed = CASE WHEN $2 = 'view' THEN NOW() ELSE destination_stats.last_viewed END,
        last_saved = CASE WHEN $2 = 'save' THEN NOW() ELSE destination_stats.last_saved END,
        trending_score = FLOOR(
            (
                (destination_stats.view_count + CASE WHEN $2 = 'view' THEN 1 ELSE 0 END) * 1
                + (destination_stats.save_count + CASE WHEN $2 = 'save' THEN 1 ELSE 0 END) * 5
            ) * POWER(0.9, GREATEST(0, EXTRACT(EPOCH FROM (NOW() - GREATEST(
                COALESCE(destination_stats.last_viewed, '-infinity'::timestamptz),
                COALESCE(destination_stats.last_saved, '-infinity'::timestamptz)
            ))) / 86400.0))
        )
    RETURNING destination_slug, view_count, save_count, trending_score, last_viewed, last_saved`

// UpsertEvent folds one view/save event into the destination's stats row and
// mirrors the fresh score into the Redis sorted set.
func (r *RepositoryImpl) UpsertEvent(ctx context.Context, slug string, action models.StatsAction) (*models.DestinationStats, error) {
	ctx, span := otel.Tracer("TrendingRepo").Start(ctx, "UpsertEvent", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "destination_stats"),
		attribute.String("destination.slug", slug),
		attribute.String("stats.action", string(action)),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "UpsertEvent"), zap.String("slug", slug), zap.String("action", string(action)))

	var stats models.DestinationStats
	queryStart := time.Now()
	err := r.pgpool.QueryRow(ctx, upsertEventQuery, slug, string(action)).Scan(
		&stats.DestinationSlug,
		&stats.ViewCount,
		&stats.SaveCount,
		&stats.TrendingScore,
		&stats.LastViewed,
		&stats.LastSaved,
	)
	if m := metrics.GetAppMetrics(); m != nil {
		m.DBQueryDurationSeconds.Record(ctx, time.Since(queryStart).Seconds())
		if err != nil {
			m.DBQueryErrorsTotal.Add(ctx, 1)
		}
	}
	if err != nil {
		l.Error("Failed to upsert destination stats", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return nil, fmt.Errorf("database error updating destination stats: %w", err)
	}

	if r.redis != nil {
		// Best effort: a stale mirror only costs read freshness, and the pg
		// fallback still serves correct order.
		if err := r.redis.ZAdd(ctx, trendingKey, redis.Z{Score: stats.TrendingScore, Member: slug}).Err(); err != nil {
			l.Warn("Failed to mirror trending score to redis", zap.Error(err))
			span.RecordError(err)
		}
	}

	span.SetStatus(codes.Ok, "Stats updated")
	return &stats, nil
}

// ListTopSlugs ranks the candidate slugs by trending score descending and
// returns up to limit of them, reading the Redis mirror first and falling
// back to Postgres. Candidates without a positive score are omitted.
func (r *RepositoryImpl) ListTopSlugs(ctx context.Context, candidateSlugs []string, limit int) ([]string, error) {
	ctx, span := otel.Tracer("TrendingRepo").Start(ctx, "ListTopSlugs", trace.WithAttributes(
		attribute.Int("candidate_count", len(candidateSlugs)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if len(candidateSlugs) == 0 {
		span.SetStatus(codes.Ok, "No candidates")
		return nil, nil
	}

	l := r.logger.With(zap.String("method", "ListTopSlugs"))

	if r.redis != nil {
		if slugs, ok := r.topSlugsFromRedis(ctx, candidateSlugs, limit, l, span); ok {
			span.SetAttributes(attribute.String("trending.source", "redis"))
			span.SetStatus(codes.Ok, "Trending slugs from redis")
			return slugs, nil
		}
	}

	rows, err := r.pgpool.Query(ctx, `
        SELECT destination_slug FROM destination_stats
        WHERE destination_slug = ANY($1)
        ORDER BY trending_score DESC
        LIMIT $2`, candidateSlugs, limit)
	if err != nil {
		l.Error("Failed to query trending slugs", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching trending slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning trending slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading trending slugs: %w", err)
	}

	span.SetAttributes(attribute.String("trending.source", "postgres"))
	span.SetStatus(codes.Ok, "Trending slugs from postgres")
	return slugs, nil
}

// topSlugsFromRedis scores the candidates against the sorted-set mirror. A
// mirror holding no positive score for any candidate is treated as missing
// so Postgres stays authoritative.
func (r *RepositoryImpl) topSlugsFromRedis(ctx context.Context, candidateSlugs []string, limit int, l *zap.Logger, span trace.Span) ([]string, bool) {
	scores, err := r.redis.ZMScore(ctx, trendingKey, candidateSlugs...).Result()
	if err != nil {
		l.Warn("Redis trending read failed, falling back to postgres", zap.Error(err))
		span.RecordError(err)
		return nil, false
	}
	if len(scores) != len(candidateSlugs) {
		return nil, false
	}

	type slugScore struct {
		slug  string
		score float64
	}
	ranked := make([]slugScore, 0, len(candidateSlugs))
	for i, slug := range candidateSlugs {
		if scores[i] > 0 {
			ranked = append(ranked, slugScore{slug: slug, score: scores[i]})
		}
	}
	if len(ranked) == 0 {
		return nil, false
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	slugs := make([]string, 0, len(ranked))
	for _, s := range ranked {
		slugs = append(slugs, s.slug)
	}
	return slugs, true
}

// GetStatsBySlugs returns the stats rows for a slug set. Slugs with no row
// yet are simply absent from the result map.
func (r *RepositoryImpl) GetStatsBySlugs(ctx context.Context, slugs []string) (map[string]models.DestinationStats, error) {
	ctx, span := otel.Tracer("TrendingRepo").Start(ctx, "GetStatsBySlugs", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destination_stats"),
		attribute.Int("slug_count", len(slugs)),
	))
	defer span.End()

	if len(slugs) == 0 {
		span.SetStatus(codes.Ok, "Empty slug list")
		return map[string]models.DestinationStats{}, nil
	}

	l := r.logger.With(zap.String("method", "GetStatsBySlugs"))

	rows, err := r.pgpool.Query(ctx, `
        SELECT destination_slug, view_count, save_count, trending_score, last_viewed, last_saved
        FROM destination_stats
        WHERE destination_slug = ANY($1)`, slugs)
	if err != nil {
		l.Error("Failed to query destination stats", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching destination stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]models.DestinationStats)
	for rows.Next() {
		var s models.DestinationStats
		err := rows.Scan(&s.DestinationSlug, &s.ViewCount, &s.SaveCount, &s.TrendingScore, &s.LastViewed, &s.LastSaved)
		if err != nil {
			l.Error("Failed to scan stats row", zap.Error(err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning destination stats: %w", err)
		}
		stats[s.DestinationSlug] = s
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading destination stats: %w", err)
	}

	span.SetStatus(codes.Ok, "Stats fetched")
	return stats, nil
}
