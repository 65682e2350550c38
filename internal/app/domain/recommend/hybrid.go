package recommend

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
)

// Hybrid blend ratios, in percent of the requested limit. Tier selection
// depends on how much behavioral history is available.
const (
	anonRapidShare = 60 // anonymous with session history: rest from cold start

	authContentShare = 50
	authRapidShare   = 30 // authenticated: rest from cold start
)

// ScoreHybrid is the default strategy for the personalized feed. It picks a
// blend by behavioral tier, concatenates the sub-strategy slices in tier
// order without re-sorting across the blend, dedups by slug keeping the
// first occurrence, and truncates to limit.
func (s *ServiceImpl) ScoreHybrid(ctx context.Context, userID *string, sessionID string, catalog []models.Destination, limit int) ([]models.ScoredDestination, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "ScoreHybrid", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("catalog.size", len(catalog)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if m := metrics.GetAppMetrics(); m != nil {
			m.ScoringDurationSeconds.Record(ctx, time.Since(start).Seconds())
		}
	}()

	l := s.logger.With(zap.String("method", "ScoreHybrid"), zap.String("sessionID", sessionID))

	authenticated := userID != nil && *userID != ""

	if !authenticated {
		sessionEvents, err := s.interactions.GetBySession(ctx, sessionID)
		if err != nil {
			l.Warn("Failed to read session history, treating session as fresh", zap.Error(err))
			span.RecordError(err)
			sessionEvents = nil
		}

		if len(sessionEvents) == 0 {
			span.SetAttributes(attribute.String("hybrid.tier", "cold-start"))
			span.SetStatus(codes.Ok, "Hybrid scored (cold start tier)")
			return s.ScoreColdStart(ctx, catalog, limit), nil
		}

		rapidSlots := limit * anonRapidShare / 100
		coldSlots := limit - rapidSlots

		rapid, err := s.ScoreRapidLearning(ctx, userID, sessionID, catalog, rapidSlots)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Rapid learning tier failed")
			return nil, fmt.Errorf("error scoring rapid learning tier: %w", err)
		}
		cold := s.ScoreColdStart(ctx, catalog, coldSlots)

		span.SetAttributes(attribute.String("hybrid.tier", "session"))
		span.SetStatus(codes.Ok, "Hybrid scored (session tier)")
		return dedupeBySlug(append(rapid, cold...), limit), nil
	}

	contentSlots := limit * authContentShare / 100
	rapidSlots := limit * authRapidShare / 100
	coldSlots := limit - contentSlots - rapidSlots

	// Saved destinations must never resurface in the personalized blend, so
	// the rapid and cold tiers score against a pre-filtered catalog.
	// Content based applies its own saved+visited exclusion.
	savedSlugs, err := s.favorites.GetSavedSlugs(ctx, *userID)
	if err != nil {
		l.Warn("Failed to fetch saved slugs for exclusion", zap.Error(err))
		span.RecordError(err)
		savedSlugs = nil
	}
	unsaved := catalog
	if len(savedSlugs) > 0 {
		unsaved = make([]models.Destination, 0, len(catalog))
		for _, d := range catalog {
			if !savedSlugs[d.Slug] {
				unsaved = append(unsaved, d)
			}
		}
	}

	content, err := s.ScoreContentBased(ctx, *userID, catalog, contentSlots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Content based tier failed")
		return nil, fmt.Errorf("error scoring content based tier: %w", err)
	}
	rapid, err := s.ScoreRapidLearning(ctx, userID, sessionID, unsaved, rapidSlots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rapid learning tier failed")
		return nil, fmt.Errorf("error scoring rapid learning tier: %w", err)
	}
	cold := s.ScoreColdStart(ctx, unsaved, coldSlots)

	blended := append(content, rapid...)
	blended = append(blended, cold...)

	l.Debug("Hybrid blend assembled",
		zap.Int("content", len(content)),
		zap.Int("rapid", len(rapid)),
		zap.Int("cold", len(cold)))
	span.SetAttributes(attribute.String("hybrid.tier", "authenticated"))
	span.SetStatus(codes.Ok, "Hybrid scored (authenticated tier)")
	return dedupeBySlug(blended, limit), nil
}

// dedupeBySlug keeps the first occurrence of each slug and truncates to
// limit. May return fewer than limit when unique candidates run out.
func dedupeBySlug(scored []models.ScoredDestination, limit int) []models.ScoredDestination {
	seen := make(map[string]bool, len(scored))
	out := make([]models.ScoredDestination, 0, len(scored))
	for _, sd := range scored {
		if seen[sd.Destination.Slug] {
			continue
		}
		seen[sd.Destination.Slug] = true
		out = append(out, sd)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
