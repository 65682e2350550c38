package recommend

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

const (
	contentBothMatchScore     = 30.0
	contentCategoryMatchScore = 20.0
	contentCityMatchScore     = 15.0
	contentCrownBonus         = 5.0
	contentImageBonus         = 2.0

	contentBasedReason = "Inspired by the places you save"
)

// ScoreContentBased ranks candidates by similarity to the user's saved and
// visited places. Anything already saved or visited is excluded from the
// output. A user with no history falls back to cold start.
func (s *ServiceImpl) ScoreContentBased(ctx context.Context, userID string, catalog []models.Destination, limit int) ([]models.ScoredDestination, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "ScoreContentBased", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int("catalog.size", len(catalog)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "ScoreContentBased"), zap.String("userID", userID))

	saved, err := s.favorites.GetSavedDestinations(ctx, userID)
	if err != nil {
		l.Error("Failed to fetch saved destinations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch saved destinations")
		return nil, fmt.Errorf("error fetching saved destinations: %w", err)
	}

	visited, err := s.favorites.GetVisitedDestinations(ctx, userID)
	if err != nil {
		l.Error("Failed to fetch visited destinations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch visited destinations")
		return nil, fmt.Errorf("error fetching visited destinations: %w", err)
	}

	history := append(saved, visited...)
	if len(history) == 0 {
		// Defined fallback, not an error: no behavioral basis for
		// content matching yet.
		l.Debug("No saved or visited history, falling back to cold start")
		span.SetAttributes(attribute.Bool("fallback.cold_start", true))
		span.SetStatus(codes.Ok, "Fell back to cold start")
		return s.ScoreColdStart(ctx, catalog, limit), nil
	}

	preferredCategories := make(map[string]bool)
	preferredCities := make(map[string]bool)
	excluded := make(map[string]bool)
	for _, d := range history {
		preferredCategories[strings.ToLower(d.Category)] = true
		preferredCities[strings.ToLower(d.City)] = true
		excluded[d.Slug] = true
	}

	scored := make([]models.ScoredDestination, 0, len(catalog))
	for _, d := range catalog {
		if excluded[d.Slug] {
			continue
		}

		categoryMatch := preferredCategories[strings.ToLower(d.Category)]
		cityMatch := preferredCities[strings.ToLower(d.City)]

		var score float64
		switch {
		case categoryMatch && cityMatch:
			score = contentBothMatchScore
		case categoryMatch:
			score = contentCategoryMatchScore
		case cityMatch:
			score = contentCityMatchScore
		}
		if d.Crown {
			score += contentCrownBonus
		}
		if d.HasImage {
			score += contentImageBonus
		}
		score += s.jitter()

		scored = append(scored, models.ScoredDestination{
			Destination: d,
			Score:       score,
			Reason:      contentBasedReason,
		})
	}

	l.Debug("Content based scoring complete",
		zap.Int("history", len(history)),
		zap.Int("candidates", len(scored)))
	span.SetStatus(codes.Ok, "Content based scored")
	return rankAndTruncate(scored, limit), nil
}
