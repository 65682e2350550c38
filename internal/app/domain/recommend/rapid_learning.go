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
	rapidCategoryWeight = 20.0
	rapidCityWeight     = 15.0
	rapidCrownBonus     = 3.0
	rapidImageBonus     = 2.0

	rapidLearningReason = "In tune with what you're browsing right now"
)

// ScoreRapidLearning ranks the catalog against the current session's
// affinity profile. Works without a persistent account; a user id, when
// present, deepens the profile with cross-session history.
func (s *ServiceImpl) ScoreRapidLearning(ctx context.Context, userID *string, sessionID string, catalog []models.Destination, limit int) ([]models.ScoredDestination, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "ScoreRapidLearning", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("catalog.size", len(catalog)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "ScoreRapidLearning"), zap.String("sessionID", sessionID))

	profile, err := s.affinity.ComputeAffinity(ctx, userID, sessionID)
	if err != nil {
		l.Error("Failed to compute session affinity", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to compute session affinity")
		return nil, fmt.Errorf("error computing session affinity: %w", err)
	}

	scored := make([]models.ScoredDestination, 0, len(catalog))
	for _, d := range catalog {
		score := profile.CategoryScores[strings.ToLower(d.Category)]*rapidCategoryWeight +
			profile.CityScores[strings.ToLower(d.City)]*rapidCityWeight
		if d.Crown {
			score += rapidCrownBonus
		}
		if d.HasImage {
			score += rapidImageBonus
		}
		score += s.jitter()

		scored = append(scored, models.ScoredDestination{
			Destination: d,
			Score:       score,
			Reason:      rapidLearningReason,
		})
	}

	l.Debug("Rapid learning scoring complete", zap.Int("candidates", len(scored)))
	span.SetStatus(codes.Ok, "Rapid learning scored")
	return rankAndTruncate(scored, limit), nil
}
