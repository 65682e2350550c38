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

// daySegment buckets the clock into the five segments the cold-start
// strategy weights categories by.
type daySegment string

const (
	segmentMorning   daySegment = "morning"   // 06:00–11:00
	segmentLunch     daySegment = "lunch"     // 11:00–14:00
	segmentAfternoon daySegment = "afternoon" // 14:00–17:00
	segmentEvening   daySegment = "evening"   // 17:00–22:00
	segmentNight     daySegment = "night"     // 22:00–06:00
)

func segmentForHour(hour int) daySegment {
	switch {
	case hour >= 6 && hour < 11:
		return segmentMorning
	case hour >= 11 && hour < 14:
		return segmentLunch
	case hour >= 14 && hour < 17:
		return segmentAfternoon
	case hour >= 17 && hour < 22:
		return segmentEvening
	default:
		return segmentNight
	}
}

// Per-segment category multipliers. Categories absent from a segment's table
// score the neutral 1.0.
var timeOfDayWeights = map[daySegment]map[string]float64{
	segmentMorning: {
		"cafe":      2.0,
		"coffee":    2.0,
		"bakery":    1.8,
		"breakfast": 1.8,
		"brunch":    1.5,
	},
	segmentLunch: {
		"restaurant":  1.8,
		"restaurants": 1.8,
		"dining":      1.6,
		"food":        1.5,
		"bistro":      1.5,
	},
	segmentAfternoon: {
		"culture":  1.5,
		"museum":   1.5,
		"gallery":  1.4,
		"park":     1.3,
		"shopping": 1.3,
	},
	segmentEvening: {
		"restaurant":  2.0,
		"restaurants": 2.0,
		"dining":      1.8,
		"bar":         1.8,
		"nightlife":   1.6,
	},
	segmentNight: {
		"bar":       2.0,
		"bars":      2.0,
		"nightlife": 2.0,
		"club":      1.8,
	},
}

func timeOfDayWeight(segment daySegment, category string) float64 {
	if weights, ok := timeOfDayWeights[segment]; ok {
		if w, ok := weights[strings.ToLower(category)]; ok {
			return w
		}
	}
	return 1.0
}

const (
	coldStartCrownBonus = 5.0
	coldStartImageBonus = 3.0
)

// ScoreColdStart ranks the catalog with no behavioral signal at all: time of
// day, curation quality, and a little jitter for variety across calls.
func (s *ServiceImpl) ScoreColdStart(ctx context.Context, catalog []models.Destination, limit int) []models.ScoredDestination {
	_, span := otel.Tracer("RecommendService").Start(ctx, "ScoreColdStart", trace.WithAttributes(
		attribute.Int("catalog.size", len(catalog)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	segment := segmentForHour(s.now().Hour())
	scored := s.scoreColdStartAt(segment, catalog)

	s.logger.Debug("Cold start scoring complete",
		zap.String("method", "ScoreColdStart"),
		zap.String("segment", string(segment)),
		zap.Int("candidates", len(scored)))
	span.SetAttributes(attribute.String("time.segment", string(segment)))
	span.SetStatus(codes.Ok, "Cold start scored")

	return rankAndTruncate(scored, limit)
}

func (s *ServiceImpl) scoreColdStartAt(segment daySegment, catalog []models.Destination) []models.ScoredDestination {
	scored := make([]models.ScoredDestination, 0, len(catalog))
	for _, d := range catalog {
		score := timeOfDayWeight(segment, d.Category) * 10
		if d.Crown {
			score += coldStartCrownBonus
		}
		if d.HasImage {
			score += coldStartImageBonus
		}
		score += s.jitter()

		scored = append(scored, models.ScoredDestination{
			Destination: d,
			Score:       score,
			Reason:      coldStartReason(segment),
		})
	}
	return scored
}

func coldStartReason(segment daySegment) string {
	return fmt.Sprintf("Popular pick for the %s", segment)
}
