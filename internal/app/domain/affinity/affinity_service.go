package affinity

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/interaction"
	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// Interaction-type weights for affinity accumulation. A save is the
// strongest intent signal, a passive view the weakest. Types absent from
// the table (filter, scroll) carry no base weight and contribute only the
// engaged-attention bonus.
var interactionWeights = map[models.InteractionType]float64{
	models.InteractionView:   1,
	models.InteractionClick:  2,
	models.InteractionVisit:  3,
	models.InteractionSearch: 4,
	models.InteractionSave:   5,
}

// engagedAttentionBonus is added when the user dwelled longer than
// engagedAttentionSeconds on an event, which signals attention rather than
// a bounce.
const (
	engagedAttentionBonus   = 2.0
	engagedAttentionSeconds = 30
)

var _ Calculator = (*CalculatorImpl)(nil)

// Calculator derives normalized per-category and per-city preference scores
// from interaction history.
type Calculator interface {
	ComputeAffinity(ctx context.Context, userID *string, sessionID string) (*models.AffinityProfile, error)
}

type CalculatorImpl struct {
	logger *zap.Logger
	repo   interaction.Repository
	cache  *gocache.Cache
}

func NewCalculatorImpl(repo interaction.Repository, logger *zap.Logger) *CalculatorImpl {
	return &CalculatorImpl{
		logger: logger,
		repo:   repo,
		// A feed request fans out into several scoring calls that all want
		// the same profile; the short TTL keeps them from re-reading the log.
		cache: gocache.New(30*time.Second, time.Minute),
	}
}

// ComputeAffinity builds the affinity profile for a session, folding in the
// user's cross-session history when a user id is present. An empty history
// yields empty maps, never an error.
func (c *CalculatorImpl) ComputeAffinity(ctx context.Context, userID *string, sessionID string) (*models.AffinityProfile, error) {
	ctx, span := otel.Tracer("AffinityCalculator").Start(ctx, "ComputeAffinity", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	cacheKey := sessionID
	if userID != nil {
		cacheKey = sessionID + ":" + *userID
	}
	if cached, found := c.cache.Get(cacheKey); found {
		span.SetStatus(codes.Ok, "Affinity served from cache")
		return cached.(*models.AffinityProfile), nil
	}

	l := c.logger.With(zap.String("method", "ComputeAffinity"), zap.String("sessionID", sessionID))

	events, err := c.repo.GetBySession(ctx, sessionID)
	if err != nil {
		l.Error("Failed to fetch session interactions", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch session interactions")
		return nil, fmt.Errorf("error fetching session interactions: %w", err)
	}

	if userID != nil && *userID != "" {
		userEvents, err := c.repo.GetByUser(ctx, *userID)
		if err != nil {
			// Degrade to session-only affinity rather than failing the request.
			l.Warn("Failed to fetch user interactions, using session history only", zap.Error(err))
			span.RecordError(err)
		} else {
			// The user query also returns the current session's rows; keep
			// only other sessions so no event counts twice.
			for _, e := range userEvents {
				if e.SessionID != sessionID {
					events = append(events, e)
				}
			}
		}
	}

	profile := Accumulate(events)
	c.cache.SetDefault(cacheKey, profile)

	l.Debug("Computed affinity profile",
		zap.Int("events", len(events)),
		zap.Int("categories", len(profile.CategoryScores)),
		zap.Int("cities", len(profile.CityScores)))
	span.SetStatus(codes.Ok, "Affinity computed")
	return profile, nil
}

// Accumulate derives the normalized affinity profile from a slice of events.
// Pure function so scoring tests can exercise it without a store.
func Accumulate(events []models.InteractionEvent) *models.AffinityProfile {
	rawCategories := make(map[string]float64)
	rawCities := make(map[string]float64)

	for _, e := range events {
		weight := interactionWeights[e.Type]
		if e.DurationSeconds != nil && *e.DurationSeconds > engagedAttentionSeconds {
			weight += engagedAttentionBonus
		}
		if weight == 0 {
			continue
		}
		if e.Category != nil && *e.Category != "" {
			rawCategories[strings.ToLower(*e.Category)] += weight
		}
		if e.City != nil && *e.City != "" {
			rawCities[strings.ToLower(*e.City)] += weight
		}
	}

	return &models.AffinityProfile{
		CategoryScores: normalize(rawCategories),
		CityScores:     normalize(rawCities),
	}
}

// normalize divides every raw score by the maximum observed, flooring the
// divisor at 1 so an empty map stays empty instead of producing NaNs.
func normalize(raw map[string]float64) map[string]float64 {
	maxScore := 1.0
	for _, v := range raw {
		if v > maxScore {
			maxScore = v
		}
	}

	normalized := make(map[string]float64, len(raw))
	for k, v := range raw {
		normalized[k] = v / maxScore
	}
	return normalized
}
