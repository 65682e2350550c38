package feed

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/favorites"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/recommend"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/trending"
	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// Hidden-gem scoring: quality signals up, popularity down. Only candidates
// clearing hiddenGemThreshold make the feed.
const (
	hiddenGemMichelinWeight = 10.0
	hiddenGemCrownBonus     = 15.0
	hiddenGemThreshold      = 5.0
)

// StatsReader is the slice of the trending repository the assembler needs
// for hidden-gem save counts.
type StatsReader interface {
	GetStatsBySlugs(ctx context.Context, slugs []string) (map[string]models.DestinationStats, error)
}

// HistoryReader is the slice of the interaction repository the personalized
// feed needs to keep recently viewed destinations off the page.
type HistoryReader interface {
	GetBySession(ctx context.Context, sessionID string) ([]models.InteractionEvent, error)
	GetByUser(ctx context.Context, userID string) ([]models.InteractionEvent, error)
}

// recentViewWindow bounds how long a viewed destination stays out of the
// personalized feed before it may resurface.
const recentViewWindow = 24 * time.Hour

type randSource interface {
	Float64() float64
}

var _ Service = (*ServiceImpl)(nil)

// Service assembles the four discovery feeds from scoring output, with
// pagination, dedup, and exclusion rules.
type Service interface {
	GetFeed(ctx context.Context, userID *string, sessionID string, feedType models.FeedType, limit, offset int, catalog []models.Destination) (*models.FeedResult, error)
}

type ServiceImpl struct {
	logger    *zap.Logger
	scorer    recommend.Service
	trending  trending.Service
	favorites favorites.Repository
	stats     StatsReader
	history   HistoryReader
	rng       randSource
}

type Option func(*ServiceImpl)

func WithRandSource(rng randSource) Option {
	return func(s *ServiceImpl) { s.rng = rng }
}

func NewServiceImpl(
	scorer recommend.Service,
	trendingSvc trending.Service,
	favoritesRepo favorites.Repository,
	stats StatsReader,
	history HistoryReader,
	logger *zap.Logger,
	opts ...Option,
) *ServiceImpl {
	s := &ServiceImpl{
		logger:    logger,
		scorer:    scorer,
		trending:  trendingSvc,
		favorites: favoritesRepo,
		stats:     stats,
		history:   history,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetFeed builds one page of the requested feed type.
func (s *ServiceImpl) GetFeed(ctx context.Context, userID *string, sessionID string, feedType models.FeedType, limit, offset int, catalog []models.Destination) (*models.FeedResult, error) {
	ctx, span := otel.Tracer("FeedService").Start(ctx, "GetFeed", trace.WithAttributes(
		attribute.String("feed.type", string(feedType)),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
		attribute.Int("catalog.size", len(catalog)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetFeed"), zap.String("feedType", string(feedType)))

	if !feedType.Valid() {
		span.SetStatus(codes.Error, "Unknown feed type")
		return nil, fmt.Errorf("unknown feed type %q: %w", feedType, models.ErrBadRequest)
	}
	if limit <= 0 || offset < 0 {
		span.SetStatus(codes.Error, "Invalid pagination")
		return nil, fmt.Errorf("limit must be positive and offset non-negative: %w", models.ErrBadRequest)
	}

	var (
		result *models.FeedResult
		err    error
	)
	switch feedType {
	case models.FeedForYou:
		result, err = s.forYouFeed(ctx, userID, sessionID, limit, offset, catalog)
	case models.FeedTrending:
		result, err = s.trendingFeed(ctx, limit, offset, catalog)
	case models.FeedHiddenGems:
		result, err = s.hiddenGemsFeed(ctx, limit, offset, catalog)
	case models.FeedNew:
		result, err = s.newFeed(limit, offset, catalog)
	}
	if err != nil {
		l.Error("Failed to assemble feed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to assemble feed")
		return nil, err
	}

	l.Debug("Feed assembled", zap.Int("items", len(result.Items)), zap.Bool("hasMore", result.HasMore))
	span.SetStatus(codes.Ok, "Feed assembled")
	return result, nil
}

// forYouFeed runs the hybrid scorer over the catalog minus saved and recently
// viewed places and attaches the inferred taste summary as metadata.
func (s *ServiceImpl) forYouFeed(ctx context.Context, userID *string, sessionID string, limit, offset int, catalog []models.Destination) (*models.FeedResult, error) {
	metadata := models.FeedMetadata{}

	excluded := make(map[string]bool)
	if userID != nil && *userID != "" {
		savedSlugs, err := s.favorites.GetSavedSlugs(ctx, *userID)
		if err != nil {
			// Degrade to an unfiltered feed rather than failing the request.
			s.logger.Warn("Failed to fetch saved slugs for feed exclusion", zap.Error(err))
		}
		for slug := range savedSlugs {
			excluded[slug] = true
		}

		categories, cities, err := s.favorites.GetPreferences(ctx, *userID)
		if err == nil {
			metadata.TopCategories = categories
			metadata.TopCities = cities
		}
	}
	s.markRecentlyViewed(ctx, userID, sessionID, excluded)

	if len(excluded) > 0 {
		filtered := make([]models.Destination, 0, len(catalog))
		for _, d := range catalog {
			if !excluded[d.Slug] {
				filtered = append(filtered, d)
			}
		}
		catalog = filtered
	}
	total := len(catalog)

	scored, err := s.scorer.ScoreHybrid(ctx, userID, sessionID, catalog, offset+limit)
	if err != nil {
		return nil, fmt.Errorf("error scoring personalized feed: %w", err)
	}

	return &models.FeedResult{
		Items:    page(scored, limit, offset),
		HasMore:  offset+limit < total,
		Metadata: metadata,
	}, nil
}

// markRecentlyViewed adds destinations the identity viewed inside
// recentViewWindow to the exclusion set. History outages degrade to no
// exclusion.
func (s *ServiceImpl) markRecentlyViewed(ctx context.Context, userID *string, sessionID string, excluded map[string]bool) {
	events, err := s.history.GetBySession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to fetch session history for feed exclusion", zap.Error(err))
	}
	if userID != nil && *userID != "" {
		userEvents, err := s.history.GetByUser(ctx, *userID)
		if err != nil {
			s.logger.Warn("Failed to fetch user history for feed exclusion", zap.Error(err))
		} else {
			events = append(events, userEvents...)
		}
	}

	cutoff := time.Now().Add(-recentViewWindow)
	for _, e := range events {
		if e.Type != models.InteractionView || e.DestinationSlug == nil {
			continue
		}
		if e.Timestamp.Before(cutoff) {
			continue
		}
		excluded[*e.DestinationSlug] = true
	}
}

func (s *ServiceImpl) trendingFeed(ctx context.Context, limit, offset int, catalog []models.Destination) (*models.FeedResult, error) {
	// One extra row answers hasMore without a separate count.
	scored, err := s.trending.GetTrending(ctx, offset+limit+1, catalog)
	if err != nil {
		return nil, fmt.Errorf("error assembling trending feed: %w", err)
	}

	return &models.FeedResult{
		Items:   page(scored, limit, offset),
		HasMore: len(scored) > offset+limit,
	}, nil
}

// hiddenGemsFeed surfaces quality destinations (Michelin stars, crown) with
// disproportionately low save counts.
func (s *ServiceImpl) hiddenGemsFeed(ctx context.Context, limit, offset int, catalog []models.Destination) (*models.FeedResult, error) {
	slugs := make([]string, 0, len(catalog))
	for _, d := range catalog {
		slugs = append(slugs, d.Slug)
	}

	stats, err := s.stats.GetStatsBySlugs(ctx, slugs)
	if err != nil {
		// Destinations with no stats row score as never-saved, which is the
		// hidden-gem friendly reading.
		s.logger.Warn("Failed to fetch stats for hidden gems, treating all as unsaved", zap.Error(err))
		stats = map[string]models.DestinationStats{}
	}

	var gems []models.ScoredDestination
	for _, d := range catalog {
		score := float64(d.MichelinStars) * hiddenGemMichelinWeight
		if d.Crown {
			score += hiddenGemCrownBonus
		}
		score -= float64(stats[d.Slug].SaveCount)

		if score > hiddenGemThreshold {
			gems = append(gems, models.ScoredDestination{
				Destination: d,
				Score:       score,
				Reason:      "A quality spot most travelers haven't found yet",
			})
		}
	}

	sort.SliceStable(gems, func(i, j int) bool {
		return gems[i].Score > gems[j].Score
	})

	return &models.FeedResult{
		Items:   page(gems, limit, offset),
		HasMore: offset+limit < len(gems),
	}, nil
}

// newFeed shuffles the catalog pseudo-randomly. Placeholder policy: the
// catalog carries created_at, so a real recency ordering is the intended
// replacement.
func (s *ServiceImpl) newFeed(limit, offset int, catalog []models.Destination) (*models.FeedResult, error) {
	shuffled := make([]models.Destination, len(catalog))
	copy(shuffled, catalog)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := int(s.rng.Float64() * float64(i+1))
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	scored := make([]models.ScoredDestination, 0, len(shuffled))
	for _, d := range shuffled {
		scored = append(scored, models.ScoredDestination{
			Destination: d,
			Reason:      "Fresh on the map",
		})
	}

	return &models.FeedResult{
		Items:   page(scored, limit, offset),
		HasMore: offset+limit < len(catalog),
	}, nil
}

func page(items []models.ScoredDestination, limit, offset int) []models.ScoredDestination {
	if offset >= len(items) {
		return []models.ScoredDestination{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
