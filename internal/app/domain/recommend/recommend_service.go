package recommend

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/affinity"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/favorites"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/interaction"
	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// jitterScale bounds the random diversity term added to every strategy's
// score. The jitter exists purely so repeated calls don't return identical
// orderings; it must stay small against the deterministic weights.
const jitterScale = 5.0

// randSource is the injectable randomness behind the jitter term. Production
// uses math/rand; tests inject a fixed source.
type randSource interface {
	Float64() float64
}

var _ Service = (*ServiceImpl)(nil)

// Service is the scoring engine: four interchangeable strategies producing
// ranked destination lists with human-readable reasons.
type Service interface {
	ScoreColdStart(ctx context.Context, catalog []models.Destination, limit int) []models.ScoredDestination
	ScoreRapidLearning(ctx context.Context, userID *string, sessionID string, catalog []models.Destination, limit int) ([]models.ScoredDestination, error)
	ScoreContentBased(ctx context.Context, userID string, catalog []models.Destination, limit int) ([]models.ScoredDestination, error)
	ScoreHybrid(ctx context.Context, userID *string, sessionID string, catalog []models.Destination, limit int) ([]models.ScoredDestination, error)
}

type ServiceImpl struct {
	logger       *zap.Logger
	affinity     affinity.Calculator
	favorites    favorites.Repository
	interactions interaction.Repository
	rng          randSource
	now          func() time.Time
}

// Option customizes a ServiceImpl; used by tests to pin the jitter and clock.
type Option func(*ServiceImpl)

func WithRandSource(rng randSource) Option {
	return func(s *ServiceImpl) { s.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(s *ServiceImpl) { s.now = now }
}

func NewServiceImpl(
	affinityCalc affinity.Calculator,
	favoritesRepo favorites.Repository,
	interactionRepo interaction.Repository,
	logger *zap.Logger,
	opts ...Option,
) *ServiceImpl {
	s := &ServiceImpl{
		logger:       logger,
		affinity:     affinityCalc,
		favorites:    favoritesRepo,
		interactions: interactionRepo,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ServiceImpl) jitter() float64 {
	return s.rng.Float64() * jitterScale
}

// rankAndTruncate sorts descending by score keeping catalog order on ties,
// then cuts to limit. A non-positive limit yields nothing: the hybrid blend
// computes tier slots as shares of the page size, and a zero-slot tier must
// contribute zero results.
func rankAndTruncate(scored []models.ScoredDestination, limit int) []models.ScoredDestination {
	if limit <= 0 {
		return []models.ScoredDestination{}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
