package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

type MockCalculator struct {
	mock.Mock
}

func (m *MockCalculator) ComputeAffinity(ctx context.Context, userID *string, sessionID string) (*models.AffinityProfile, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AffinityProfile), args.Error(1)
}

type MockFavoritesRepository struct {
	mock.Mock
}

func (m *MockFavoritesRepository) GetSavedDestinations(ctx context.Context, userID string) ([]models.Destination, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Destination), args.Error(1)
}

func (m *MockFavoritesRepository) GetVisitedDestinations(ctx context.Context, userID string) ([]models.Destination, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Destination), args.Error(1)
}

func (m *MockFavoritesRepository) GetSavedSlugs(ctx context.Context, userID string) (map[string]bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockFavoritesRepository) GetSavedDiningInCity(ctx context.Context, userID, city string) ([]models.Destination, error) {
	args := m.Called(ctx, userID, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Destination), args.Error(1)
}

func (m *MockFavoritesRepository) GetPreferences(ctx context.Context, userID string) ([]string, []string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]string), args.Get(1).([]string), args.Error(2)
}

type MockInteractionRepository struct {
	mock.Mock
}

func (m *MockInteractionRepository) RecordInteraction(ctx context.Context, event *models.InteractionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockInteractionRepository) GetBySession(ctx context.Context, sessionID string) ([]models.InteractionEvent, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InteractionEvent), args.Error(1)
}

func (m *MockInteractionRepository) GetByUser(ctx context.Context, userID string) ([]models.InteractionEvent, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InteractionEvent), args.Error(1)
}

// fixedRand pins the jitter term so scores are deterministic.
type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

func setupRecommendTest(hour int) (*ServiceImpl, *MockCalculator, *MockFavoritesRepository, *MockInteractionRepository) {
	mockAffinity := new(MockCalculator)
	mockFavorites := new(MockFavoritesRepository)
	mockInteractions := new(MockInteractionRepository)
	svc := NewServiceImpl(mockAffinity, mockFavorites, mockInteractions, zap.NewNop(),
		WithRandSource(fixedRand{}),
		WithClock(func() time.Time {
			return time.Date(2026, 8, 28, hour, 0, 0, 0, time.UTC)
		}),
	)
	return svc, mockAffinity, mockFavorites, mockInteractions
}

func dest(slug, category, city string) models.Destination {
	return models.Destination{Slug: slug, Name: slug, Category: category, City: city}
}

func slugs(scored []models.ScoredDestination) []string {
	out := make([]string, 0, len(scored))
	for _, sd := range scored {
		out = append(out, sd.Destination.Slug)
	}
	return out
}

func TestServiceImpl_ScoreColdStart(t *testing.T) {
	ctx := context.Background()

	t.Run("morning favors cafes over museums", func(t *testing.T) {
		svc, _, _, _ := setupRecommendTest(9)
		catalog := []models.Destination{
			dest("museum-1", "museum", "lisbon"),
			dest("cafe-1", "cafe", "lisbon"),
		}

		scored := svc.ScoreColdStart(ctx, catalog, 10)

		require.Len(t, scored, 2)
		assert.Equal(t, "cafe-1", scored[0].Destination.Slug)
		assert.InDelta(t, 20.0, scored[0].Score, 1e-9)
		assert.InDelta(t, 10.0, scored[1].Score, 1e-9)
		assert.Equal(t, "Popular pick for the morning", scored[0].Reason)
	})

	t.Run("crown and image bonuses apply", func(t *testing.T) {
		svc, _, _, _ := setupRecommendTest(9)
		curated := dest("bar-1", "bar", "lisbon")
		curated.Crown = true
		curated.HasImage = true
		catalog := []models.Destination{
			dest("museum-1", "museum", "lisbon"),
			curated,
		}

		scored := svc.ScoreColdStart(ctx, catalog, 10)

		require.Len(t, scored, 2)
		// bar has no morning multiplier: 10 + crown 5 + image 3
		assert.Equal(t, "bar-1", scored[0].Destination.Slug)
		assert.InDelta(t, 18.0, scored[0].Score, 1e-9)
	})

	t.Run("evening favors restaurants and bars", func(t *testing.T) {
		svc, _, _, _ := setupRecommendTest(19)
		catalog := []models.Destination{
			dest("cafe-1", "cafe", "lisbon"),
			dest("restaurant-1", "restaurant", "lisbon"),
		}

		scored := svc.ScoreColdStart(ctx, catalog, 10)

		assert.Equal(t, "restaurant-1", scored[0].Destination.Slug)
		assert.Equal(t, "Popular pick for the evening", scored[0].Reason)
	})

	t.Run("truncates to limit", func(t *testing.T) {
		svc, _, _, _ := setupRecommendTest(9)
		catalog := []models.Destination{
			dest("a", "cafe", "lisbon"),
			dest("b", "cafe", "lisbon"),
			dest("c", "cafe", "lisbon"),
		}

		scored := svc.ScoreColdStart(ctx, catalog, 2)
		assert.Len(t, scored, 2)
	})

	t.Run("non-positive limit yields nothing", func(t *testing.T) {
		svc, _, _, _ := setupRecommendTest(9)
		catalog := []models.Destination{
			dest("a", "cafe", "lisbon"),
			dest("b", "cafe", "lisbon"),
		}

		assert.Empty(t, svc.ScoreColdStart(ctx, catalog, 0))
		assert.Empty(t, svc.ScoreColdStart(ctx, catalog, -1))
	})
}

func TestServiceImpl_ScoreRapidLearning(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks by affinity match", func(t *testing.T) {
		svc, mockAffinity, _, _ := setupRecommendTest(9)
		mockAffinity.On("ComputeAffinity", mock.Anything, (*string)(nil), "s1").Return(&models.AffinityProfile{
			CategoryScores: map[string]float64{"food": 1.0},
			CityScores:     map[string]float64{"lisbon": 0.5},
		}, nil).Once()

		catalog := []models.Destination{
			dest("culture-lisbon", "culture", "lisbon"),
			dest("food-lisbon", "food", "lisbon"),
			dest("food-porto", "food", "porto"),
		}

		scored, err := svc.ScoreRapidLearning(ctx, nil, "s1", catalog, 10)
		require.NoError(t, err)
		require.Len(t, scored, 3)

		// food-lisbon: 1.0*20 + 0.5*15 = 27.5; food-porto: 20; culture-lisbon: 7.5
		assert.Equal(t, []string{"food-lisbon", "food-porto", "culture-lisbon"}, slugs(scored))
		assert.InDelta(t, 27.5, scored[0].Score, 1e-9)
		assert.Equal(t, "In tune with what you're browsing right now", scored[0].Reason)
		mockAffinity.AssertExpectations(t)
	})

	t.Run("empty profile scores only curation bonuses", func(t *testing.T) {
		svc, mockAffinity, _, _ := setupRecommendTest(9)
		mockAffinity.On("ComputeAffinity", mock.Anything, (*string)(nil), "s2").
			Return(&models.AffinityProfile{
				CategoryScores: map[string]float64{},
				CityScores:     map[string]float64{},
			}, nil).Once()

		curated := dest("crowned", "food", "lisbon")
		curated.Crown = true
		catalog := []models.Destination{dest("plain", "food", "lisbon"), curated}

		scored, err := svc.ScoreRapidLearning(ctx, nil, "s2", catalog, 10)
		require.NoError(t, err)
		assert.Equal(t, "crowned", scored[0].Destination.Slug)
		assert.InDelta(t, 3.0, scored[0].Score, 1e-9)
	})
}

func TestServiceImpl_ScoreContentBased(t *testing.T) {
	ctx := context.Background()

	t.Run("matches saved taste and excludes history", func(t *testing.T) {
		svc, _, mockFavorites, _ := setupRecommendTest(9)
		mockFavorites.On("GetSavedDestinations", mock.Anything, "u1").
			Return([]models.Destination{dest("saved-1", "food", "lisbon")}, nil).Once()
		mockFavorites.On("GetVisitedDestinations", mock.Anything, "u1").
			Return([]models.Destination{}, nil).Once()

		catalog := []models.Destination{
			dest("saved-1", "food", "lisbon"),
			dest("both", "food", "lisbon"),
			dest("category-only", "food", "porto"),
			dest("city-only", "culture", "lisbon"),
			dest("neither", "culture", "porto"),
		}

		scored, err := svc.ScoreContentBased(ctx, "u1", catalog, 10)
		require.NoError(t, err)

		assert.NotContains(t, slugs(scored), "saved-1")
		assert.Equal(t, []string{"both", "category-only", "city-only", "neither"}, slugs(scored))
		assert.InDelta(t, 30.0, scored[0].Score, 1e-9)
		assert.InDelta(t, 20.0, scored[1].Score, 1e-9)
		assert.InDelta(t, 15.0, scored[2].Score, 1e-9)
		assert.Equal(t, "Inspired by the places you save", scored[0].Reason)
		mockFavorites.AssertExpectations(t)
	})

	t.Run("no history falls back to cold start", func(t *testing.T) {
		svc, _, mockFavorites, _ := setupRecommendTest(9)
		mockFavorites.On("GetSavedDestinations", mock.Anything, "u2").Return([]models.Destination{}, nil).Once()
		mockFavorites.On("GetVisitedDestinations", mock.Anything, "u2").Return([]models.Destination{}, nil).Once()

		catalog := []models.Destination{dest("cafe-1", "cafe", "lisbon")}

		scored, err := svc.ScoreContentBased(ctx, "u2", catalog, 10)
		require.NoError(t, err)
		require.Len(t, scored, 1)
		assert.Equal(t, "Popular pick for the morning", scored[0].Reason)
		mockFavorites.AssertExpectations(t)
	})
}

func TestServiceImpl_ScoreHybrid(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh session gets cold start only", func(t *testing.T) {
		svc, _, _, mockInteractions := setupRecommendTest(9)
		mockInteractions.On("GetBySession", mock.Anything, "fresh").Return([]models.InteractionEvent{}, nil).Once()

		catalog := []models.Destination{
			dest("a", "cafe", "lisbon"),
			dest("b", "museum", "lisbon"),
		}

		scored, err := svc.ScoreHybrid(ctx, nil, "fresh", catalog, 10)
		require.NoError(t, err)
		require.Len(t, scored, 2)
		for _, sd := range scored {
			assert.Equal(t, "Popular pick for the morning", sd.Reason)
		}
		mockInteractions.AssertExpectations(t)
	})

	t.Run("session with history blends rapid and cold", func(t *testing.T) {
		svc, mockAffinity, _, mockInteractions := setupRecommendTest(9)
		city := "lisbon"
		mockInteractions.On("GetBySession", mock.Anything, "active").Return([]models.InteractionEvent{
			{SessionID: "active", Type: models.InteractionView, City: &city},
		}, nil).Once()
		mockAffinity.On("ComputeAffinity", mock.Anything, (*string)(nil), "active").Return(&models.AffinityProfile{
			CategoryScores: map[string]float64{"food": 1.0},
			CityScores:     map[string]float64{},
		}, nil).Once()

		catalog := make([]models.Destination, 0, 12)
		for _, c := range []string{"food", "food", "food", "food", "food", "food", "cafe", "cafe", "cafe", "cafe", "museum", "museum"} {
			catalog = append(catalog, dest(c+"-"+string(rune('a'+len(catalog))), c, "lisbon"))
		}

		scored, err := svc.ScoreHybrid(ctx, nil, "active", catalog, 10)
		require.NoError(t, err)
		require.NotEmpty(t, scored)
		assert.LessOrEqual(t, len(scored), 10)

		// Rapid tier leads the blend, 60% of the limit.
		assert.Equal(t, "In tune with what you're browsing right now", scored[0].Reason)
		rapidCount := 0
		for _, sd := range scored {
			if sd.Reason == "In tune with what you're browsing right now" {
				rapidCount++
			}
		}
		assert.Equal(t, 6, rapidCount)

		seen := map[string]bool{}
		for _, sd := range scored {
			assert.False(t, seen[sd.Destination.Slug], "duplicate slug %s", sd.Destination.Slug)
			seen[sd.Destination.Slug] = true
		}
	})

	t.Run("authenticated blend never resurfaces saved places", func(t *testing.T) {
		svc, mockAffinity, mockFavorites, _ := setupRecommendTest(9)
		userID := "u1"

		mockFavorites.On("GetSavedSlugs", mock.Anything, userID).
			Return(map[string]bool{"saved-1": true}, nil).Once()
		mockFavorites.On("GetSavedDestinations", mock.Anything, userID).
			Return([]models.Destination{dest("saved-1", "food", "lisbon")}, nil).Once()
		mockFavorites.On("GetVisitedDestinations", mock.Anything, userID).
			Return([]models.Destination{}, nil).Once()
		mockAffinity.On("ComputeAffinity", mock.Anything, &userID, "s9").Return(&models.AffinityProfile{
			CategoryScores: map[string]float64{"food": 1.0},
			CityScores:     map[string]float64{},
		}, nil).Once()

		catalog := []models.Destination{
			dest("saved-1", "food", "lisbon"),
			dest("a", "food", "lisbon"),
			dest("b", "food", "porto"),
			dest("c", "cafe", "lisbon"),
			dest("d", "museum", "lisbon"),
			dest("e", "culture", "porto"),
		}

		scored, err := svc.ScoreHybrid(ctx, &userID, "s9", catalog, 5)
		require.NoError(t, err)
		require.NotEmpty(t, scored)

		assert.NotContains(t, slugs(scored), "saved-1")
		// Content tier leads the authenticated blend.
		assert.Equal(t, "Inspired by the places you save", scored[0].Reason)

		seen := map[string]bool{}
		for _, sd := range scored {
			assert.False(t, seen[sd.Destination.Slug], "duplicate slug %s", sd.Destination.Slug)
			seen[sd.Destination.Slug] = true
		}
		mockFavorites.AssertExpectations(t)
	})

	t.Run("small limits keep zero-slot tiers empty", func(t *testing.T) {
		svc, mockAffinity, mockFavorites, _ := setupRecommendTest(9)
		userID := "u3"

		mockFavorites.On("GetSavedSlugs", mock.Anything, userID).
			Return(map[string]bool{"saved-1": true}, nil).Once()
		mockFavorites.On("GetSavedDestinations", mock.Anything, userID).
			Return([]models.Destination{dest("saved-1", "food", "lisbon")}, nil).Once()
		mockFavorites.On("GetVisitedDestinations", mock.Anything, userID).
			Return([]models.Destination{}, nil).Once()
		mockAffinity.On("ComputeAffinity", mock.Anything, &userID, "s10").Return(&models.AffinityProfile{
			CategoryScores: map[string]float64{"food": 1.0},
			CityScores:     map[string]float64{},
		}, nil).Once()

		catalog := []models.Destination{
			dest("saved-1", "food", "lisbon"),
			dest("both", "food", "lisbon"),
			dest("cafe-1", "cafe", "lisbon"),
			dest("cafe-2", "cafe", "lisbon"),
		}

		// Limit 3 gives the rapid tier zero slots (3*30/100); it must
		// contribute nothing instead of flooding the blend.
		scored, err := svc.ScoreHybrid(ctx, &userID, "s10", catalog, 3)
		require.NoError(t, err)
		require.Len(t, scored, 3)

		counts := map[string]int{}
		for _, sd := range scored {
			counts[sd.Reason]++
		}
		assert.Equal(t, 1, counts["Inspired by the places you save"])
		assert.Equal(t, 0, counts["In tune with what you're browsing right now"])
		assert.Equal(t, 2, counts["Popular pick for the morning"])
	})
}
