package trending

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

type MockTrendingRepository struct {
	mock.Mock
}

func (m *MockTrendingRepository) UpsertEvent(ctx context.Context, slug string, action models.StatsAction) (*models.DestinationStats, error) {
	args := m.Called(ctx, slug, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DestinationStats), args.Error(1)
}

func (m *MockTrendingRepository) ListTopSlugs(ctx context.Context, candidateSlugs []string, limit int) ([]string, error) {
	args := m.Called(ctx, candidateSlugs, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTrendingRepository) GetStatsBySlugs(ctx context.Context, slugs []string) (map[string]models.DestinationStats, error) {
	args := m.Called(ctx, slugs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.DestinationStats), args.Error(1)
}

func TestServiceImpl_RecordEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("valid event is recorded", func(t *testing.T) {
		mockRepo := new(MockTrendingRepository)
		svc := NewServiceImpl(mockRepo, zap.NewNop())

		mockRepo.On("UpsertEvent", mock.Anything, "alfama-viewpoint", models.StatsActionView).
			Return(&models.DestinationStats{DestinationSlug: "alfama-viewpoint", ViewCount: 1, TrendingScore: 1}, nil).Once()

		err := svc.RecordEvent(ctx, "alfama-viewpoint", models.StatsActionView)
		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("missing slug is rejected", func(t *testing.T) {
		mockRepo := new(MockTrendingRepository)
		svc := NewServiceImpl(mockRepo, zap.NewNop())

		err := svc.RecordEvent(ctx, "", models.StatsActionView)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrBadRequest)
		mockRepo.AssertNotCalled(t, "UpsertEvent")
	})

	t.Run("unknown action is rejected", func(t *testing.T) {
		mockRepo := new(MockTrendingRepository)
		svc := NewServiceImpl(mockRepo, zap.NewNop())

		err := svc.RecordEvent(ctx, "alfama-viewpoint", models.StatsAction("click"))
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrBadRequest)
		mockRepo.AssertNotCalled(t, "UpsertEvent")
	})
}

func TestServiceImpl_GetTrending(t *testing.T) {
	ctx := context.Background()

	catalog := []models.Destination{
		{Slug: "a", Name: "A"},
		{Slug: "b", Name: "B"},
		{Slug: "c", Name: "C"},
	}

	t.Run("ranks only the caller's catalog", func(t *testing.T) {
		mockRepo := new(MockTrendingRepository)
		svc := NewServiceImpl(mockRepo, zap.NewNop())

		// The tracker ranks exactly the catalog slugs, so globally hotter
		// destinations outside the catalog can never starve the page.
		mockRepo.On("ListTopSlugs", mock.Anything, []string{"a", "b", "c"}, 2).
			Return([]string{"c", "a"}, nil).Once()
		mockRepo.On("GetStatsBySlugs", mock.Anything, []string{"c", "a"}).
			Return(map[string]models.DestinationStats{
				"c": {DestinationSlug: "c", TrendingScore: 40},
				"a": {DestinationSlug: "a", TrendingScore: 30},
			}, nil).Once()

		trending, err := svc.GetTrending(ctx, 2, catalog)
		require.NoError(t, err)
		require.Len(t, trending, 2)
		assert.Equal(t, "c", trending[0].Destination.Slug)
		assert.InDelta(t, 40.0, trending[0].Score, 1e-9)
		assert.Equal(t, "a", trending[1].Destination.Slug)
		assert.Equal(t, "Trending with other travelers", trending[0].Reason)
		mockRepo.AssertExpectations(t)
	})

	t.Run("small catalog fills the page from its own slugs", func(t *testing.T) {
		mockRepo := new(MockTrendingRepository)
		svc := NewServiceImpl(mockRepo, zap.NewNop())

		smallCatalog := []models.Destination{{Slug: "quiet-town-cafe", Name: "Quiet Town Cafe"}}

		mockRepo.On("ListTopSlugs", mock.Anything, []string{"quiet-town-cafe"}, 10).
			Return([]string{"quiet-town-cafe"}, nil).Once()
		mockRepo.On("GetStatsBySlugs", mock.Anything, []string{"quiet-town-cafe"}).
			Return(map[string]models.DestinationStats{
				"quiet-town-cafe": {DestinationSlug: "quiet-town-cafe", TrendingScore: 2},
			}, nil).Once()

		trending, err := svc.GetTrending(ctx, 10, smallCatalog)
		require.NoError(t, err)
		require.Len(t, trending, 1)
		assert.Equal(t, "quiet-town-cafe", trending[0].Destination.Slug)
		mockRepo.AssertExpectations(t)
	})

	t.Run("repository failure surfaces", func(t *testing.T) {
		mockRepo := new(MockTrendingRepository)
		svc := NewServiceImpl(mockRepo, zap.NewNop())

		mockRepo.On("ListTopSlugs", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("redis and pg down")).Once()

		_, err := svc.GetTrending(ctx, 5, catalog)
		require.Error(t, err)
		mockRepo.AssertExpectations(t)
	})
}
