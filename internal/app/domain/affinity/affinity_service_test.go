package affinity

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

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func event(t models.InteractionType, category, city string) models.InteractionEvent {
	e := models.InteractionEvent{SessionID: "s1", Type: t}
	if category != "" {
		e.Category = &category
	}
	if city != "" {
		e.City = &city
	}
	return e
}

func TestAccumulate(t *testing.T) {
	t.Run("weights by interaction type", func(t *testing.T) {
		// One save (5) and one view (1) of the same category: the save
		// dominates and normalization pins the max at 1.0.
		profile := Accumulate([]models.InteractionEvent{
			event(models.InteractionSave, "food", "lisbon"),
			event(models.InteractionView, "culture", "porto"),
		})

		assert.InDelta(t, 1.0, profile.CategoryScores["food"], 1e-9)
		assert.InDelta(t, 0.2, profile.CategoryScores["culture"], 1e-9)
		assert.InDelta(t, 1.0, profile.CityScores["lisbon"], 1e-9)
		assert.InDelta(t, 0.2, profile.CityScores["porto"], 1e-9)
	})

	t.Run("engaged attention bonus", func(t *testing.T) {
		long := event(models.InteractionView, "food", "")
		long.DurationSeconds = intPtr(45)
		short := event(models.InteractionView, "culture", "")
		short.DurationSeconds = intPtr(10)

		profile := Accumulate([]models.InteractionEvent{long, short})

		// view 1 + engaged 2 = 3 vs plain view 1
		assert.InDelta(t, 1.0, profile.CategoryScores["food"], 1e-9)
		assert.InDelta(t, 1.0/3.0, profile.CategoryScores["culture"], 1e-9)
	})

	t.Run("threshold is strict", func(t *testing.T) {
		exact := event(models.InteractionView, "food", "")
		exact.DurationSeconds = intPtr(30)
		plain := event(models.InteractionView, "culture", "")

		profile := Accumulate([]models.InteractionEvent{exact, plain})

		// 30 seconds exactly is not "longer than 30", so both score a plain view.
		assert.InDelta(t, profile.CategoryScores["culture"], profile.CategoryScores["food"], 1e-9)
	})

	t.Run("unweighted types contribute only the bonus", func(t *testing.T) {
		scroll := event(models.InteractionScroll, "food", "")
		scroll.DurationSeconds = intPtr(60)
		ignored := event(models.InteractionFilter, "culture", "")

		profile := Accumulate([]models.InteractionEvent{scroll, ignored})

		assert.InDelta(t, 1.0, profile.CategoryScores["food"], 1e-9)
		assert.NotContains(t, profile.CategoryScores, "culture")
	})

	t.Run("scores stay within unit interval", func(t *testing.T) {
		events := []models.InteractionEvent{
			event(models.InteractionSave, "food", "lisbon"),
			event(models.InteractionSave, "food", "lisbon"),
			event(models.InteractionSearch, "food", ""),
			event(models.InteractionClick, "culture", "porto"),
		}
		profile := Accumulate(events)

		for k, v := range profile.CategoryScores {
			assert.GreaterOrEqual(t, v, 0.0, k)
			assert.LessOrEqual(t, v, 1.0, k)
		}
		for k, v := range profile.CityScores {
			assert.GreaterOrEqual(t, v, 0.0, k)
			assert.LessOrEqual(t, v, 1.0, k)
		}
	})

	t.Run("empty history yields empty maps", func(t *testing.T) {
		profile := Accumulate(nil)

		assert.Empty(t, profile.CategoryScores)
		assert.Empty(t, profile.CityScores)
	})

	t.Run("category names are case insensitive", func(t *testing.T) {
		profile := Accumulate([]models.InteractionEvent{
			event(models.InteractionView, "Food", ""),
			event(models.InteractionView, "food", ""),
		})

		assert.Len(t, profile.CategoryScores, 1)
		assert.InDelta(t, 1.0, profile.CategoryScores["food"], 1e-9)
	})
}

func TestCalculatorImpl_ComputeAffinity(t *testing.T) {
	ctx := context.Background()

	t.Run("merges session and user history", func(t *testing.T) {
		mockRepo := new(MockInteractionRepository)
		calc := NewCalculatorImpl(mockRepo, zap.NewNop())

		olderSave := event(models.InteractionSave, "culture", "")
		olderSave.SessionID = "s0"

		mockRepo.On("GetBySession", mock.Anything, "s1").
			Return([]models.InteractionEvent{event(models.InteractionView, "food", "")}, nil).Once()
		mockRepo.On("GetByUser", mock.Anything, "u1").
			Return([]models.InteractionEvent{olderSave}, nil).Once()

		profile, err := calc.ComputeAffinity(ctx, strPtr("u1"), "s1")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, profile.CategoryScores["culture"], 1e-9)
		assert.InDelta(t, 0.2, profile.CategoryScores["food"], 1e-9)
		mockRepo.AssertExpectations(t)
	})

	t.Run("counts the current session's events once", func(t *testing.T) {
		mockRepo := new(MockInteractionRepository)
		calc := NewCalculatorImpl(mockRepo, zap.NewNop())

		// The user query returns the session's view again plus an older save.
		sessionView := event(models.InteractionView, "food", "")
		olderSave := event(models.InteractionSave, "culture", "")
		olderSave.SessionID = "s0"

		mockRepo.On("GetBySession", mock.Anything, "s1").
			Return([]models.InteractionEvent{sessionView}, nil).Once()
		mockRepo.On("GetByUser", mock.Anything, "u5").
			Return([]models.InteractionEvent{sessionView, olderSave}, nil).Once()

		profile, err := calc.ComputeAffinity(ctx, strPtr("u5"), "s1")
		require.NoError(t, err)
		// One view against one save: 1/5, not the doubled 2/5.
		assert.InDelta(t, 0.2, profile.CategoryScores["food"], 1e-9)
		assert.InDelta(t, 1.0, profile.CategoryScores["culture"], 1e-9)
		mockRepo.AssertExpectations(t)
	})

	t.Run("degrades to session history when user fetch fails", func(t *testing.T) {
		mockRepo := new(MockInteractionRepository)
		calc := NewCalculatorImpl(mockRepo, zap.NewNop())

		mockRepo.On("GetBySession", mock.Anything, "s2").
			Return([]models.InteractionEvent{event(models.InteractionView, "food", "")}, nil).Once()
		mockRepo.On("GetByUser", mock.Anything, "u2").
			Return(nil, errors.New("db down")).Once()

		profile, err := calc.ComputeAffinity(ctx, strPtr("u2"), "s2")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, profile.CategoryScores["food"], 1e-9)
		mockRepo.AssertExpectations(t)
	})

	t.Run("session fetch failure is an error", func(t *testing.T) {
		mockRepo := new(MockInteractionRepository)
		calc := NewCalculatorImpl(mockRepo, zap.NewNop())

		mockRepo.On("GetBySession", mock.Anything, "s3").Return(nil, errors.New("db down")).Once()

		_, err := calc.ComputeAffinity(ctx, nil, "s3")
		require.Error(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("serves repeated calls from cache", func(t *testing.T) {
		mockRepo := new(MockInteractionRepository)
		calc := NewCalculatorImpl(mockRepo, zap.NewNop())

		mockRepo.On("GetBySession", mock.Anything, "s4").
			Return([]models.InteractionEvent{event(models.InteractionView, "food", "")}, nil).Once()

		first, err := calc.ComputeAffinity(ctx, nil, "s4")
		require.NoError(t, err)
		second, err := calc.ComputeAffinity(ctx, nil, "s4")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		mockRepo.AssertExpectations(t)
	})
}
