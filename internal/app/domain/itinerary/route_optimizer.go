package itinerary

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/pkg/geo"
)

// DistanceEstimator abstracts the external travel-time service. One attempt,
// no retries; any failure makes the optimizer fall back to a bounded-random
// estimate.
type DistanceEstimator interface {
	EstimateTravel(ctx context.Context, fromLat, fromLng, toLat, toLng float64, mode string) (time.Duration, error)
}

// Category visit priority. Low numbers go earlier in the day so meal and
// culture stops spread out instead of clustering by insertion order.
var categoryPriority = map[string]int{
	"cafe":        1,
	"cafes":       1,
	"coffee":      1,
	"bakery":      1,
	"bakeries":    1,
	"culture":     2,
	"museum":      2,
	"gallery":     2,
	"dining":      3,
	"restaurant":  3,
	"restaurants": 3,
	"food":        3,
	"bar":         4,
	"bars":        4,
	"nightlife":   4,
	"hotel":       5,
	"hotels":      5,
}

const defaultCategoryPriority = 3

// Visit durations per category, in minutes.
var visitDurations = map[string]int{
	"dining":      90,
	"restaurant":  90,
	"restaurants": 90,
	"food":        90,
	"culture":     120,
	"museum":      120,
	"gallery":     120,
	"hotel":       30,
	"hotels":      30,
	"bar":         60,
	"bars":        60,
	"nightlife":   60,
	"cafe":        45,
	"cafes":       45,
	"coffee":      45,
	"bakery":      20,
	"bakeries":    20,
}

const (
	defaultVisitMinutes = 60
	mealDurationMinutes = 60

	lunchWindowStart  = 12
	lunchWindowEnd    = 14
	dinnerWindowStart = 18
	dinnerWindowEnd   = 20

	// Bounded-random travel fallback in [15,29] minutes.
	fallbackTravelMinMinutes  = 15
	fallbackTravelSpanMinutes = 15
)

type randSource interface {
	Float64() float64
}

var _ Optimizer = (*OptimizerImpl)(nil)

// Optimizer builds a chronologically ordered day itinerary from a selection
// of destinations in one city.
type Optimizer interface {
	OptimizeRoute(ctx context.Context, selected []models.Destination, startTime time.Time, city string, savedPlacesInCity []models.Destination) []models.OptimizedStop
}

type OptimizerImpl struct {
	logger     *zap.Logger
	distance   DistanceEstimator
	travelMode string
	rng        randSource
}

type Option func(*OptimizerImpl)

func WithRandSource(rng randSource) Option {
	return func(o *OptimizerImpl) { o.rng = rng }
}

// NewOptimizerImpl builds the optimizer. A nil estimator is allowed; travel
// times then always use the bounded-random fallback.
func NewOptimizerImpl(distance DistanceEstimator, travelMode string, logger *zap.Logger, opts ...Option) *OptimizerImpl {
	if travelMode == "" {
		travelMode = "walking"
	}
	o := &OptimizerImpl{
		logger:     logger,
		distance:   distance,
		travelMode: travelMode,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// routeState is the explicit fold state of the itinerary walk: the running
// clock, which meal windows have been satisfied, and the stops so far.
type routeState struct {
	clock          time.Time
	lunchInserted  bool
	dinnerInserted bool
	stops          []models.OptimizedStop
}

// OptimizeRoute orders the selection by category priority, walks it with a
// running clock, splices in meal stops when the clock enters an unserved
// meal window, and estimates travel time between consecutive stops. Route
// construction always completes for a non-empty selection.
func (o *OptimizerImpl) OptimizeRoute(ctx context.Context, selected []models.Destination, startTime time.Time, city string, savedPlacesInCity []models.Destination) []models.OptimizedStop {
	ctx, span := otel.Tracer("RouteOptimizer").Start(ctx, "OptimizeRoute", trace.WithAttributes(
		attribute.Int("selection.size", len(selected)),
		attribute.String("city", city),
	))
	defer span.End()

	l := o.logger.With(zap.String("method", "OptimizeRoute"), zap.String("city", city))

	if len(selected) == 0 {
		span.SetStatus(codes.Ok, "Empty selection")
		return nil
	}

	ordered := make([]models.Destination, len(selected))
	copy(ordered, selected)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priorityFor(ordered[i].Category) < priorityFor(ordered[j].Category)
	})

	diningPool := mealCandidates(selected, savedPlacesInCity)

	state := &routeState{clock: startTime}
	for _, d := range ordered {
		if !isDiningCategory(d.Category) {
			diningPool = o.maybeInsertMeal(ctx, state, diningPool)
		}
		o.appendStop(ctx, state, d, models.StopDestination, visitMinutesFor(d.Category))
	}
	// The last visit may have pushed the clock into a meal window.
	o.maybeInsertMeal(ctx, state, diningPool)

	l.Debug("Route optimized",
		zap.Int("stops", len(state.stops)),
		zap.Time("start", startTime),
		zap.Time("end", state.clock))
	span.SetAttributes(attribute.Int("route.stops", len(state.stops)))
	span.SetStatus(codes.Ok, "Route optimized")
	return state.stops
}

// maybeInsertMeal splices a 60-minute dining stop in when the clock sits in
// an unserved lunch or dinner window and a candidate is available. Returns
// the remaining candidate pool.
func (o *OptimizerImpl) maybeInsertMeal(ctx context.Context, state *routeState, diningPool []models.Destination) []models.Destination {
	hour := state.clock.Hour()

	inLunch := hour >= lunchWindowStart && hour < lunchWindowEnd && !state.lunchInserted
	inDinner := hour >= dinnerWindowStart && hour < dinnerWindowEnd && !state.dinnerInserted
	if (!inLunch && !inDinner) || len(diningPool) == 0 {
		return diningPool
	}

	meal := diningPool[0]
	o.appendStop(ctx, state, meal, models.StopMeal, mealDurationMinutes)
	if inLunch {
		state.lunchInserted = true
	} else {
		state.dinnerInserted = true
	}
	return diningPool[1:]
}

// appendStop estimates travel from the previous stop, advances the clock,
// and appends the new stop.
func (o *OptimizerImpl) appendStop(ctx context.Context, state *routeState, d models.Destination, stopType models.StopType, durationMinutes int) {
	if len(state.stops) > 0 {
		prev := &state.stops[len(state.stops)-1]
		travelMinutes := o.estimateTravelMinutes(ctx, prev.Destination, d)
		prev.TravelTimeToNextMinutes = &travelMinutes
		state.clock = state.clock.Add(time.Duration(travelMinutes) * time.Minute)
	}

	start := state.clock
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	state.stops = append(state.stops, models.OptimizedStop{
		Destination:     d,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: durationMinutes,
		TravelMode:      o.travelMode,
		Type:            stopType,
	})
	state.clock = end
}

// estimateTravelMinutes asks the distance service when both stops carry
// coordinates, silently substituting the bounded-random fallback on any
// failure so route construction never aborts.
func (o *OptimizerImpl) estimateTravelMinutes(ctx context.Context, from, to models.Destination) int {
	if o.distance != nil &&
		geo.HasValidCoordinates(from.Latitude, from.Longitude) &&
		geo.HasValidCoordinates(to.Latitude, to.Longitude) {
		duration, err := o.distance.EstimateTravel(ctx, from.Latitude, from.Longitude, to.Latitude, to.Longitude, o.travelMode)
		if err == nil && duration > 0 {
			return int(duration.Minutes())
		}
		if err != nil {
			o.logger.Warn("Distance estimation failed, using fallback",
				zap.String("from", from.Slug),
				zap.String("to", to.Slug),
				zap.Error(err))
		}
	}
	return fallbackTravelMinMinutes + int(o.rng.Float64()*fallbackTravelSpanMinutes)
}

// mealCandidates returns the saved dining places in the city that aren't
// already part of the selection.
func mealCandidates(selected, savedPlacesInCity []models.Destination) []models.Destination {
	selectedSlugs := make(map[string]bool, len(selected))
	for _, d := range selected {
		selectedSlugs[d.Slug] = true
	}

	var pool []models.Destination
	for _, d := range savedPlacesInCity {
		if isDiningCategory(d.Category) && !selectedSlugs[d.Slug] {
			pool = append(pool, d)
		}
	}
	return pool
}

func isDiningCategory(category string) bool {
	switch strings.ToLower(category) {
	case "dining", "restaurant", "restaurants", "food":
		return true
	}
	return false
}

func priorityFor(category string) int {
	if p, ok := categoryPriority[strings.ToLower(category)]; ok {
		return p
	}
	return defaultCategoryPriority
}

func visitMinutesFor(category string) int {
	if m, ok := visitDurations[strings.ToLower(category)]; ok {
		return m
	}
	return defaultVisitMinutes
}
