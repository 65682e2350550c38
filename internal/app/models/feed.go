package models

import "time"

// FeedType selects one of the four discovery feeds.
type FeedType string

const (
	FeedForYou     FeedType = "for-you"
	FeedTrending   FeedType = "trending"
	FeedHiddenGems FeedType = "hidden-gems"
	FeedNew        FeedType = "new"
)

func (f FeedType) Valid() bool {
	switch f {
	case FeedForYou, FeedTrending, FeedHiddenGems, FeedNew:
		return true
	}
	return false
}

// FeedMetadata carries the inferred taste summary attached to personalized
// feed responses.
type FeedMetadata struct {
	TopCategories []string `json:"topCategories,omitempty"`
	TopCities     []string `json:"topCities,omitempty"`
}

// FeedResult is one page of an assembled discovery feed.
type FeedResult struct {
	Items    []ScoredDestination `json:"items"`
	HasMore  bool                `json:"hasMore"`
	Metadata FeedMetadata        `json:"metadata"`
}

// StopType distinguishes planned visits from spliced-in meals and breaks.
type StopType string

const (
	StopDestination StopType = "destination"
	StopMeal        StopType = "meal"
	StopBreak       StopType = "break"
)

// OptimizedStop is one entry of a day itinerary produced by the route
// optimizer, in chronological order.
type OptimizedStop struct {
	Destination             Destination `json:"destination"`
	StartTime               time.Time   `json:"startTime"`
	EndTime                 time.Time   `json:"endTime"`
	DurationMinutes         int         `json:"durationMinutes"`
	TravelTimeToNextMinutes *int        `json:"travelTimeToNextMinutes,omitempty"`
	TravelMode              string      `json:"travelMode"`
	Type                    StopType    `json:"type"`
}
