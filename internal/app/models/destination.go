package models

import "time"

// Destination is a single row of the curated catalog. The catalog is
// read-only input for the discovery core; it is fetched fresh per request.
type Destination struct {
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	City          string    `json:"city"`
	Category      string    `json:"category"`
	Rating        *float64  `json:"rating,omitempty"`
	MichelinStars int       `json:"michelinStars"`
	Crown         bool      `json:"crown"`
	HasImage      bool      `json:"hasImage"`
	Latitude      float64   `json:"latitude,omitempty"`
	Longitude     float64   `json:"longitude,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// ScoredDestination is the output unit of every scoring strategy. Lists are
// ordered descending by score; ties keep catalog iteration order.
type ScoredDestination struct {
	Destination Destination `json:"destination"`
	Score       float64     `json:"score"`
	Reason      string      `json:"reason"`
}

// DestinationStats tracks per-destination popularity counters and the
// time-decayed trending score. One row per destination, created lazily on
// the first view/save event.
type DestinationStats struct {
	DestinationSlug string     `json:"destinationSlug"`
	ViewCount       int        `json:"viewCount"`
	SaveCount       int        `json:"saveCount"`
	TrendingScore   float64    `json:"trendingScore"`
	LastViewed      *time.Time `json:"lastViewed,omitempty"`
	LastSaved       *time.Time `json:"lastSaved,omitempty"`
}

// StatsAction is the subset of interaction types the trending tracker counts.
type StatsAction string

const (
	StatsActionView StatsAction = "view"
	StatsActionSave StatsAction = "save"
)

func (a StatsAction) Valid() bool {
	return a == StatsActionView || a == StatsActionSave
}
