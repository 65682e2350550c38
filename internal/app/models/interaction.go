package models

import (
	"fmt"
	"time"
)

// InteractionType enumerates the behavioral events the interaction log
// accepts. The store boundary rejects anything else, so downstream scoring
// never sees free-form event names.
type InteractionType string

const (
	InteractionView   InteractionType = "view"
	InteractionClick  InteractionType = "click"
	InteractionSave   InteractionType = "save"
	InteractionVisit  InteractionType = "visit"
	InteractionSearch InteractionType = "search"
	InteractionFilter InteractionType = "filter"
	InteractionScroll InteractionType = "scroll"
)

func (t InteractionType) Valid() bool {
	switch t {
	case InteractionView, InteractionClick, InteractionSave,
		InteractionVisit, InteractionSearch, InteractionFilter, InteractionScroll:
		return true
	}
	return false
}

// InteractionEvent is one append-only row of the behavioral log. Immutable
// once written; the discovery core only ever reads these.
type InteractionEvent struct {
	SessionID       string            `json:"sessionId"`
	UserID          *string           `json:"userId,omitempty"`
	Type            InteractionType   `json:"type"`
	DestinationSlug *string           `json:"destinationSlug,omitempty"`
	City            *string           `json:"city,omitempty"`
	Category        *string           `json:"category,omitempty"`
	DurationSeconds *int              `json:"durationSeconds,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Validate enforces strict field presence per event type before the row is
// accepted into the log.
func (e *InteractionEvent) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("interaction requires a session id: %w", ErrValidation)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("unknown interaction type %q: %w", e.Type, ErrValidation)
	}
	switch e.Type {
	case InteractionView, InteractionClick, InteractionSave, InteractionVisit:
		if e.DestinationSlug == nil || *e.DestinationSlug == "" {
			return fmt.Errorf("%s interaction requires a destination slug: %w", e.Type, ErrValidation)
		}
	case InteractionSearch, InteractionFilter:
		if (e.Category == nil || *e.Category == "") && (e.City == nil || *e.City == "") {
			return fmt.Errorf("%s interaction requires a category or city: %w", e.Type, ErrValidation)
		}
	}
	if e.DurationSeconds != nil && *e.DurationSeconds < 0 {
		return fmt.Errorf("duration cannot be negative: %w", ErrValidation)
	}
	return nil
}

// AffinityProfile holds the normalized [0,1] preference strengths derived
// from a session's (and optionally a user's) interaction history.
type AffinityProfile struct {
	CategoryScores map[string]float64 `json:"categoryScores"`
	CityScores     map[string]float64 `json:"cityScores"`
}
