// internal/matching/dto.go
package matching

// DTOs for API requests/responses

type SwipeRequestDTO struct {
	TargetID       int64    `json:"target_id" validate:"required"`
	Direction      string   `json:"direction" validate:"required,oneof=like dislike super_like"`
	SwipeLatencyMs int      `json:"swipe_latency_ms,omitempty" validate:"omitempty,min=0"`
	ViewDurationMs int      `json:"view_duration_ms,omitempty" validate:"omitempty,min=0"`
	ViewedSections []string `json:"viewed_sections,omitempty" validate:"omitempty,max=20"`
}

type SwipeResult struct {
	IsMatch bool   `json:"is_match"`
	Match   *Match `json:"match,omitempty"`
}

type RecommendationsParams struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	BestEffort bool `json:"best_effort"`
}

// RankedCandidate is one entry of a ranking result.
type RankedCandidate struct {
	CandidateID int64               `json:"candidate_id"`
	Profile     *UserProfile        `json:"profile"`
	Score       *CompatibilityScore `json:"score"`
}

// CandidateFilters are the cheap pre-filters applied in SQL before scoring.
type CandidateFilters struct {
	Gender      string  `json:"gender"` // empty means any
	MinAge      int     `json:"min_age"`
	MaxAge      int     `json:"max_age"`
	MinLat      float64 `json:"min_lat"`
	MaxLat      float64 `json:"max_lat"`
	MinLng      float64 `json:"min_lng"`
	MaxLng      float64 `json:"max_lng"`
	Limit       int     `json:"limit"`
}
