package matching

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SwipeDirection is the decision a user records about a candidate.
type SwipeDirection string

const (
	SwipeLike      SwipeDirection = "like"
	SwipeDislike   SwipeDirection = "dislike"
	SwipeSuperLike SwipeDirection = "super_like"
)

// IsPositive reports whether the direction counts toward a mutual match.
func (d SwipeDirection) IsPositive() bool {
	return d == SwipeLike || d == SwipeSuperLike
}

// Valid reports whether d is one of the recognized directions.
func (d SwipeDirection) Valid() bool {
	return d == SwipeLike || d == SwipeDislike || d == SwipeSuperLike
}

// UserProfile is the slice of a user record the engine scores on.
// Profiles are owned by the registration/profile collaborator and are
// read-only here.
type UserProfile struct {
	ID          int64          `json:"id" db:"id"`
	DisplayName string         `json:"display_name" db:"display_name"`
	Age         int            `json:"age" db:"age"`
	Gender      string         `json:"gender" db:"gender"`

	Latitude  float64 `json:"latitude" db:"location_lat"`
	Longitude float64 `json:"longitude" db:"location_lng"`

	Interests pq.StringArray `json:"interests" db:"interests"`

	// Stated preferences. Nil means the user never set one; scoring and
	// candidate filtering substitute documented defaults instead of failing.
	PreferredGender      *string  `json:"preferred_gender,omitempty" db:"preferred_gender"`
	PreferredMinAge      *int     `json:"preferred_min_age,omitempty" db:"preferred_min_age"`
	PreferredMaxAge      *int     `json:"preferred_max_age,omitempty" db:"preferred_max_age"`
	PreferredMaxDistance *float64 `json:"preferred_max_distance,omitempty" db:"preferred_distance"`

	LastActive time.Time `json:"last_active" db:"last_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SwipeEvent is one decision by one user about one candidate. There is at
// most one current row per (actor, target) pair: a repeat swipe overwrites
// direction and metadata rather than accumulating history.
type SwipeEvent struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	ActorID        int64          `json:"actor_id" db:"actor_id"`
	TargetID       int64          `json:"target_id" db:"target_id"`
	Direction      SwipeDirection `json:"direction" db:"direction"`
	SwipeLatencyMs int            `json:"swipe_latency_ms" db:"swipe_latency_ms"`
	ViewDurationMs int            `json:"view_duration_ms" db:"view_duration_ms"`
	ViewedSections pq.StringArray `json:"viewed_sections" db:"viewed_sections"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// SwipeWithTarget joins a swipe event with the target attributes the
// learner reads. Fetched in one query so a learner run is a single scan.
type SwipeWithTarget struct {
	Direction       SwipeDirection `db:"direction"`
	TargetAge       int            `db:"target_age"`
	TargetInterests pq.StringArray `db:"target_interests"`
	CreatedAt       time.Time      `db:"created_at"`
}

// PreferenceModel is a user's learned implicit preference adjustment.
// It is always read and replaced as a whole unit; Version increments on
// every save so concurrent learner runs cannot interleave partial writes.
type PreferenceModel struct {
	UserID      int64              `json:"user_id"`
	TagWeights  map[string]float64 `json:"tag_weights"` // tag -> affinity in [-1,1]
	AgeCenter   float64            `json:"age_center"`
	AgeSpread   float64            `json:"age_spread"`
	SampleCount int                `json:"sample_count"`
	Version     int64              `json:"version"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// FactorBreakdown holds the four component scores, each in [0,1].
// Consumed directly by the "why this match" endpoint.
type FactorBreakdown struct {
	Interest    float64 `json:"interest"`
	Demographic float64 `json:"demographic"`
	Location    float64 `json:"location"`
	Behavioral  float64 `json:"behavioral"`
}

// CompatibilityScore is the output of scoring one (viewer, candidate) pair.
// Ephemeral: computed on demand, never persisted by the engine.
type CompatibilityScore struct {
	Overall    float64         `json:"overall"`
	Factors    FactorBreakdown `json:"factors"`
	ComputedAt time.Time       `json:"computed_at"`
}

// Match records a mutual like between two users. User1ID < User2ID always.
type Match struct {
	ID                 int64      `json:"id" db:"id"`
	User1ID            int64      `json:"user1_id" db:"user1_id"`
	User2ID            int64      `json:"user2_id" db:"user2_id"`
	CompatibilityScore *float64   `json:"compatibility_score,omitempty" db:"compatibility_score"`
	IsActive           bool       `json:"is_active" db:"is_active"`
	MatchedAt          time.Time  `json:"matched_at" db:"matched_at"`
	UnmatchedAt        *time.Time `json:"unmatched_at,omitempty" db:"unmatched_at"`

	MatchedUser *UserProfile `json:"matched_user,omitempty"`
}

// orderedPair normalizes a pair so (a,b) and (b,a) address the same match.
func orderedPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
