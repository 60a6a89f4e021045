package matching

import (
	"math"
	"time"
)

// MatchingEngine computes the compatibility of one (viewer, candidate)
// pair. Implementations must be pure: same inputs and configuration always
// produce the same score, with no I/O, so candidates can be scored
// concurrently without coordination.
type MatchingEngine interface {
	CalculateCompatibility(viewer, candidate *UserProfile, model *PreferenceModel) *CompatibilityScore
}

// EngineConfig carries the scoring knobs. Weights are validated at startup.
type EngineConfig struct {
	Weights            Weights
	DefaultMaxDistance float64 // km, used when the viewer set no distance preference
	MinModelSamples    int     // below this the learned age spread is not trusted
	DefaultAgeSpread   float64 // years
}

type matchingEngine struct {
	cfg EngineConfig
}

func NewMatchingEngine(cfg EngineConfig) MatchingEngine {
	return &matchingEngine{cfg: cfg}
}

func (m *matchingEngine) CalculateCompatibility(viewer, candidate *UserProfile, model *PreferenceModel) *CompatibilityScore {
	factors := FactorBreakdown{
		Interest:    interestScore(viewer.Interests, candidate.Interests),
		Demographic: demographicScore(viewer, candidate),
		Location:    m.locationScore(viewer, candidate),
		Behavioral:  m.behavioralScore(model, candidate),
	}
	return aggregate(m.cfg.Weights, factors, time.Now())
}

// interestScore is the Jaccard similarity of two interest-tag sets.
// An empty union scores 0: no shared or individual interests is treated
// as neutral-low, not undefined.
func interestScore(interests1, interests2 []string) float64 {
	if len(interests1) == 0 && len(interests2) == 0 {
		return 0
	}

	interestSet := make(map[string]bool, len(interests1))
	for _, interest := range interests1 {
		interestSet[interest] = true
	}

	matches := 0
	seen := make(map[string]bool, len(interests2))
	for _, interest := range interests2 {
		if seen[interest] {
			continue
		}
		seen[interest] = true
		if interestSet[interest] {
			matches++
		}
	}

	union := len(interestSet) + len(seen) - matches
	if union == 0 {
		return 0
	}

	return float64(matches) / float64(union)
}

// demographicScore awards half for the candidate's age falling inside the
// viewer's stated range and half for a gender-preference match. A missing
// preference defaults its half to a neutral 0.5 so new users without
// preferences still receive recommendations.
func demographicScore(viewer, candidate *UserProfile) float64 {
	ageHalf := 0.5
	if viewer.PreferredMinAge != nil && viewer.PreferredMaxAge != nil {
		if candidate.Age >= *viewer.PreferredMinAge && candidate.Age <= *viewer.PreferredMaxAge {
			ageHalf = 0.5
		} else {
			ageHalf = 0
		}
	}

	genderHalf := 0.5
	if viewer.PreferredGender != nil && *viewer.PreferredGender != "" {
		if *viewer.PreferredGender == "any" || *viewer.PreferredGender == candidate.Gender {
			genderHalf = 0.5
		} else {
			genderHalf = 0
		}
	}

	return ageHalf + genderHalf
}

// locationScore decays linearly with great-circle distance and clamps to
// [0,1]. Candidates beyond the max distance score 0 but are not excluded
// here; pool exclusion is a ranker policy, not a scoring concern.
func (m *matchingEngine) locationScore(viewer, candidate *UserProfile) float64 {
	maxDistance := m.cfg.DefaultMaxDistance
	if viewer.PreferredMaxDistance != nil && *viewer.PreferredMaxDistance > 0 {
		maxDistance = *viewer.PreferredMaxDistance
	}

	distance := haversineKm(viewer.Latitude, viewer.Longitude, candidate.Latitude, candidate.Longitude)

	score := 1 - distance/maxDistance
	return math.Min(1.0, math.Max(0, score))
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371 // km

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
