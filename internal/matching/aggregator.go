package matching

import (
	"fmt"
	"math"
	"time"
)

// Weights are the aggregator's factor weights. They are configuration, not
// code: tuning the balance between factors never requires touching the
// calculators or the learner.
type Weights struct {
	Interest    float64 `json:"interest"`
	Demographic float64 `json:"demographic"`
	Location    float64 `json:"location"`
	Behavioral  float64 `json:"behavioral"`
}

// DefaultWeights returns the shipped factor balance.
func DefaultWeights() Weights {
	return Weights{
		Interest:    0.4,
		Demographic: 0.3,
		Location:    0.2,
		Behavioral:  0.1,
	}
}

const weightSumTolerance = 1e-9

// Validate rejects weight sets that are negative or do not sum to 1.0.
// Called at configuration load; a violation refuses startup.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"interest":    w.Interest,
		"demographic": w.Demographic,
		"location":    w.Location,
		"behavioral":  w.Behavioral,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative, got %v", name, v)
		}
	}

	sum := w.Interest + w.Demographic + w.Location + w.Behavioral
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// aggregate combines the four factor scores into one overall score plus the
// breakdown. Pure function of (factors, weights); factor inputs are clamped
// so the overall score always lands in [0,1].
func aggregate(w Weights, f FactorBreakdown, at time.Time) *CompatibilityScore {
	f.Interest = clamp01(f.Interest)
	f.Demographic = clamp01(f.Demographic)
	f.Location = clamp01(f.Location)
	f.Behavioral = clamp01(f.Behavioral)

	overall := f.Interest*w.Interest +
		f.Demographic*w.Demographic +
		f.Location*w.Location +
		f.Behavioral*w.Behavioral

	return &CompatibilityScore{
		Overall:    clamp01(overall),
		Factors:    f,
		ComputedAt: at,
	}
}
