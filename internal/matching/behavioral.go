package matching

import "math"

// behavioralScore folds the viewer's learned implicit preferences into a
// [0,1] score for the candidate. A viewer with no model yet scores a fixed
// neutral 0.5 rather than failing.
//
// The score averages two signals:
//   - mean learned affinity over the candidate's interest tags, mapped from
//     [-1,1] to [0,1]; tags absent from the model contribute a neutral 0
//     affinity
//   - a Gaussian proximity between candidate age and the learned age
//     center, width given by the learned spread
func (m *matchingEngine) behavioralScore(model *PreferenceModel, candidate *UserProfile) float64 {
	if model == nil || model.SampleCount == 0 {
		return 0.5
	}

	var affinitySum float64
	for _, tag := range candidate.Interests {
		affinitySum += model.TagWeights[tag] // missing tags read as 0
	}

	tagScore := 0.5
	if len(candidate.Interests) > 0 {
		mean := affinitySum / float64(len(candidate.Interests))
		tagScore = (mean + 1) / 2
	}

	spread := model.AgeSpread
	if model.SampleCount < m.cfg.MinModelSamples || spread <= 0 {
		// Too little data to trust the learned spread; fall back to the
		// configured default so a handful of swipes cannot overfit.
		spread = m.cfg.DefaultAgeSpread
	}

	ageDelta := float64(candidate.Age) - model.AgeCenter
	ageScore := math.Exp(-(ageDelta * ageDelta) / (2 * spread * spread))

	return clamp01((tagScore + ageScore) / 2)
}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0, v))
}
