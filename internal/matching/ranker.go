package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// RankerConfig bounds the work a single ranking request may do.
type RankerConfig struct {
	Workers            int           // concurrent scorers per request
	PoolCap            int           // hard cap on the candidate pool
	Timeout            time.Duration // per-request scoring budget
	DefaultMaxDistance float64       // km, for viewers without a preference
	DefaultMinAge      int
	DefaultMaxAge      int
}

// DefaultRankerConfig returns the shipped ranking settings.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		Workers:            8,
		PoolCap:            500,
		Timeout:            3 * time.Second,
		DefaultMaxDistance: 100,
		DefaultMinAge:      18,
		DefaultMaxAge:      100,
	}
}

// Ranker retrieves a bounded candidate pool, scores it concurrently, and
// returns a deterministic, paginated ordering.
type Ranker struct {
	repo   Repository
	engine MatchingEngine
	cfg    RankerConfig
}

func NewRanker(repo Repository, engine MatchingEngine, cfg RankerConfig) *Ranker {
	return &Ranker{repo: repo, engine: engine, cfg: cfg}
}

// GetRecommendations scores the viewer's candidate pool and returns the
// slice [offset, offset+limit) of the ranking. With BestEffort set, a
// scoring deadline returns whatever candidates were scored in time (still
// fully sorted); otherwise the deadline is a Timeout error.
func (r *Ranker) GetRecommendations(ctx context.Context, viewerID int64, params *RecommendationsParams) ([]*RankedCandidate, error) {
	if params.Limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if params.Offset < 0 {
		return nil, ErrInvalidOffset
	}

	viewer, err := r.repo.GetUserProfile(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	model, err := r.repo.LoadPreferenceModel(ctx, viewerID)
	if err != nil && err != ErrModelNotFound {
		return nil, err
	}

	candidates, err := r.repo.FindCandidates(ctx, viewerID, r.candidateFilters(viewer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCandidatePool, err)
	}
	if len(candidates) == 0 {
		return []*RankedCandidate{}, nil
	}

	scoreCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	ranked, complete := r.scoreAll(scoreCtx, viewer, model, candidates)
	if !complete && !params.BestEffort {
		return nil, ErrRankingTimeout
	}

	sortRanked(ranked)

	return paginate(ranked, params.Offset, params.Limit), nil
}

// candidateFilters derives the cheap SQL pre-filters from the viewer's
// stated preferences, falling back to documented defaults (full age range,
// any gender, default max distance) when preferences are unset.
func (r *Ranker) candidateFilters(viewer *UserProfile) *CandidateFilters {
	filters := &CandidateFilters{
		MinAge: r.cfg.DefaultMinAge,
		MaxAge: r.cfg.DefaultMaxAge,
		Limit:  r.cfg.PoolCap,
	}

	if viewer.PreferredMinAge != nil {
		filters.MinAge = *viewer.PreferredMinAge
	}
	if viewer.PreferredMaxAge != nil {
		filters.MaxAge = *viewer.PreferredMaxAge
	}
	if viewer.PreferredGender != nil && *viewer.PreferredGender != "any" {
		filters.Gender = *viewer.PreferredGender
	}

	maxDistance := r.cfg.DefaultMaxDistance
	if viewer.PreferredMaxDistance != nil && *viewer.PreferredMaxDistance > 0 {
		maxDistance = *viewer.PreferredMaxDistance
	}
	filters.MinLat, filters.MaxLat, filters.MinLng, filters.MaxLng =
		boundingBox(viewer.Latitude, viewer.Longitude, maxDistance)

	return filters
}

// boundingBox converts a radius in km to coarse coordinate bounds. The box
// over-approximates near the poles, which is fine: it only trims the pool,
// the location score does the precise work.
func boundingBox(lat, lng, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	const kmPerDegreeLat = 111.0

	latDelta := radiusKm / kmPerDegreeLat
	lngDelta := 180.0
	if cos := math.Cos(lat * math.Pi / 180); cos > 0.01 {
		lngDelta = radiusKm / (kmPerDegreeLat * cos)
	}

	return lat - latDelta, lat + latDelta, lng - lngDelta, lng + lngDelta
}

// scoreAll fans candidates out to a bounded worker pool and collects the
// scores. Scoring is pure, so workers share nothing mutable. Returns
// complete=false when the context expired before every candidate was
// scored.
func (r *Ranker) scoreAll(ctx context.Context, viewer *UserProfile, model *PreferenceModel, candidates []*UserProfile) ([]*RankedCandidate, bool) {
	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *UserProfile)
	results := make(chan *RankedCandidate, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for candidate := range jobs {
				score := r.engine.CalculateCompatibility(viewer, candidate, model)
				recordCompatibilityScore(score.Overall)
				results <- &RankedCandidate{
					CandidateID: candidate.ID,
					Profile:     candidate,
					Score:       score,
				}
			}
		}()
	}

	complete := true
feed:
	for _, candidate := range candidates {
		select {
		case jobs <- candidate:
		case <-ctx.Done():
			complete = false
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	ranked := make([]*RankedCandidate, 0, len(candidates))
	for rc := range results {
		ranked = append(ranked, rc)
	}

	return ranked, complete
}

// sortRanked orders by score descending, breaking ties by most recently
// active candidate and then by candidate id so repeated rankings over
// unchanged data paginate identically.
func sortRanked(ranked []*RankedCandidate) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score.Overall != ranked[j].Score.Overall {
			return ranked[i].Score.Overall > ranked[j].Score.Overall
		}
		if !ranked[i].Profile.LastActive.Equal(ranked[j].Profile.LastActive) {
			return ranked[i].Profile.LastActive.After(ranked[j].Profile.LastActive)
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
}

func paginate(ranked []*RankedCandidate, offset, limit int) []*RankedCandidate {
	if offset >= len(ranked) {
		return []*RankedCandidate{}
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}
