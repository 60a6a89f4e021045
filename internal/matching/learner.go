package matching

import (
	"context"
	"math"
	"sync"
	"time"
)

// LearnerConfig carries the implicit-preference learning knobs.
type LearnerConfig struct {
	WindowSize       int     // most recent swipes considered per run
	MinLikes         int     // below this a run is an insufficient-data no-op
	RefreshThreshold int     // swipes between scheduled runs
	AgeSpreadFloor   float64 // years; keeps the age model from collapsing
	LearningRate     float64 // per-swipe tag weight delta
	SuperLikeBoost   float64 // multiplier applied to super-like deltas
}

// DefaultLearnerConfig returns the shipped learner settings.
func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		WindowSize:       200,
		MinLikes:         3,
		RefreshThreshold: 20,
		AgeSpreadFloor:   5,
		LearningRate:     0.1,
		SuperLikeBoost:   2,
	}
}

// LearnerStrategy derives an updated preference model from a swipe window.
// It returns ok=false when the window carries too little signal; callers
// must then leave any prior model untouched. The strategy is a boundary so
// a richer model can replace the weighted-affinity one without touching the
// aggregator or ranker.
type LearnerStrategy interface {
	Learn(prior *PreferenceModel, window []*SwipeWithTarget) (model *PreferenceModel, ok bool)
}

// weightedAffinityStrategy is the default learner: bounded per-tag affinity
// deltas from likes and dislikes, plus a liked-age center and spread.
type weightedAffinityStrategy struct {
	cfg LearnerConfig
}

func NewWeightedAffinityStrategy(cfg LearnerConfig) LearnerStrategy {
	return &weightedAffinityStrategy{cfg: cfg}
}

func (s *weightedAffinityStrategy) Learn(prior *PreferenceModel, window []*SwipeWithTarget) (*PreferenceModel, bool) {
	likes := 0
	for _, swipe := range window {
		if swipe.Direction.IsPositive() {
			likes++
		}
	}
	if likes < s.cfg.MinLikes {
		return nil, false
	}

	weights := make(map[string]float64)
	if prior != nil {
		for tag, w := range prior.TagWeights {
			weights[tag] = w
		}
	}

	var likedAges []float64
	for _, swipe := range window {
		delta := s.cfg.LearningRate
		switch swipe.Direction {
		case SwipeSuperLike:
			delta *= s.cfg.SuperLikeBoost
			likedAges = append(likedAges, float64(swipe.TargetAge))
		case SwipeLike:
			likedAges = append(likedAges, float64(swipe.TargetAge))
		case SwipeDislike:
			delta = -delta
		default:
			continue
		}

		for _, tag := range swipe.TargetInterests {
			// Clamp rather than rescale: a single outlier swipe can
			// never dominate the learned weights.
			weights[tag] = clampWeight(weights[tag] + delta)
		}
	}

	center, spread := meanAndStddev(likedAges)
	if spread < s.cfg.AgeSpreadFloor {
		spread = s.cfg.AgeSpreadFloor
	}

	return &PreferenceModel{
		TagWeights:  weights,
		AgeCenter:   center,
		AgeSpread:   spread,
		SampleCount: len(window),
		UpdatedAt:   time.Now(),
	}, true
}

func clampWeight(w float64) float64 {
	return math.Min(1, math.Max(-1, w))
}

func meanAndStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}

	return mean, math.Sqrt(sq / float64(len(values)))
}

// Learner refreshes one user's preference model from their swipe history.
// Runs for the same user are serialized by a per-user lock so two
// concurrent refreshes cannot interleave partial computations; the model
// row itself is replaced wholesale by the repository.
type Learner struct {
	repo     Repository
	strategy LearnerStrategy
	cfg      LearnerConfig

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewLearner(repo Repository, strategy LearnerStrategy, cfg LearnerConfig) *Learner {
	return &Learner{
		repo:     repo,
		strategy: strategy,
		cfg:      cfg,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Refresh recomputes and persists the user's model. Insufficient history is
// not an error: the run no-ops and any prior model stays untouched.
func (l *Learner) Refresh(ctx context.Context, userID int64) error {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	window, err := l.repo.GetRecentSwipes(ctx, userID, l.cfg.WindowSize)
	if err != nil {
		return err
	}

	prior, err := l.repo.LoadPreferenceModel(ctx, userID)
	if err != nil && err != ErrModelNotFound {
		return err
	}

	model, ok := l.strategy.Learn(prior, window)
	if !ok {
		return nil
	}

	model.UserID = userID
	if err := l.repo.SavePreferenceModel(ctx, model); err != nil {
		return err
	}

	recordLearnerRun()
	return nil
}

func (l *Learner) userLock(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}
