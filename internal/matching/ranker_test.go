package matching

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testRankerConfig() RankerConfig {
	return RankerConfig{
		Workers:            4,
		PoolCap:            100,
		Timeout:            2 * time.Second,
		DefaultMaxDistance: 100,
		DefaultMinAge:      18,
		DefaultMaxAge:      100,
	}
}

// seedRankingPool sets up a viewer plus three candidates whose interest
// overlap gives them strictly decreasing scores: 2 > 3 > 4.
func seedRankingPool(repo *fakeRepository) {
	now := time.Now()

	repo.profiles[1] = &UserProfile{
		ID:         1,
		Age:        30,
		Gender:     "male",
		Interests:  []string{"hiking", "jazz", "film", "wine"},
		LastActive: now,
	}

	repo.candidates = []*UserProfile{
		{ID: 2, Age: 28, Gender: "female", Interests: []string{"hiking", "jazz", "film", "wine"}, LastActive: now},
		{ID: 3, Age: 29, Gender: "female", Interests: []string{"hiking", "jazz"}, LastActive: now},
		{ID: 4, Age: 31, Gender: "female", LastActive: now},
	}
}

func newTestRanker(repo *fakeRepository) *Ranker {
	return NewRanker(repo, NewMatchingEngine(testEngineConfig()), testRankerConfig())
}

func TestGetRecommendationsValidatesParams(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	seedRankingPool(repo)
	ranker := newTestRanker(repo)

	tests := []struct {
		name    string
		params  *RecommendationsParams
		wantErr error
	}{
		{"zero limit", &RecommendationsParams{Limit: 0}, ErrInvalidLimit},
		{"negative limit", &RecommendationsParams{Limit: -5}, ErrInvalidLimit},
		{"negative offset", &RecommendationsParams{Limit: 10, Offset: -1}, ErrInvalidOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ranker.GetRecommendations(ctx, 1, tt.params)
			if err != tt.wantErr {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetRecommendationsUnknownViewer(t *testing.T) {
	ctx := context.Background()
	ranker := newTestRanker(newFakeRepository())

	_, err := ranker.GetRecommendations(ctx, 99, &RecommendationsParams{Limit: 10})
	if err != ErrProfileNotFound {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestGetRecommendationsEmptyPool(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	repo.profiles[1] = &UserProfile{ID: 1, Age: 30, Interests: []string{"hiking"}}
	ranker := newTestRanker(repo)

	ranked, err := ranker.GetRecommendations(ctx, 1, &RecommendationsParams{Limit: 10})
	if err != nil {
		t.Fatalf("err = %v, want nil for an empty pool", err)
	}
	if len(ranked) != 0 {
		t.Errorf("got %d candidates from an empty pool", len(ranked))
	}
}

func TestGetRecommendationsPoolError(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	repo.profiles[1] = &UserProfile{ID: 1, Age: 30}
	repo.candidatesErr = errors.New("connection refused")
	ranker := newTestRanker(repo)

	_, err := ranker.GetRecommendations(ctx, 1, &RecommendationsParams{Limit: 10})
	if !errors.Is(err, ErrCandidatePool) {
		t.Errorf("err = %v, want ErrCandidatePool", err)
	}
}

func TestGetRecommendationsOrdering(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	seedRankingPool(repo)
	ranker := newTestRanker(repo)

	ranked, err := ranker.GetRecommendations(ctx, 1, &RecommendationsParams{Limit: 10})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}

	wantOrder := []int64{2, 3, 4}
	if len(ranked) != len(wantOrder) {
		t.Fatalf("got %d candidates, want %d", len(ranked), len(wantOrder))
	}
	for i, want := range wantOrder {
		if ranked[i].CandidateID != want {
			t.Errorf("position %d = user %d, want %d", i, ranked[i].CandidateID, want)
		}
	}

	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score.Overall > ranked[i-1].Score.Overall {
			t.Errorf("scores not descending at position %d", i)
		}
	}
}

func TestGetRecommendationsDeterministic(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	seedRankingPool(repo)
	ranker := newTestRanker(repo)

	first, err := ranker.GetRecommendations(ctx, 1, &RecommendationsParams{Limit: 10})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}

	for run := 0; run < 10; run++ {
		again, err := ranker.GetRecommendations(ctx, 1, &RecommendationsParams{Limit: 10})
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d returned %d candidates, first returned %d", run, len(again), len(first))
		}
		for i := range again {
			if again[i].CandidateID != first[i].CandidateID {
				t.Fatalf("run %d position %d = user %d, first run had %d",
					run, i, again[i].CandidateID, first[i].CandidateID)
			}
		}
	}
}

func TestGetRecommendationsTieBreaks(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()

	now := time.Now()
	older := now.Add(-24 * time.Hour)

	repo.profiles[1] = &UserProfile{ID: 1, Age: 30, Interests: []string{"hiking"}}
	// Identical profiles, so identical scores; only activity and id differ.
	repo.candidates = []*UserProfile{
		{ID: 7, Age: 28, Gender: "female", Interests: []string{"hiking"}, LastActive: older},
		{ID: 5, Age: 28, Gender: "female", Interests: []string{"hiking"}, LastActive: older},
		{ID: 6, Age: 28, Gender: "female", Interests: []string{"hiking"}, LastActive: now},
	}
	ranker := newTestRanker(repo)

	ranked, err := ranker.GetRecommendations(ctx, 1, &RecommendationsParams{Limit: 10})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}

	// Most recently active first, then lowest id among equals.
	wantOrder := []int64{6, 5, 7}
	for i, want := range wantOrder {
		if ranked[i].CandidateID != want {
			t.Errorf("position %d = user %d, want %d", i, ranked[i].CandidateID, want)
		}
	}
}

func TestGetRecommendationsPagination(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	seedRankingPool(repo)
	ranker := newTestRanker(repo)

	tests := []struct {
		name   string
		offset int
		limit  int
		want   []int64
	}{
		{"first page", 0, 2, []int64{2, 3}},
		{"second page", 2, 2, []int64{4}},
		{"offset past the end", 10, 2, []int64{}},
		{"limit past the end", 0, 50, []int64{2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, err := ranker.GetRecommendations(ctx, 1, &RecommendationsParams{Limit: tt.limit, Offset: tt.offset})
			if err != nil {
				t.Fatalf("GetRecommendations: %v", err)
			}
			if len(ranked) != len(tt.want) {
				t.Fatalf("got %d candidates, want %d", len(ranked), len(tt.want))
			}
			for i, want := range tt.want {
				if ranked[i].CandidateID != want {
					t.Errorf("position %d = user %d, want %d", i, ranked[i].CandidateID, want)
				}
			}
		})
	}
}

func TestGetRecommendationsExcludesSwipedCandidates(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	seedRankingPool(repo)
	repo.swipes[[2]int64{1, 2}] = &SwipeEvent{ActorID: 1, TargetID: 2, Direction: SwipeDislike}
	ranker := newTestRanker(repo)

	ranked, err := ranker.GetRecommendations(ctx, 1, &RecommendationsParams{Limit: 10})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	for _, rc := range ranked {
		if rc.CandidateID == 2 {
			t.Error("already-swiped candidate returned in recommendations")
		}
	}
}

// slowEngine delays each score so a short deadline reliably interrupts
// ranking mid-pool.
type slowEngine struct {
	inner MatchingEngine
	delay time.Duration
}

func (s *slowEngine) CalculateCompatibility(viewer, candidate *UserProfile, model *PreferenceModel) *CompatibilityScore {
	time.Sleep(s.delay)
	return s.inner.CalculateCompatibility(viewer, candidate, model)
}

func TestGetRecommendationsTimeout(t *testing.T) {
	repo := newFakeRepository()

	repo.profiles[1] = &UserProfile{ID: 1, Age: 30, Interests: []string{"hiking"}}
	for i := int64(2); i < 12; i++ {
		repo.candidates = append(repo.candidates, &UserProfile{
			ID: i, Age: 28, Gender: "female", Interests: []string{"hiking"}, LastActive: time.Now(),
		})
	}

	cfg := testRankerConfig()
	cfg.Workers = 1
	cfg.Timeout = 10 * time.Millisecond
	engine := &slowEngine{inner: NewMatchingEngine(testEngineConfig()), delay: 50 * time.Millisecond}
	ranker := NewRanker(repo, engine, cfg)

	t.Run("strict request fails", func(t *testing.T) {
		_, err := ranker.GetRecommendations(context.Background(), 1, &RecommendationsParams{Limit: 10})
		if err != ErrRankingTimeout {
			t.Errorf("err = %v, want ErrRankingTimeout", err)
		}
	})

	t.Run("best effort returns the partial ranking", func(t *testing.T) {
		ranked, err := ranker.GetRecommendations(context.Background(), 1,
			&RecommendationsParams{Limit: 10, BestEffort: true})
		if err != nil {
			t.Fatalf("best-effort request failed: %v", err)
		}
		if len(ranked) >= len(repo.candidates) {
			t.Errorf("got %d candidates, expected fewer than the full pool of %d",
				len(ranked), len(repo.candidates))
		}
		for i := 1; i < len(ranked); i++ {
			if ranked[i].Score.Overall > ranked[i-1].Score.Overall {
				t.Errorf("partial ranking not sorted at position %d", i)
			}
		}
	})
}
