package matching

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepository is an in-memory Repository for exercising the recorder,
// ranker, and learner without a database.
type fakeRepository struct {
	mu sync.Mutex

	profiles   map[int64]*UserProfile
	swipes     map[[2]int64]*SwipeEvent
	models     map[int64]*PreferenceModel
	matches    map[[2]int64]*Match
	history    map[int64][]*SwipeWithTarget
	candidates []*UserProfile

	candidatesErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		profiles: make(map[int64]*UserProfile),
		swipes:   make(map[[2]int64]*SwipeEvent),
		models:   make(map[int64]*PreferenceModel),
		matches:  make(map[[2]int64]*Match),
		history:  make(map[int64][]*SwipeWithTarget),
	}
}

func (f *fakeRepository) GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile, ok := f.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func (f *fakeRepository) FindCandidates(ctx context.Context, viewerID int64, filters *CandidateFilters) ([]*UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}

	var out []*UserProfile
	for _, candidate := range f.candidates {
		if candidate.ID == viewerID {
			continue
		}
		if _, swiped := f.swipes[[2]int64{viewerID, candidate.ID}]; swiped {
			continue
		}
		if candidate.Age < filters.MinAge || candidate.Age > filters.MaxAge {
			continue
		}
		if filters.Gender != "" && candidate.Gender != filters.Gender {
			continue
		}
		out = append(out, candidate)
		if len(out) >= filters.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepository) UpsertSwipe(ctx context.Context, event *SwipeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := [2]int64{event.ActorID, event.TargetID}
	now := time.Now()

	if existing, ok := f.swipes[key]; ok {
		existing.Direction = event.Direction
		existing.SwipeLatencyMs = event.SwipeLatencyMs
		existing.ViewDurationMs = event.ViewDurationMs
		existing.ViewedSections = event.ViewedSections
		existing.UpdatedAt = now
		*event = *existing
		return nil
	}

	event.ID = uuid.New()
	event.CreatedAt = now
	event.UpdatedAt = now
	stored := *event
	f.swipes[key] = &stored
	return nil
}

func (f *fakeRepository) FindSwipe(ctx context.Context, actorID, targetID int64) (*SwipeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.swipes[[2]int64{actorID, targetID}]
	if !ok {
		return nil, ErrSwipeNotFound
	}
	copy := *event
	return &copy, nil
}

func (f *fakeRepository) GetRecentSwipes(ctx context.Context, userID int64, limit int) ([]*SwipeWithTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	window := f.history[userID]
	if len(window) > limit {
		window = window[:limit]
	}
	return window, nil
}

func (f *fakeRepository) CountSwipes(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for key := range f.swipes {
		if key[0] == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) LoadPreferenceModel(ctx context.Context, userID int64) (*PreferenceModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	model, ok := f.models[userID]
	if !ok {
		return nil, ErrModelNotFound
	}
	copy := *model
	return &copy, nil
}

func (f *fakeRepository) SavePreferenceModel(ctx context.Context, model *PreferenceModel) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prior, ok := f.models[model.UserID]; ok {
		model.Version = prior.Version + 1
	} else {
		model.Version = 1
	}
	model.UpdatedAt = time.Now()
	stored := *model
	f.models[model.UserID] = &stored
	return nil
}

func (f *fakeRepository) CreateMatch(ctx context.Context, match *Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	match.User1ID, match.User2ID = orderedPair(match.User1ID, match.User2ID)
	key := [2]int64{match.User1ID, match.User2ID}

	if existing, ok := f.matches[key]; ok {
		existing.IsActive = true
		existing.UnmatchedAt = nil
		existing.MatchedAt = time.Now()
		existing.CompatibilityScore = match.CompatibilityScore
		*match = *existing
		return nil
	}

	match.ID = int64(len(f.matches) + 1)
	match.IsActive = true
	match.MatchedAt = time.Now()
	stored := *match
	f.matches[key] = &stored
	return nil
}

func (f *fakeRepository) DeactivateMatch(ctx context.Context, user1ID, user2ID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user1ID, user2ID = orderedPair(user1ID, user2ID)
	if match, ok := f.matches[[2]int64{user1ID, user2ID}]; ok {
		match.IsActive = false
		now := time.Now()
		match.UnmatchedAt = &now
	}
	return nil
}

func (f *fakeRepository) GetUserMatches(ctx context.Context, userID int64) ([]*Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Match
	for _, match := range f.matches {
		if !match.IsActive {
			continue
		}
		if match.User1ID == userID || match.User2ID == userID {
			copy := *match
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindUnmatchedReciprocalPairs(ctx context.Context, limit int) ([][2]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var pairs [][2]int64
	for key, event := range f.swipes {
		if key[0] >= key[1] || !event.Direction.IsPositive() {
			continue
		}
		reciprocal, ok := f.swipes[[2]int64{key[1], key[0]}]
		if !ok || !reciprocal.Direction.IsPositive() {
			continue
		}
		if match, ok := f.matches[key]; ok && match.IsActive {
			continue
		}
		pairs = append(pairs, key)
		if len(pairs) >= limit {
			break
		}
	}
	return pairs, nil
}

func (f *fakeRepository) activeMatch(user1ID, user2ID int64) *Match {
	f.mu.Lock()
	defer f.mu.Unlock()

	user1ID, user2ID = orderedPair(user1ID, user2ID)
	match, ok := f.matches[[2]int64{user1ID, user2ID}]
	if !ok || !match.IsActive {
		return nil
	}
	copy := *match
	return &copy
}
