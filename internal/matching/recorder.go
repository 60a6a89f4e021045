package matching

import (
	"context"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

// MatchNotifier pushes a new-match event to both users. Delivery transports
// (websocket hub here, push services elsewhere) are collaborators behind
// this seam.
type MatchNotifier interface {
	NotifyMatch(user1ID, user2ID int64, match *Match)
}

// Recorder durably and idempotently records swipe decisions, detects mutual
// matches, and schedules preference-model refreshes off the request path.
type Recorder struct {
	repo     Repository
	redis    *redis.Client // optional; repo counting is the fallback
	engine   MatchingEngine
	notifier MatchNotifier
	learnerQ chan<- int64
	cfg      LearnerConfig
}

func NewRecorder(repo Repository, redisClient *redis.Client, engine MatchingEngine, notifier MatchNotifier, learnerQ chan<- int64, cfg LearnerConfig) *Recorder {
	return &Recorder{
		repo:     repo,
		redis:    redisClient,
		engine:   engine,
		notifier: notifier,
		learnerQ: learnerQ,
		cfg:      cfg,
	}
}

// RecordSwipe upserts the (actor, target) decision and reports whether it
// completed a mutual match. A repeat swipe on the same pair overwrites the
// prior decision — deliberately, so a user can revise a dislike; see the
// Repository.UpsertSwipe contract.
func (r *Recorder) RecordSwipe(ctx context.Context, actorID int64, dto *SwipeRequestDTO) (*SwipeResult, error) {
	if actorID == dto.TargetID {
		return nil, ErrSelfSwipe
	}

	direction := SwipeDirection(dto.Direction)
	if !direction.Valid() {
		return nil, ErrInvalidDirection
	}

	event := &SwipeEvent{
		ActorID:        actorID,
		TargetID:       dto.TargetID,
		Direction:      direction,
		SwipeLatencyMs: dto.SwipeLatencyMs,
		ViewDurationMs: dto.ViewDurationMs,
		ViewedSections: dto.ViewedSections,
	}

	if err := r.repo.UpsertSwipe(ctx, event); err != nil {
		return nil, fmt.Errorf("upsert swipe: %w", err)
	}
	recordSwipe(string(direction))

	result := &SwipeResult{}

	if direction.IsPositive() {
		// Read-your-write: the upsert committed on this connection before
		// the reciprocal lookup, so a like landing here after the other
		// side's commit is always seen. Simultaneous swipes that still
		// miss each other are repaired by the reconciliation sweep.
		reciprocal, err := r.repo.FindSwipe(ctx, dto.TargetID, actorID)
		if err != nil && err != ErrSwipeNotFound {
			return nil, fmt.Errorf("reciprocal check: %w", err)
		}

		if reciprocal != nil && reciprocal.Direction.IsPositive() {
			match, err := r.createMatch(ctx, actorID, dto.TargetID)
			if err != nil {
				return nil, fmt.Errorf("create match: %w", err)
			}
			result.IsMatch = true
			result.Match = match

			if r.notifier != nil {
				r.notifier.NotifyMatch(actorID, dto.TargetID, match)
			}
		}
	} else {
		// Overwriting a like with a dislike withdraws the actor's side of
		// any existing match.
		if err := r.repo.DeactivateMatch(ctx, actorID, dto.TargetID); err != nil {
			log.Printf("deactivate match for pair (%d,%d): %v", actorID, dto.TargetID, err)
		}
	}

	r.bumpSwipeCounter(ctx, actorID)

	return result, nil
}

func (r *Recorder) createMatch(ctx context.Context, actorID, targetID int64) (*Match, error) {
	match := &Match{User1ID: actorID, User2ID: targetID}

	// Attach a compatibility score for the match record; scoring trouble
	// must not block the match itself.
	if score, err := r.scorePair(ctx, actorID, targetID); err == nil {
		match.CompatibilityScore = &score.Overall
	}

	if err := r.repo.CreateMatch(ctx, match); err != nil {
		return nil, err
	}

	recordMatch()
	return match, nil
}

func (r *Recorder) scorePair(ctx context.Context, viewerID, candidateID int64) (*CompatibilityScore, error) {
	viewer, err := r.repo.GetUserProfile(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	candidate, err := r.repo.GetUserProfile(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	model, err := r.repo.LoadPreferenceModel(ctx, viewerID)
	if err != nil && err != ErrModelNotFound {
		return nil, err
	}

	return r.engine.CalculateCompatibility(viewer, candidate, model), nil
}

// bumpSwipeCounter advances the per-user swipe counter and enqueues a
// learner run each time the refresh threshold is crossed. The enqueue is
// non-blocking: a full queue drops the trigger and the next threshold
// crossing retries.
func (r *Recorder) bumpSwipeCounter(ctx context.Context, userID int64) {
	count, err := r.swipeCount(ctx, userID)
	if err != nil {
		log.Printf("swipe counter for user %d: %v", userID, err)
		return
	}

	if r.cfg.RefreshThreshold <= 0 || count%int64(r.cfg.RefreshThreshold) != 0 {
		return
	}

	select {
	case r.learnerQ <- userID:
	default:
		log.Printf("learner queue full, skipping refresh for user %d", userID)
	}
}

func (r *Recorder) swipeCount(ctx context.Context, userID int64) (int64, error) {
	if r.redis != nil {
		return r.redis.Incr(ctx, fmt.Sprintf("matching:swipe_count:%d", userID)).Result()
	}
	return r.repo.CountSwipes(ctx, userID)
}
