// internal/matching/service.go

package matching

import (
	"context"
	"errors"
	"log"
)

var (
	ErrSelfSwipe        = errors.New("cannot swipe on yourself")
	ErrInvalidDirection = errors.New("invalid swipe direction")
	ErrInvalidLimit     = errors.New("limit must be positive")
	ErrInvalidOffset    = errors.New("offset must not be negative")
	ErrRankingTimeout   = errors.New("ranking timed out")
	ErrCandidatePool    = errors.New("candidate pool unavailable")
)

type Service interface {
	// Swipes
	RecordSwipe(ctx context.Context, actorID int64, dto *SwipeRequestDTO) (*SwipeResult, error)

	// Ranking & explainability
	GetRecommendations(ctx context.Context, viewerID int64, params *RecommendationsParams) ([]*RankedCandidate, error)
	GetMatchFactors(ctx context.Context, viewerID, candidateID int64) (*CompatibilityScore, error)

	// Matches
	GetMatches(ctx context.Context, userID int64) ([]*Match, error)

	// Background jobs
	RefreshPreferenceModel(ctx context.Context, userID int64) error
	ReconcileMatches(ctx context.Context) error
}

type service struct {
	repo     Repository
	engine   MatchingEngine
	recorder *Recorder
	ranker   *Ranker
	learner  *Learner
	notifier MatchNotifier
}

func NewService(repo Repository, engine MatchingEngine, recorder *Recorder, ranker *Ranker, learner *Learner, notifier MatchNotifier) Service {
	return &service{
		repo:     repo,
		engine:   engine,
		recorder: recorder,
		ranker:   ranker,
		learner:  learner,
		notifier: notifier,
	}
}

func (s *service) RecordSwipe(ctx context.Context, actorID int64, dto *SwipeRequestDTO) (*SwipeResult, error) {
	return s.recorder.RecordSwipe(ctx, actorID, dto)
}

func (s *service) GetRecommendations(ctx context.Context, viewerID int64, params *RecommendationsParams) ([]*RankedCandidate, error) {
	return s.ranker.GetRecommendations(ctx, viewerID, params)
}

// GetMatchFactors re-runs the aggregator for one pair so clients can show a
// "why this match" breakdown.
func (s *service) GetMatchFactors(ctx context.Context, viewerID, candidateID int64) (*CompatibilityScore, error) {
	viewer, err := s.repo.GetUserProfile(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	candidate, err := s.repo.GetUserProfile(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	model, err := s.repo.LoadPreferenceModel(ctx, viewerID)
	if err != nil && err != ErrModelNotFound {
		return nil, err
	}

	return s.engine.CalculateCompatibility(viewer, candidate, model), nil
}

func (s *service) GetMatches(ctx context.Context, userID int64) ([]*Match, error) {
	return s.repo.GetUserMatches(ctx, userID)
}

func (s *service) RefreshPreferenceModel(ctx context.Context, userID int64) error {
	return s.learner.Refresh(ctx, userID)
}

// ReconcileMatches repairs mutual likes that missed each other in the
// read-after-write window. Safety net only; the recorder's reciprocal
// check is the primary path.
func (s *service) ReconcileMatches(ctx context.Context) error {
	pairs, err := s.repo.FindUnmatchedReciprocalPairs(ctx, 1000)
	if err != nil {
		return err
	}

	for _, pair := range pairs {
		match := &Match{User1ID: pair[0], User2ID: pair[1]}
		if err := s.repo.CreateMatch(ctx, match); err != nil {
			log.Printf("reconcile match (%d,%d): %v", pair[0], pair[1], err)
			continue
		}
		recordReconciledMatch()

		if s.notifier != nil {
			s.notifier.NotifyMatch(pair[0], pair[1], match)
		}
	}

	return nil
}
