package matching

import (
	"context"
	"log"
	"time"
)

// Scheduler owns the engine's background loops: draining the learner queue
// and running the periodic match reconciliation sweep. Swipe handling never
// blocks on either.
type Scheduler struct {
	service        Service
	learnerQ       <-chan int64
	reconcileEvery time.Duration
}

func NewScheduler(service Service, learnerQ <-chan int64, reconcileEvery time.Duration) *Scheduler {
	return &Scheduler{
		service:        service,
		learnerQ:       learnerQ,
		reconcileEvery: reconcileEvery,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.runLearnerWorker(ctx)
	go s.runReconciliation(ctx)
}

// runLearnerWorker drains refresh triggers one at a time. The learner holds
// a per-user lock, so a single worker is enough and keeps runs for the same
// user trivially serialized.
func (s *Scheduler) runLearnerWorker(ctx context.Context) {
	for {
		select {
		case userID := <-s.learnerQ:
			if err := s.service.RefreshPreferenceModel(ctx, userID); err != nil {
				log.Printf("preference model refresh for user %d failed: %v", userID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runReconciliation(ctx context.Context) {
	ticker := time.NewTicker(s.reconcileEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.service.ReconcileMatches(ctx); err != nil {
				log.Printf("match reconciliation sweep failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
