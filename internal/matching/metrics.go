package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	swipesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_swipes_total",
			Help: "Total number of swipe decisions recorded",
		},
		[]string{"direction"},
	)

	matchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_matches_total",
			Help: "Total number of mutual matches created",
		},
	)

	reconciledMatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_reconciled_matches_total",
			Help: "Mutual matches recovered by the reconciliation sweep",
		},
	)

	learnerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_learner_runs_total",
			Help: "Completed preference model refreshes",
		},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of computed compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	rankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_ranking_duration_seconds",
			Help:    "Time spent serving a recommendations request",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func recordSwipe(direction string) {
	swipesTotal.WithLabelValues(direction).Inc()
}

func recordMatch() {
	matchesTotal.Inc()
}

func recordReconciledMatch() {
	reconciledMatchesTotal.Inc()
}

func recordLearnerRun() {
	learnerRunsTotal.Inc()
}

func recordCompatibilityScore(score float64) {
	compatibilityScores.Observe(score)
}

func observeRankingDuration(seconds float64) {
	rankingDuration.Observe(seconds)
}
