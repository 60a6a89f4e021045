// cmd/api/main.go
// Main entry point for the match engine API.
// Bootstraps configuration, storage, the matching service, and the server.

package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberdate/ember-backend/internal/auth"
	"github.com/emberdate/ember-backend/internal/common/database"
	"github.com/emberdate/ember-backend/internal/config"
	"github.com/emberdate/ember-backend/internal/matching"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("Starting Ember match engine API")

	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (%v), using environment variables", err)
	}

	// 2. Load and validate configuration. Bad aggregator weights are a
	// refuse-to-serve condition, not a runtime fallback.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: ", err)
	}

	// 3. Connect to PostgreSQL
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL: ", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// 4. Connect to Redis (optional; swipe counters fall back to SQL)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("Redis unavailable (%v), continuing without it", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("Connected to Redis")
		}
	}

	// 5. Run database migrations
	if err := runMigrations(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	// 6. Wire the matching engine
	repo := matching.NewPostgresRepository(sqlx.NewDb(db, "postgres"))

	engine := matching.NewMatchingEngine(matching.EngineConfig{
		Weights: matching.Weights{
			Interest:    cfg.WeightInterest,
			Demographic: cfg.WeightDemographic,
			Location:    cfg.WeightLocation,
			Behavioral:  cfg.WeightBehavioral,
		},
		DefaultMaxDistance: cfg.DefaultMaxDistance,
		MinModelSamples:    5,
		DefaultAgeSpread:   cfg.LearnerAgeSpreadFloor,
	})

	learnerCfg := matching.LearnerConfig{
		WindowSize:       cfg.LearnerWindowSize,
		MinLikes:         cfg.LearnerMinLikes,
		RefreshThreshold: cfg.LearnerRefreshThreshold,
		AgeSpreadFloor:   cfg.LearnerAgeSpreadFloor,
		LearningRate:     cfg.LearnerLearningRate,
		SuperLikeBoost:   cfg.LearnerSuperLikeBoost,
	}
	learner := matching.NewLearner(repo, matching.NewWeightedAffinityStrategy(learnerCfg), learnerCfg)

	hub := matching.NewHub()
	go hub.Run()

	learnerQueue := make(chan int64, cfg.LearnerQueueSize)

	recorder := matching.NewRecorder(repo, redisClient, engine, hub, learnerQueue, learnerCfg)

	ranker := matching.NewRanker(repo, engine, matching.RankerConfig{
		Workers:            cfg.RankerWorkers,
		PoolCap:            cfg.CandidatePoolCap,
		Timeout:            cfg.RankerTimeout,
		DefaultMaxDistance: cfg.DefaultMaxDistance,
		DefaultMinAge:      cfg.MinAge,
		DefaultMaxAge:      cfg.MaxAge,
	})

	service := matching.NewService(repo, engine, recorder, ranker, learner, hub)

	// 7. Background jobs: learner queue worker + reconciliation sweep
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := matching.NewScheduler(service, learnerQueue, cfg.ReconcileInterval)
	scheduler.Start(ctx)

	// 8. Routes
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)
	matchingHandler := matching.NewHandler(service, hub)
	matching.RegisterRoutes(router, matchingHandler, authMiddleware)

	// 9. Start server with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// runMigrations creates or updates the tables the engine owns. User rows
// are written by the registration collaborator; the schema here only has
// to exist for local development.
func runMigrations(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL,
			birth_date DATE NOT NULL,
			gender VARCHAR(20) NOT NULL,
			location_lat DOUBLE PRECISION NOT NULL DEFAULT 0,
			location_lng DOUBLE PRECISION NOT NULL DEFAULT 0,
			interests TEXT[] NOT NULL DEFAULT '{}',
			preferred_gender VARCHAR(20),
			preferred_min_age INT,
			preferred_max_age INT,
			preferred_distance DOUBLE PRECISION,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_active TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS swipe_events (
			id UUID PRIMARY KEY,
			actor_id BIGINT NOT NULL REFERENCES users(id),
			target_id BIGINT NOT NULL REFERENCES users(id),
			direction VARCHAR(20) NOT NULL,
			swipe_latency_ms INT NOT NULL DEFAULT 0,
			view_duration_ms INT NOT NULL DEFAULT 0,
			viewed_sections TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (actor_id, target_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_swipe_events_target_direction
			ON swipe_events (target_id, actor_id, direction)`,
		`CREATE TABLE IF NOT EXISTS preference_models (
			user_id BIGINT PRIMARY KEY REFERENCES users(id),
			model JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			user1_id BIGINT NOT NULL REFERENCES users(id),
			user2_id BIGINT NOT NULL REFERENCES users(id),
			compatibility_score DOUBLE PRECISION,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			matched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			unmatched_at TIMESTAMPTZ,
			UNIQUE (user1_id, user2_id),
			CHECK (user1_id < user2_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
