package matching

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrProfileNotFound = errors.New("user profile not found")
	ErrSwipeNotFound   = errors.New("swipe event not found")
	ErrModelNotFound   = errors.New("preference model not found")
)

type Repository interface {
	// Profiles (owned by the profile collaborator, read-only here)
	GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error)
	FindCandidates(ctx context.Context, viewerID int64, filters *CandidateFilters) ([]*UserProfile, error)

	// Swipe events
	UpsertSwipe(ctx context.Context, event *SwipeEvent) error
	FindSwipe(ctx context.Context, actorID, targetID int64) (*SwipeEvent, error)
	GetRecentSwipes(ctx context.Context, userID int64, limit int) ([]*SwipeWithTarget, error)
	CountSwipes(ctx context.Context, userID int64) (int64, error)

	// Preference models
	LoadPreferenceModel(ctx context.Context, userID int64) (*PreferenceModel, error)
	SavePreferenceModel(ctx context.Context, model *PreferenceModel) error

	// Matches
	CreateMatch(ctx context.Context, match *Match) error
	DeactivateMatch(ctx context.Context, user1ID, user2ID int64) error
	GetUserMatches(ctx context.Context, userID int64) ([]*Match, error)
	FindUnmatchedReciprocalPairs(ctx context.Context, limit int) ([][2]int64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const profileColumns = `
	u.id, u.display_name,
	EXTRACT(YEAR FROM AGE(u.birth_date))::int AS age,
	u.gender, u.location_lat, u.location_lng, u.interests,
	u.preferred_gender, u.preferred_min_age, u.preferred_max_age, u.preferred_distance,
	u.last_active, u.created_at
`

func (r *postgresRepository) GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	var profile UserProfile
	query := `SELECT ` + profileColumns + ` FROM users u WHERE u.id = $1`

	err := r.db.GetContext(ctx, &profile, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// FindCandidates applies the cheap pre-filters in SQL: self and
// already-swiped pairs are excluded, ages and coordinates are bounded
// coarsely, and the pool is hard-capped. Fine-grained ranking happens in
// the scorer, not here.
func (r *postgresRepository) FindCandidates(ctx context.Context, viewerID int64, filters *CandidateFilters) ([]*UserProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM users u
		WHERE u.id != $1
		  AND u.is_active = TRUE
		  AND NOT EXISTS (
		      SELECT 1 FROM swipe_events s
		      WHERE s.actor_id = $1 AND s.target_id = u.id
		  )
		  AND EXTRACT(YEAR FROM AGE(u.birth_date)) BETWEEN $2 AND $3
		  AND ($4 = '' OR u.gender = $4)
		  AND u.location_lat BETWEEN $5 AND $6
		  AND u.location_lng BETWEEN $7 AND $8
		ORDER BY u.last_active DESC, u.id
		LIMIT $9
	`

	var candidates []*UserProfile
	err := r.db.SelectContext(
		ctx, &candidates, query,
		viewerID, filters.MinAge, filters.MaxAge, filters.Gender,
		filters.MinLat, filters.MaxLat, filters.MinLng, filters.MaxLng,
		filters.Limit,
	)
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

// UpsertSwipe inserts or overwrites the single current record for the
// (actor, target) pair. The composite unique key makes a re-swipe replace
// the prior decision atomically; the row-level write lock in Postgres
// serializes concurrent writes for the same pair.
func (r *postgresRepository) UpsertSwipe(ctx context.Context, event *SwipeEvent) error {
	query := `
		INSERT INTO swipe_events (
			id, actor_id, target_id, direction,
			swipe_latency_ms, view_duration_ms, viewed_sections
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (actor_id, target_id)
		DO UPDATE SET
			direction = EXCLUDED.direction,
			swipe_latency_ms = EXCLUDED.swipe_latency_ms,
			view_duration_ms = EXCLUDED.view_duration_ms,
			viewed_sections = EXCLUDED.viewed_sections,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	return r.db.QueryRowxContext(
		ctx, query,
		event.ID, event.ActorID, event.TargetID, event.Direction,
		event.SwipeLatencyMs, event.ViewDurationMs, event.ViewedSections,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
}

func (r *postgresRepository) FindSwipe(ctx context.Context, actorID, targetID int64) (*SwipeEvent, error) {
	var event SwipeEvent
	query := `
		SELECT id, actor_id, target_id, direction,
		       swipe_latency_ms, view_duration_ms, viewed_sections,
		       created_at, updated_at
		FROM swipe_events
		WHERE actor_id = $1 AND target_id = $2
	`

	err := r.db.GetContext(ctx, &event, query, actorID, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSwipeNotFound
	}
	if err != nil {
		return nil, err
	}

	return &event, nil
}

func (r *postgresRepository) GetRecentSwipes(ctx context.Context, userID int64, limit int) ([]*SwipeWithTarget, error) {
	query := `
		SELECT s.direction, s.created_at,
		       EXTRACT(YEAR FROM AGE(u.birth_date))::int AS target_age,
		       u.interests AS target_interests
		FROM swipe_events s
		JOIN users u ON u.id = s.target_id
		WHERE s.actor_id = $1
		ORDER BY s.updated_at DESC
		LIMIT $2
	`

	var swipes []*SwipeWithTarget
	if err := r.db.SelectContext(ctx, &swipes, query, userID, limit); err != nil {
		return nil, err
	}

	return swipes, nil
}

func (r *postgresRepository) CountSwipes(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM swipe_events WHERE actor_id = $1`, userID)
	return count, err
}

type preferenceModelRow struct {
	UserID    int64           `db:"user_id"`
	Model     json.RawMessage `db:"model"`
	Version   int64           `db:"version"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r *postgresRepository) LoadPreferenceModel(ctx context.Context, userID int64) (*PreferenceModel, error) {
	var row preferenceModelRow
	query := `SELECT user_id, model, version, updated_at FROM preference_models WHERE user_id = $1`

	err := r.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}

	var model PreferenceModel
	if err := json.Unmarshal(row.Model, &model); err != nil {
		return nil, err
	}
	model.UserID = row.UserID
	model.Version = row.Version
	model.UpdatedAt = row.UpdatedAt

	return &model, nil
}

// SavePreferenceModel replaces the stored model wholesale. The model is a
// single JSONB value, so readers never observe a half-updated record.
func (r *postgresRepository) SavePreferenceModel(ctx context.Context, model *PreferenceModel) error {
	payload, err := json.Marshal(model)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO preference_models (user_id, model, version, updated_at)
		VALUES ($1, $2, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id)
		DO UPDATE SET
			model = EXCLUDED.model,
			version = preference_models.version + 1,
			updated_at = CURRENT_TIMESTAMP
		RETURNING version, updated_at
	`

	return r.db.QueryRowxContext(ctx, query, model.UserID, payload).
		Scan(&model.Version, &model.UpdatedAt)
}

func (r *postgresRepository) CreateMatch(ctx context.Context, match *Match) error {
	match.User1ID, match.User2ID = orderedPair(match.User1ID, match.User2ID)

	query := `
		INSERT INTO matches (user1_id, user2_id, compatibility_score)
		VALUES ($1, $2, $3)
		ON CONFLICT (user1_id, user2_id)
		DO UPDATE SET
			is_active = TRUE,
			unmatched_at = NULL,
			compatibility_score = EXCLUDED.compatibility_score,
			matched_at = CURRENT_TIMESTAMP
		RETURNING id, is_active, matched_at
	`

	return r.db.QueryRowxContext(
		ctx, query,
		match.User1ID, match.User2ID, match.CompatibilityScore,
	).Scan(&match.ID, &match.IsActive, &match.MatchedAt)
}

func (r *postgresRepository) DeactivateMatch(ctx context.Context, user1ID, user2ID int64) error {
	user1ID, user2ID = orderedPair(user1ID, user2ID)

	query := `
		UPDATE matches
		SET is_active = FALSE, unmatched_at = CURRENT_TIMESTAMP
		WHERE user1_id = $1 AND user2_id = $2 AND is_active = TRUE
	`

	_, err := r.db.ExecContext(ctx, query, user1ID, user2ID)
	return err
}

func (r *postgresRepository) GetUserMatches(ctx context.Context, userID int64) ([]*Match, error) {
	query := `
		SELECT m.id, m.user1_id, m.user2_id, m.compatibility_score,
		       m.is_active, m.matched_at, m.unmatched_at,
		       ` + profileColumns + `
		FROM matches m
		JOIN users u ON u.id = CASE WHEN m.user1_id = $1 THEN m.user2_id ELSE m.user1_id END
		WHERE (m.user1_id = $1 OR m.user2_id = $1) AND m.is_active = TRUE
		ORDER BY m.matched_at DESC
	`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		var match Match
		var matched UserProfile

		err := rows.Scan(
			&match.ID, &match.User1ID, &match.User2ID, &match.CompatibilityScore,
			&match.IsActive, &match.MatchedAt, &match.UnmatchedAt,
			&matched.ID, &matched.DisplayName, &matched.Age, &matched.Gender,
			&matched.Latitude, &matched.Longitude, &matched.Interests,
			&matched.PreferredGender, &matched.PreferredMinAge, &matched.PreferredMaxAge,
			&matched.PreferredMaxDistance, &matched.LastActive, &matched.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		match.MatchedUser = &matched
		matches = append(matches, &match)
	}

	return matches, rows.Err()
}

// FindUnmatchedReciprocalPairs returns like pairs in both directions that
// have no active match row. Feeds the reconciliation sweep that backstops
// the read-after-write reciprocal check against near-simultaneous swipes.
func (r *postgresRepository) FindUnmatchedReciprocalPairs(ctx context.Context, limit int) ([][2]int64, error) {
	query := `
		SELECT s1.actor_id, s1.target_id
		FROM swipe_events s1
		JOIN swipe_events s2
		  ON s2.actor_id = s1.target_id AND s2.target_id = s1.actor_id
		WHERE s1.actor_id < s1.target_id
		  AND s1.direction IN ('like', 'super_like')
		  AND s2.direction IN ('like', 'super_like')
		  AND NOT EXISTS (
		      SELECT 1 FROM matches m
		      WHERE m.user1_id = s1.actor_id
		        AND m.user2_id = s1.target_id
		        AND m.is_active = TRUE
		  )
		LIMIT $1
	`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs [][2]int64
	for rows.Next() {
		var a, b int64
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]int64{a, b})
	}

	return pairs, rows.Err()
}
