package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailQuestAPI/internal/progression"
	"trailQuestAPI/internal/types/leaderboard"
)

const defaultLeaderboardLimit = 50

type LeaderboardService struct {
	db *pgxpool.Pool
}

func NewLeaderboardService(db *pgxpool.Pool) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// GetLeaderboard ranks users by the metric over the time window, limited to
// limit entries, and includes the requesting user's own rank when they fall
// outside the returned page. Ties break toward the earlier achiever so ranks
// are stable across reads.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, clerkID string, metric leaderboard.Metric, window leaderboard.TimeWindow, limit int) (*leaderboard.Leaderboard, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: unknown leaderboard metric %q", progression.ErrInvalidInput, metric)
	}
	if !window.Valid() {
		return nil, fmt.Errorf("%w: unknown time window %q", progression.ErrInvalidInput, window)
	}
	if limit <= 0 || limit > defaultLeaderboardLimit {
		limit = defaultLeaderboardLimit
	}

	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	scores := scoreQuery(metric, window)

	query := fmt.Sprintf(`
	WITH scores AS (%s)
	SELECT
		u.id AS user_id,
		u.username,
		u.image_url,
		COALESCE(s.value, 0)::float8 AS value,
		RANK() OVER (ORDER BY COALESCE(s.value, 0) DESC, s.first_at ASC NULLS LAST) AS rank
	FROM users u
	LEFT JOIN scores s ON s.user_id = u.id
	ORDER BY rank ASC, u.username ASC
	LIMIT $1
	`, scores)

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	board := &leaderboard.Leaderboard{Metric: metric, TimeWindow: window}
	for rows.Next() {
		entry := &leaderboard.Entry{}
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.ImageURL, &entry.Value, &entry.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		board.Entries = append(board.Entries, entry)
		if entry.UserID == userID {
			board.UserPosition = entry
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&board.TotalUsers); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	if board.UserPosition == nil {
		position, err := s.userPosition(ctx, userID, metric, window)
		if err != nil {
			return nil, err
		}
		board.UserPosition = position
	}

	return board, nil
}

// userPosition computes the requester's value and rank when they are outside
// the returned page: rank is 1 plus the count of users strictly ahead.
func (s *LeaderboardService) userPosition(ctx context.Context, userID uuid.UUID, metric leaderboard.Metric, window leaderboard.TimeWindow) (*leaderboard.Entry, error) {
	scores := scoreQuery(metric, window)

	query := fmt.Sprintf(`
	WITH scores AS (%s),
	mine AS (
		SELECT COALESCE((SELECT value FROM scores WHERE user_id = $1), 0) AS value
	)
	SELECT
		u.id, u.username, u.image_url,
		mine.value::float8,
		1 + (SELECT COUNT(*) FROM scores WHERE value > mine.value) AS rank
	FROM users u, mine
	WHERE u.id = $1
	`, scores)

	entry := &leaderboard.Entry{}
	err := s.db.QueryRow(ctx, query, userID).Scan(&entry.UserID, &entry.Username, &entry.ImageURL, &entry.Value, &entry.Rank)
	if err != nil {
		return nil, fmt.Errorf("failed to compute user rank: %w", err)
	}
	return entry, nil
}

// scoreQuery builds the per-user (user_id, value, first_at) aggregate for a
// metric. first_at is when the user's current value was reached, used as the
// tiebreak. current_streak and points are cumulative state, so the time
// window does not apply to them.
func scoreQuery(metric leaderboard.Metric, window leaderboard.TimeWindow) string {
	switch metric {
	case leaderboard.MetricDistance:
		return fmt.Sprintf(`
		SELECT user_id, SUM(distance_miles) AS value, MAX(created_at) AS first_at
		FROM workouts
		WHERE %s
		GROUP BY user_id`, windowClause("workout_date", window))
	case leaderboard.MetricElevation:
		return fmt.Sprintf(`
		SELECT user_id, SUM(elevation_ft) AS value, MAX(created_at) AS first_at
		FROM workouts
		WHERE %s
		GROUP BY user_id`, windowClause("workout_date", window))
	case leaderboard.MetricWorkouts:
		return fmt.Sprintf(`
		SELECT user_id, COUNT(*) AS value, MAX(created_at) AS first_at
		FROM workouts
		WHERE %s
		GROUP BY user_id`, windowClause("workout_date", window))
	case leaderboard.MetricChallengesCompleted:
		return fmt.Sprintf(`
		SELECT user_id, COUNT(*) AS value, MAX(completed_at) AS first_at
		FROM user_challenge_progress
		WHERE status = 'completed' AND %s
		GROUP BY user_id`, windowClause("completed_at", window))
	case leaderboard.MetricCurrentStreak:
		return `
		SELECT user_id, MAX(current_streak) AS value, MAX(updated_at) AS first_at
		FROM user_challenge_progress
		GROUP BY user_id`
	case leaderboard.MetricPoints:
		return `
		SELECT user_id, SUM(points_earned) AS value, MAX(updated_at) AS first_at
		FROM user_challenge_progress
		GROUP BY user_id`
	}
	// Unreachable: metric validated by the caller.
	return `SELECT NULL::uuid AS user_id, 0 AS value, NULL::timestamptz AS first_at WHERE false`
}

func windowClause(column string, window leaderboard.TimeWindow) string {
	switch window {
	case leaderboard.WindowWeekly:
		return column + ` >= DATE_TRUNC('week', CURRENT_DATE)`
	case leaderboard.WindowMonthly:
		return column + ` >= DATE_TRUNC('month', CURRENT_DATE)`
	default:
		return `TRUE`
	}
}
