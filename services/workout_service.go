package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailQuestAPI/internal/progression"
	"trailQuestAPI/internal/types/workout"
)

type WorkoutService struct {
	db     *pgxpool.Pool
	badges *BadgeService
}

func NewWorkoutService(db *pgxpool.Pool, badges *BadgeService) *WorkoutService {
	return &WorkoutService{db: db, badges: badges}
}

// LogWorkout records a workout and runs the badge sweep, since workouts feed
// the lifetime distance and elevation aggregates.
func (s *WorkoutService) LogWorkout(ctx context.Context, clerkID string, req *workout.LogWorkoutRequest) (*workout.Workout, error) {
	if req.DistanceMiles < 0 {
		return nil, fmt.Errorf("%w: distance must not be negative", progression.ErrInvalidInput)
	}
	if req.ElevationFt < 0 {
		return nil, fmt.Errorf("%w: elevation must not be negative", progression.ErrInvalidInput)
	}

	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	workoutDate := time.Now()
	if req.WorkoutDate != nil {
		workoutDate = *req.WorkoutDate
	}

	w := &workout.Workout{
		ID:              uuid.New(),
		UserID:          userID,
		ActivityType:    req.ActivityType,
		DistanceMiles:   req.DistanceMiles,
		ElevationFt:     req.ElevationFt,
		DurationMinutes: req.DurationMinutes,
		WorkoutDate:     workoutDate,
		Notes:           req.Notes,
	}

	query := `
	INSERT INTO workouts (id, user_id, activity_type, distance_miles, elevation_ft, duration_minutes, workout_date, notes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	RETURNING created_at
	`
	err = s.db.QueryRow(ctx, query,
		w.ID, w.UserID, w.ActivityType, w.DistanceMiles, w.ElevationFt, w.DurationMinutes, w.WorkoutDate, w.Notes,
	).Scan(&w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to log workout: %w", err)
	}

	if _, err := s.badges.CheckAndAwardBadges(ctx, userID); err != nil {
		log.Printf("LogWorkout: badge check failed for %s: %v", userID, err)
	}

	return w, nil
}

func (s *WorkoutService) GetWorkouts(ctx context.Context, clerkID string, limit int) ([]*workout.Workout, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, user_id, activity_type, distance_miles, elevation_ft, duration_minutes, workout_date, notes, created_at
	FROM workouts
	WHERE user_id = $1
	ORDER BY workout_date DESC
	LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workouts: %w", err)
	}
	defer rows.Close()

	var workouts []*workout.Workout
	for rows.Next() {
		w := &workout.Workout{}
		err := rows.Scan(&w.ID, &w.UserID, &w.ActivityType, &w.DistanceMiles, &w.ElevationFt, &w.DurationMinutes, &w.WorkoutDate, &w.Notes, &w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}
