package workout

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivityHike      ActivityType = "hike"
	ActivityTreadmill ActivityType = "treadmill"
	ActivityWalk      ActivityType = "walk"
	ActivityStrength  ActivityType = "strength"
)

type Workout struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	UserID          uuid.UUID    `json:"user_id" db:"user_id"`
	ActivityType    ActivityType `json:"activity_type" db:"activity_type"`
	DistanceMiles   float64      `json:"distance_miles" db:"distance_miles"`
	ElevationFt     float64      `json:"elevation_ft" db:"elevation_ft"`
	DurationMinutes int          `json:"duration_minutes" db:"duration_minutes"`
	WorkoutDate     time.Time    `json:"workout_date" db:"workout_date"`
	Notes           *string      `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}

type LogWorkoutRequest struct {
	ActivityType    ActivityType `json:"activity_type"`
	DistanceMiles   float64      `json:"distance_miles"`
	ElevationFt     float64      `json:"elevation_ft"`
	DurationMinutes int          `json:"duration_minutes"`
	WorkoutDate     *time.Time   `json:"workout_date,omitempty"`
	Notes           *string      `json:"notes,omitempty"`
}
