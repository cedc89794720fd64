package progress

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// CanLog reports whether a new activity may be applied to the record.
// COMPLETED and FAILED are terminal for logging; a restart is required.
func (s Status) CanLog() bool { return s == StatusActive }

func (s Status) CanRestart() bool { return s == StatusFailed || s == StatusAbandoned }

func (s Status) CanAbandon() bool { return s == StatusActive }

// DailyLog is one calendar day's accumulated activity toward a challenge.
// Multiple logs on the same UTC date are merged by summation.
type DailyLog struct {
	Date          time.Time  `json:"date"`
	DistanceMiles float64    `json:"distance_miles"`
	ElevationFt   float64    `json:"elevation_ft"`
	WorkoutID     *uuid.UUID `json:"workout_id,omitempty"`
}

// UserChallengeProgress is the mutable state machine instance, unique per
// (user, challenge). Counters are monotonic non-decreasing while ACTIVE.
type UserChallengeProgress struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	ChallengeID        uuid.UUID  `json:"challenge_id" db:"challenge_id"`
	Status             Status     `json:"status" db:"status"`
	DistanceCompleted  float64    `json:"distance_completed" db:"distance_completed"`
	ElevationCompleted float64    `json:"elevation_completed" db:"elevation_completed"`
	CurrentStreak      int        `json:"current_streak" db:"current_streak"`
	LongestStreak      int        `json:"longest_streak" db:"longest_streak"`
	LastActivityDate   *time.Time `json:"last_activity_date" db:"last_activity_date"`
	GraceDaysUsed      int        `json:"grace_days_used" db:"grace_days_used"`
	MilestonesReached  []int      `json:"milestones_reached" db:"milestones_reached"`
	PointsEarned       int        `json:"points_earned" db:"points_earned"`
	StreakMultiplier   float64    `json:"streak_multiplier" db:"streak_multiplier"`
	DailyLogs          []DailyLog `json:"daily_logs" db:"daily_logs"`
	StartedAt          time.Time  `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Reset zeroes every counter for a restart after FAILED or ABANDONED.
func (p *UserChallengeProgress) Reset(now time.Time) {
	p.Status = StatusActive
	p.DistanceCompleted = 0
	p.ElevationCompleted = 0
	p.CurrentStreak = 0
	p.LongestStreak = 0
	p.LastActivityDate = nil
	p.GraceDaysUsed = 0
	p.MilestonesReached = nil
	p.PointsEarned = 0
	p.StreakMultiplier = 1.0
	p.DailyLogs = nil
	p.StartedAt = now
	p.CompletedAt = nil
	p.UpdatedAt = now
}
