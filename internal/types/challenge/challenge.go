package challenge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
	DifficultyExtreme  Difficulty = "extreme"
)

type StreakMode string

const (
	StreakStrict      StreakMode = "strict"
	StreakGracePeriod StreakMode = "grace_period"
	StreakFlexible    StreakMode = "flexible"
)

func (m StreakMode) Valid() bool {
	switch m {
	case StreakStrict, StreakGracePeriod, StreakFlexible:
		return true
	}
	return false
}

// Milestone is a named distance checkpoint within a challenge. Milestones are
// stored ordered by DistanceMiles, strictly increasing.
type Milestone struct {
	DistanceMiles float64 `json:"distance_miles"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
}

type Challenge struct {
	ID                   uuid.UUID   `json:"id" db:"id"`
	Name                 string      `json:"name" db:"name"`
	Description          string      `json:"description" db:"description"`
	TotalDistanceMiles   float64     `json:"total_distance_miles" db:"total_distance_miles"`
	TotalElevationGainFt *float64    `json:"total_elevation_gain_ft,omitempty" db:"total_elevation_gain_ft"`
	Difficulty           Difficulty  `json:"difficulty" db:"difficulty"`
	EstimatedDays        int         `json:"estimated_days" db:"estimated_days"`
	MaxDaysAllowed       int         `json:"max_days_allowed" db:"max_days_allowed"`
	StreakMode           StreakMode  `json:"streak_mode" db:"streak_mode"`
	Milestones           []Milestone `json:"milestones" db:"milestones"`
	CompletionBadgeID    *uuid.UUID  `json:"completion_badge_id,omitempty" db:"completion_badge_id"`
	CompletionPoints     int         `json:"completion_points" db:"completion_points"`
	IsActive             bool        `json:"is_active" db:"is_active"`
	IsFeatured           bool        `json:"is_featured" db:"is_featured"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"`
}

// Validate checks the invariants a seeded challenge definition must hold
// before the engine will log activity against it.
func (c *Challenge) Validate() error {
	if c.TotalDistanceMiles <= 0 {
		return fmt.Errorf("challenge %s: total distance must be positive", c.ID)
	}
	if !c.StreakMode.Valid() {
		return fmt.Errorf("challenge %s: unknown streak mode %q", c.ID, c.StreakMode)
	}
	if c.CompletionPoints < 0 {
		return fmt.Errorf("challenge %s: completion points must not be negative", c.ID)
	}
	prev := 0.0
	for i, m := range c.Milestones {
		if m.DistanceMiles <= prev {
			return fmt.Errorf("challenge %s: milestone %d not strictly increasing", c.ID, i)
		}
		prev = m.DistanceMiles
	}
	return nil
}
