package badge

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryChallenge Category = "challenge"
	CategoryStreak    Category = "streak"
	CategoryDistance  Category = "distance"
	CategoryElevation Category = "elevation"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Badge is a static achievement definition, read-only to the engine.
// Threshold carries the criteria value for streak/distance/elevation badges
// and is zero for challenge-completion badges.
type Badge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IconName    string    `json:"icon_name" db:"icon_name"`
	Category    Category  `json:"category" db:"category"`
	Rarity      Rarity    `json:"rarity" db:"rarity"`
	Threshold   float64   `json:"threshold" db:"threshold"`
	Points      int       `json:"points" db:"points"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// UserBadge is an award record, unique per (user, badge). ChallengeID is set
// when the badge was earned by completing a challenge.
type UserBadge struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	UserID      uuid.UUID      `json:"user_id" db:"user_id"`
	BadgeID     uuid.UUID      `json:"badge_id" db:"badge_id"`
	ChallengeID *uuid.UUID     `json:"challenge_id,omitempty" db:"challenge_id"`
	EarnedAt    time.Time      `json:"earned_at" db:"earned_at"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
}

type BadgeWithStatus struct {
	Badge
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}
