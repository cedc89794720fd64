package leaderboard

import "github.com/google/uuid"

type Metric string

const (
	MetricDistance            Metric = "distance"
	MetricElevation           Metric = "elevation"
	MetricWorkouts            Metric = "workouts"
	MetricCurrentStreak       Metric = "current_streak"
	MetricChallengesCompleted Metric = "challenges_completed"
	MetricPoints              Metric = "points"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricDistance, MetricElevation, MetricWorkouts,
		MetricCurrentStreak, MetricChallengesCompleted, MetricPoints:
		return true
	}
	return false
}

type TimeWindow string

const (
	WindowWeekly  TimeWindow = "weekly"
	WindowMonthly TimeWindow = "monthly"
	WindowAllTime TimeWindow = "all_time"
)

func (w TimeWindow) Valid() bool {
	switch w {
	case WindowWeekly, WindowMonthly, WindowAllTime:
		return true
	}
	return false
}

type Entry struct {
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Username string    `json:"username" db:"username"`
	ImageURL *string   `json:"image_url" db:"image_url"`
	Value    float64   `json:"value" db:"value"`
	Rank     int       `json:"rank" db:"rank"`
}

type Leaderboard struct {
	Metric       Metric     `json:"metric"`
	TimeWindow   TimeWindow `json:"time_window"`
	Entries      []*Entry   `json:"entries"`
	UserPosition *Entry     `json:"user_position,omitempty"`
	TotalUsers   int        `json:"total_users"`
}
