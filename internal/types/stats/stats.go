package stats

type UserStats struct {
	ActiveChallenges    int `json:"active_challenges"`
	CompletedChallenges int `json:"completed_challenges"`
	TotalPoints         int `json:"total_points"`
	TotalBadges         int `json:"total_badges"`
	LongestStreak       int `json:"longest_streak"`
}
