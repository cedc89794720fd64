package progression

import "math"

const (
	pointsPerMile      = 10
	pointsPerMilestone = 25
)

// multiplierStep maps a minimum streak length to its point multiplier.
type multiplierStep struct {
	MinStreak  int
	Multiplier float64
}

// multiplierSteps is ordered descending so the first satisfied step wins;
// the step function has no interpolation between steps.
var multiplierSteps = []multiplierStep{
	{MinStreak: 30, Multiplier: 2.0},
	{MinStreak: 14, Multiplier: 1.5},
	{MinStreak: 7, Multiplier: 1.25},
	{MinStreak: 3, Multiplier: 1.1},
}

// StreakMultiplier returns the point-bonus factor for a streak length.
func StreakMultiplier(streak int) float64 {
	for _, step := range multiplierSteps {
		if streak >= step.MinStreak {
			return step.Multiplier
		}
	}
	return 1.0
}

// PointsBreakdown itemizes the points earned by a single logged activity.
type PointsBreakdown struct {
	BasePoints      int     `json:"base_points"`
	StreakBonus     int     `json:"streak_bonus"`
	MilestonePoints int     `json:"milestone_points"`
	CompletionBonus int     `json:"completion_bonus"`
	Multiplier      float64 `json:"multiplier"`
	Total           int     `json:"total"`
}

// CalculatePoints computes the session points for an activity: base points
// from distance, a streak bonus from the multiplier step, and a flat bonus
// per milestone just reached. The completion bonus is added by the caller
// when the activity completes the challenge.
func CalculatePoints(distanceMiles float64, streak, milestonesJustReached int) PointsBreakdown {
	multiplier := StreakMultiplier(streak)
	base := int(math.Round(distanceMiles * pointsPerMile))
	bonus := int(math.Round(float64(base) * (multiplier - 1)))
	milestonePoints := milestonesJustReached * pointsPerMilestone

	return PointsBreakdown{
		BasePoints:      base,
		StreakBonus:     bonus,
		MilestonePoints: milestonePoints,
		Multiplier:      multiplier,
		Total:           base + bonus + milestonePoints,
	}
}
