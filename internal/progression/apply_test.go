package progression

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailQuestAPI/internal/types/challenge"
	"trailQuestAPI/internal/types/progress"
)

func testChallenge(mode challenge.StreakMode) *challenge.Challenge {
	return &challenge.Challenge{
		ID:                 uuid.New(),
		Name:               "Tahoe Rim Trail",
		TotalDistanceMiles: 165,
		StreakMode:         mode,
		CompletionPoints:   500,
		Milestones: []challenge.Milestone{
			{DistanceMiles: 10, Name: "Trailhead"},
			{DistanceMiles: 50, Name: "Halfway Ridge"},
		},
	}
}

func testProgress(ch *challenge.Challenge) *progress.UserChallengeProgress {
	return &progress.UserChallengeProgress{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		ChallengeID:      ch.ID,
		Status:           progress.StatusActive,
		StreakMultiplier: 1.0,
		StartedAt:        date(2026, 3, 1),
	}
}

func TestApplyAccumulatesDistance(t *testing.T) {
	ch := testChallenge(challenge.StreakFlexible)
	p := testProgress(ch)
	now := date(2026, 3, 1)

	for i := 0; i < 3; i++ {
		day := now.AddDate(0, 0, i)
		_, err := Apply(ch, p, ActivityLog{DistanceMiles: 2.5, ElevationFt: 300, Date: day}, day)
		require.NoError(t, err)
	}

	assert.Equal(t, 7.5, p.DistanceCompleted)
	assert.Equal(t, 900.0, p.ElevationCompleted)
	assert.Equal(t, 3, p.CurrentStreak)
	assert.Len(t, p.DailyLogs, 3)
}

func TestApplyMergesSameDayLogs(t *testing.T) {
	ch := testChallenge(challenge.StreakStrict)
	p := testProgress(ch)
	day := date(2026, 3, 1)

	morning := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)

	_, err := Apply(ch, p, ActivityLog{DistanceMiles: 3, ElevationFt: 200, Date: morning}, morning)
	require.NoError(t, err)
	_, err = Apply(ch, p, ActivityLog{DistanceMiles: 2, ElevationFt: 100, Date: evening}, evening)
	require.NoError(t, err)

	require.Len(t, p.DailyLogs, 1)
	assert.Equal(t, day, p.DailyLogs[0].Date)
	assert.Equal(t, 5.0, p.DailyLogs[0].DistanceMiles)
	assert.Equal(t, 300.0, p.DailyLogs[0].ElevationFt)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 5.0, p.DistanceCompleted)
}

func TestApplyStrictGapFailsAndRejectsLog(t *testing.T) {
	ch := testChallenge(challenge.StreakStrict)
	p := testProgress(ch)

	day1 := date(2026, 3, 1)
	_, err := Apply(ch, p, ActivityLog{DistanceMiles: 4, Date: day1}, day1)
	require.NoError(t, err)
	require.Equal(t, 4.0, p.DistanceCompleted)

	// Two missed days in strict mode. The triggering log must not count.
	day4 := date(2026, 3, 4)
	outcome, err := Apply(ch, p, ActivityLog{DistanceMiles: 10, Date: day4}, day4)
	require.NoError(t, err)
	assert.True(t, outcome.Failed)

	assert.Equal(t, progress.StatusFailed, p.Status)
	assert.Equal(t, 0, p.CurrentStreak)
	assert.Equal(t, 1, p.LongestStreak)
	assert.Equal(t, 4.0, p.DistanceCompleted)
	assert.Len(t, p.DailyLogs, 1)

	// Terminal: further logging is refused.
	_, err = Apply(ch, p, ActivityLog{DistanceMiles: 1, Date: day4}, day4)
	var invalidState *InvalidStateError
	require.ErrorAs(t, err, &invalidState)
	assert.Equal(t, progress.StatusFailed, invalidState.Status)
}

func TestApplyCompletion(t *testing.T) {
	ch := testChallenge(challenge.StreakFlexible)
	ch.TotalDistanceMiles = 7
	ch.Milestones = nil
	p := testProgress(ch)
	day := date(2026, 3, 1)

	outcome, err := Apply(ch, p, ActivityLog{DistanceMiles: 7, Date: day}, day)
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.Equal(t, 70, outcome.SessionPoints.BasePoints)
	assert.Equal(t, 500, outcome.SessionPoints.CompletionBonus)
	assert.Equal(t, 570, outcome.SessionPoints.Total)

	assert.Equal(t, progress.StatusCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, 570, p.PointsEarned)

	// The completion bonus is one-time: a completed record refuses new logs,
	// so it cannot be earned again.
	_, err = Apply(ch, p, ActivityLog{DistanceMiles: 1, Date: day}, day)
	var invalidState *InvalidStateError
	require.ErrorAs(t, err, &invalidState)
	assert.Equal(t, 570, p.PointsEarned)
}

func TestApplyMilestonePoints(t *testing.T) {
	ch := testChallenge(challenge.StreakFlexible)
	p := testProgress(ch)
	day := date(2026, 3, 1)

	outcome, err := Apply(ch, p, ActivityLog{DistanceMiles: 12, Date: day}, day)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, outcome.MilestonesReached)
	assert.Equal(t, 120, outcome.SessionPoints.BasePoints)
	assert.Equal(t, 25, outcome.SessionPoints.MilestonePoints)
	assert.Equal(t, 145, outcome.SessionPoints.Total)
	assert.Equal(t, []int{0}, p.MilestonesReached)

	// The same milestone is not re-awarded on the next day.
	day2 := date(2026, 3, 2)
	outcome, err = Apply(ch, p, ActivityLog{DistanceMiles: 1, Date: day2}, day2)
	require.NoError(t, err)
	assert.Empty(t, outcome.MilestonesReached)
	assert.Equal(t, []int{0}, p.MilestonesReached)
}

func TestApplyStreakMultiplierOnRecord(t *testing.T) {
	ch := testChallenge(challenge.StreakFlexible)
	ch.Milestones = nil
	p := testProgress(ch)

	for i := 0; i < 7; i++ {
		day := date(2026, 3, 1).AddDate(0, 0, i)
		_, err := Apply(ch, p, ActivityLog{DistanceMiles: 1, Date: day}, day)
		require.NoError(t, err)
	}

	assert.Equal(t, 7, p.CurrentStreak)
	assert.Equal(t, 1.25, p.StreakMultiplier)
}

func TestApplyRejectsInvalidActivity(t *testing.T) {
	ch := testChallenge(challenge.StreakFlexible)
	day := date(2026, 3, 1)

	tests := []struct {
		name string
		act  ActivityLog
	}{
		{name: "zero distance", act: ActivityLog{DistanceMiles: 0, Date: day}},
		{name: "negative distance", act: ActivityLog{DistanceMiles: -2, Date: day}},
		{name: "negative elevation", act: ActivityLog{DistanceMiles: 1, ElevationFt: -10, Date: day}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProgress(ch)
			_, err := Apply(ch, p, tt.act, day)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 0.0, p.DistanceCompleted)
		})
	}
}

func TestApplyRejectsBackdatedActivity(t *testing.T) {
	ch := testChallenge(challenge.StreakFlexible)
	p := testProgress(ch)

	day5 := date(2026, 3, 5)
	_, err := Apply(ch, p, ActivityLog{DistanceMiles: 2, Date: day5}, day5)
	require.NoError(t, err)

	_, err = Apply(ch, p, ActivityLog{DistanceMiles: 2, Date: date(2026, 3, 3)}, day5)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 2.0, p.DistanceCompleted)
}

func TestResetClearsEverything(t *testing.T) {
	ch := testChallenge(challenge.StreakStrict)
	p := testProgress(ch)
	day := date(2026, 3, 1)

	_, err := Apply(ch, p, ActivityLog{DistanceMiles: 12, ElevationFt: 500, Date: day}, day)
	require.NoError(t, err)

	now := date(2026, 4, 1)
	p.Reset(now)

	assert.Equal(t, progress.StatusActive, p.Status)
	assert.Zero(t, p.DistanceCompleted)
	assert.Zero(t, p.ElevationCompleted)
	assert.Zero(t, p.CurrentStreak)
	assert.Zero(t, p.LongestStreak)
	assert.Nil(t, p.LastActivityDate)
	assert.Zero(t, p.GraceDaysUsed)
	assert.Empty(t, p.MilestonesReached)
	assert.Zero(t, p.PointsEarned)
	assert.Empty(t, p.DailyLogs)
	assert.Equal(t, now, p.StartedAt)
	assert.Nil(t, p.CompletedAt)
}
