package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailQuestAPI/internal/types/challenge"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 23:50 local on the 3rd is 04:50 UTC on the 4th.
	got := UTCDate(time.Date(2026, 3, 3, 23, 50, 0, 0, loc))
	assert.Equal(t, date(2026, 3, 4), got)
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(date(2026, 3, 3), date(2026, 3, 3)))
	assert.Equal(t, 1, DaysBetween(date(2026, 3, 3), date(2026, 3, 4)))
	assert.Equal(t, -2, DaysBetween(date(2026, 3, 3), date(2026, 3, 1)))
	// Wall-clock minutes apart but across midnight counts as one day.
	assert.Equal(t, 1, DaysBetween(
		time.Date(2026, 3, 3, 23, 50, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 0, 10, 0, 0, time.UTC),
	))
}

func TestAdvanceStreak(t *testing.T) {
	last := date(2026, 3, 10)

	tests := []struct {
		name        string
		last        *time.Time
		today       time.Time
		mode        challenge.StreakMode
		graceUsed   int
		current     int
		longest     int
		wantStreak  int
		wantGrace   int
		wantLongest int
		wantFailed  bool
	}{
		{
			name: "first log starts streak at one", last: nil,
			today: date(2026, 3, 10), mode: challenge.StreakStrict,
			wantStreak: 1, wantLongest: 1,
		},
		{
			name: "same day leaves streak unchanged", last: &last,
			today: date(2026, 3, 10), mode: challenge.StreakStrict,
			current: 4, longest: 4, wantStreak: 4, wantLongest: 4,
		},
		{
			name: "consecutive day increments", last: &last,
			today: date(2026, 3, 11), mode: challenge.StreakStrict,
			current: 4, longest: 4, wantStreak: 5, wantLongest: 5,
		},
		{
			name: "grace mode absorbs a single missed day", last: &last,
			today: date(2026, 3, 12), mode: challenge.StreakGracePeriod,
			current: 4, longest: 4, wantStreak: 5, wantGrace: 1, wantLongest: 5,
		},
		{
			name: "grace exhausted resets to one", last: &last,
			today: date(2026, 3, 12), mode: challenge.StreakGracePeriod,
			graceUsed: 1, current: 4, longest: 4, wantStreak: 1, wantLongest: 4,
		},
		{
			name: "grace mode two missed days resets", last: &last,
			today: date(2026, 3, 13), mode: challenge.StreakGracePeriod,
			current: 4, longest: 4, wantStreak: 1, wantLongest: 4,
		},
		{
			name: "flexible mode never fails only resets", last: &last,
			today: date(2026, 3, 20), mode: challenge.StreakFlexible,
			graceUsed: 1, current: 9, longest: 9, wantStreak: 1, wantLongest: 9,
		},
		{
			name: "strict mode gap fails the challenge", last: &last,
			today: date(2026, 3, 12), mode: challenge.StreakStrict,
			current: 4, longest: 4, wantStreak: 0, wantLongest: 4, wantFailed: true,
		},
		{
			name: "longest streak is preserved through reset", last: &last,
			today: date(2026, 3, 15), mode: challenge.StreakFlexible,
			current: 12, longest: 12, wantStreak: 1, wantLongest: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := AdvanceStreak(tt.last, tt.today, tt.mode, tt.graceUsed, tt.current, tt.longest)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStreak, res.CurrentStreak)
			assert.Equal(t, tt.wantGrace, res.GraceDaysUsed)
			assert.Equal(t, tt.wantLongest, res.LongestStreak)
			assert.Equal(t, tt.wantFailed, res.Failed)
		})
	}
}

func TestAdvanceStreakRejectsBackdatedLog(t *testing.T) {
	last := date(2026, 3, 10)
	_, err := AdvanceStreak(&last, date(2026, 3, 8), challenge.StreakFlexible, 0, 3, 3)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAdvanceStreakRejectsUnknownMode(t *testing.T) {
	_, err := AdvanceStreak(nil, date(2026, 3, 10), challenge.StreakMode("casual"), 0, 0, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

// Days 1, 2, 4 in grace mode reach streak 3: the gap to day 4 consumes the
// allowance, and a second gap within the same cycle resets.
func TestGracePeriodSequence(t *testing.T) {
	var last *time.Time
	current, longest, grace := 0, 0, 0

	log := func(day time.Time) StreakResult {
		res, err := AdvanceStreak(last, day, challenge.StreakGracePeriod, grace, current, longest)
		require.NoError(t, err)
		d := UTCDate(day)
		last, current, longest, grace = &d, res.CurrentStreak, res.LongestStreak, res.GraceDaysUsed
		return res
	}

	log(date(2026, 5, 1))
	log(date(2026, 5, 2))
	res := log(date(2026, 5, 4))
	assert.Equal(t, 3, res.CurrentStreak)
	assert.Equal(t, 1, res.GraceDaysUsed)

	// Second single-day gap in the same cycle: no grace left, reset.
	res = log(date(2026, 5, 6))
	assert.Equal(t, 1, res.CurrentStreak)
	assert.False(t, res.Failed)
	assert.Equal(t, 3, res.LongestStreak)
}

// The grace allowance refreshes when a streak enters a new 7-day cycle.
func TestGraceAllowanceResetsEachCycle(t *testing.T) {
	var last *time.Time
	current, longest, grace := 0, 0, 0

	log := func(day time.Time) StreakResult {
		res, err := AdvanceStreak(last, day, challenge.StreakGracePeriod, grace, current, longest)
		require.NoError(t, err)
		d := UTCDate(day)
		last, current, longest, grace = &d, res.CurrentStreak, res.LongestStreak, res.GraceDaysUsed
		return res
	}

	// Days 1..3 consecutive, miss day 4, resume day 5: streak 4, grace spent.
	log(date(2026, 6, 1))
	log(date(2026, 6, 2))
	log(date(2026, 6, 3))
	res := log(date(2026, 6, 5))
	require.Equal(t, 4, res.CurrentStreak)
	require.Equal(t, 1, res.GraceDaysUsed)

	// Days 6..8 bring the streak to 7 then 8; crossing into the second cycle
	// restores the allowance.
	log(date(2026, 6, 6))
	log(date(2026, 6, 7))
	res = log(date(2026, 6, 8))
	require.Equal(t, 7, res.CurrentStreak)
	assert.Equal(t, 1, res.GraceDaysUsed)

	res = log(date(2026, 6, 9))
	require.Equal(t, 8, res.CurrentStreak)
	assert.Equal(t, 0, res.GraceDaysUsed)

	// The refreshed allowance absorbs another single-day gap.
	res = log(date(2026, 6, 11))
	assert.Equal(t, 9, res.CurrentStreak)
	assert.Equal(t, 1, res.GraceDaysUsed)
}
